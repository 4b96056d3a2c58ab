package builtins_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ms-lang/ms/internal/builtins"
	"github.com/ms-lang/ms/internal/vm"
)

func run(t *testing.T, source string) string {
	t.Helper()
	var out bytes.Buffer
	names := vm.NewNames()
	machine := vm.NewVM(names, &out)
	builtins.Register(machine)
	_, err := machine.Interpret(source)
	require.NoError(t, err)
	return out.String()
}

func TestConversions(t *testing.T) {
	cases := map[string]string{
		"print(int(\"42\"))":   "42\n",
		"print(int(3.9))":      "3\n",
		"print(float(\"1.5\"))": "1.5\n",
		"print(str(7))":        "7\n",
		"print(bool(0))":       "false\n",
		"print(bool(\"x\"))":   "true\n",
		"print(type(1))":       "int\n",
		"print(type(\"s\"))":   "str\n",
	}
	for src, want := range cases {
		require.Equal(t, want, run(t, src), src)
	}
}

func TestSequenceBuiltins(t *testing.T) {
	require.Equal(t, "0\n", run(t, "print(len(\"\"))"))
	require.Equal(t, "3\n", run(t, "print(len([1, 2, 3]))"))
	require.Equal(t, "[0, 1, 2, 3, 4]\n", run(t, "print(list(range(5)))"))
	require.Equal(t, "[]\n", run(t, "print(list(range(5, 5)))"))
	require.Equal(t, "[5, 4, 3, 2, 1]\n", run(t, "print(list(range(5, 0, -1)))"))
	require.Equal(t, "(1, 2)\n", run(t, "print(tuple([1, 2]))"))
	require.Equal(t, "[(0, \"a\"), (1, \"b\")]\n", run(t, "print(list(enumerate([\"a\", \"b\"])))"))
	require.Equal(t, "[(1, 3), (2, 4)]\n", run(t, "print(list(zip([1, 2], [3, 4])))"))
	require.Equal(t, "[1, 2, 3]\n", run(t, "print(sorted([3, 1, 2]))"))
	require.Equal(t, "[3, 2, 1]\n", run(t, "print(sorted([1, 2, 3], True))"))
	require.Equal(t, "[3, 2, 1]\n", run(t, "print(reversed([1, 2, 3]))"))
}

func TestSortedReversedSortedIsIdempotentUnderReverse(t *testing.T) {
	out := run(t, "xs = [5, 3, 1, 4, 2]\nprint(sorted(reversed(sorted(xs))) == sorted(xs))")
	require.Equal(t, "true\n", out)
}

func TestNumericBuiltins(t *testing.T) {
	require.Equal(t, "5\n", run(t, "print(abs(-5))"))
	require.Equal(t, "1\n", run(t, "print(min(3, 1, 2))"))
	require.Equal(t, "3\n", run(t, "print(max([1, 2, 3]))"))
	require.Equal(t, "6\n", run(t, "print(sum([1, 2, 3]))"))
	require.Equal(t, "8\n", run(t, "print(pow(2, 3))"))
	require.Equal(t, "3\n", run(t, "print(round(2.6))"))
	require.Equal(t, "3.14\n", run(t, "print(round(3.14159, 2))"))
}

func TestTextBuiltins(t *testing.T) {
	require.Equal(t, "A\n", run(t, "print(chr(65))"))
	require.Equal(t, "65\n", run(t, "print(ord(\"A\"))"))
}

func TestStringMethods(t *testing.T) {
	require.Equal(t, "HELLO\n", run(t, `print("hello".upper())`))
	require.Equal(t, "hello\n", run(t, `print("HELLO".lower())`))
	require.Equal(t, "hi\n", run(t, `print("  hi  ".strip())`))
	require.Equal(t, "[\"a\", \"b\"]\n", run(t, `print("a,b".split(","))`))
	require.Equal(t, "a-b\n", run(t, `print("-".join(["a", "b"]))`))
}

func TestIsinstance(t *testing.T) {
	src := `
class Animal:
    def speak(self):
        return "..."

class Dog(Animal):
    def bark(self):
        return "woof"

d = Dog()
print(isinstance(d, Dog))
print(isinstance(d, Animal))
print(isinstance(1, "int"))
`
	out := run(t, src)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{"true", "true", "true"}, lines)
}

func TestSuper(t *testing.T) {
	src := `
class Animal:
    def speak(self):
        return "..."

class Dog(Animal):
    def speak(self):
        return super().speak() + " woof"

print(Dog().speak())
`
	require.Equal(t, "... woof\n", run(t, src))
}

// TestSuperThroughInheritedUnchangedMethod covers a 3-level chain where the
// bottommost class inherits the middle class's super()-calling method
// without overriding it. super() must still resolve relative to the class
// that actually defined the method (Dog), not the instance's dynamic class
// (Puppy), or it re-invokes itself and recurses forever.
func TestSuperThroughInheritedUnchangedMethod(t *testing.T) {
	src := `
class Animal:
    def speak(self):
        return "..."

class Dog(Animal):
    def speak(self):
        return super().speak() + " woof"

class Puppy(Dog):
    pass

print(Puppy().speak())
`
	require.Equal(t, "... woof\n", run(t, src))
}
