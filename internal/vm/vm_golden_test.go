package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ms-lang/ms/internal/builtins"
	"github.com/ms-lang/ms/internal/modules"
	"github.com/ms-lang/ms/internal/vm"
)

func runSource(t *testing.T, source string) string {
	t.Helper()
	var out bytes.Buffer
	names := vm.NewNames()
	machine := vm.NewVM(names, &out)
	builtins.Register(machine)
	_, err := machine.Interpret(source)
	require.NoError(t, err)
	return out.String()
}

// TestEndToEndScenarios exercises spec §8's six golden end-to-end programs.
func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "arithmetic precedence",
			source: "print(1 + 2 * 3)",
			want:   "7\n",
		},
		{
			name: "recursive factorial",
			source: `def fact(n):
    if n <= 1:
        return 1
    return n * fact(n - 1)
print(fact(10))
`,
			want: "3628800\n",
		},
		{
			name:   "list comprehension",
			source: "print([x*x for x in range(5)])",
			want:   "[0, 1, 4, 9, 16]\n",
		},
		{
			name: "operator overloading via dunders",
			source: `class V:
    def __init__(self, x):
        self.x = x
    def __add__(self, o):
        return V(self.x + o.x)
    def __str__(self):
        return "V(" + str(self.x) + ")"
print(V(2) + V(3))
`,
			want: "V(5)\n",
		},
		{
			name: "dict iteration",
			source: `d = {"a": 1, "b": 2}
s = 0
for k in d:
    s = s + d[k]
print(s)
`,
			want: "3\n",
		},
		{
			name:   "string coercion under ADD",
			source: `print("ab" + 1)`,
			want:   "ab1\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, runSource(t, tc.source))
		})
	}
}

func TestBoundaryCases(t *testing.T) {
	require.Equal(t, "[]\n", runSource(t, "print([])"))
	require.Equal(t, "{}\n", runSource(t, "print(dict())"))
	require.Equal(t, "()\n", runSource(t, "print(())"))
	require.Equal(t, "{}\n", runSource(t, "print(set())"))
	require.Equal(t, "[]\n", runSource(t, "print(list(range(0)))"))
	require.Equal(t, "[]\n", runSource(t, "print(list(range(5, 5)))"))
	require.Equal(t, "[5, 4, 3, 2, 1]\n", runSource(t, "print(list(range(5, 0, -1)))"))
}

func TestFloorDivAndModuloLaw(t *testing.T) {
	out := runSource(t, `
a = 17
b = 5
print((a // b) * b + (a % b) == a)
`)
	require.Equal(t, "true\n", out)

	out = runSource(t, `
a = -17
b = 5
print((a // b) * b + (a % b) == a)
`)
	require.Equal(t, "true\n", out)
}

func TestDunderlessArithmeticOnInstanceRaisesTypeError(t *testing.T) {
	var out bytes.Buffer
	names := vm.NewNames()
	machine := vm.NewVM(names, &out)
	builtins.Register(machine)
	_, err := machine.Interpret(`
class P:
    def __init__(self):
        self.x = 1
print(P() + P())
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TypeError")
}

func TestImportOfNonexistentModuleAttributeCallRaisesAttributeError(t *testing.T) {
	var out bytes.Buffer
	names := vm.NewNames()
	machine := vm.NewVM(names, &out)
	builtins.Register(machine)
	machine.SetModules(modules.NewRegistry(nil, nil))
	_, err := machine.Interpret(`
import nosuchmodule
nosuchmodule.anything()
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AttributeError")
}
