package builtins

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ms-lang/ms/internal/vm"
)

func registerIO(machine *vm.VM, stdin io.Reader) {
	define(machine, "print", builtinPrint)

	reader := bufio.NewReader(stdin)
	machine.DefineGlobal("input", vm.ObjVal(&vm.NativeFn{
		Name: "input",
		Fn: func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
			return builtinInput(machine, args, reader)
		},
	}))

	define(machine, "isatty", builtinIsatty)
}

// builtinPrint writes args joined by a space, followed by a newline, to
// the VM's configured Stdout (spec §6's print; falls back to os.Stdout
// if the embedder left Stdout unset).
func builtinPrint(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	out := io.Writer(os.Stdout)
	if machine.Stdout != nil {
		out = machine.Stdout
	}
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(out, " ")
		}
		fmt.Fprint(out, machine.Stringify(a))
	}
	fmt.Fprintln(out)
	return vm.NilVal(), nil
}

// builtinInput reads one line from reader (spec §5's "input() ... the
// only operation that may block"), stripping the trailing newline. An
// optional prompt argument is written to Stdout first, matching the
// conventional input(prompt) signature.
func builtinInput(machine *vm.VM, args []vm.Value, reader *bufio.Reader) (vm.Value, error) {
	if err := checkArgcRange(machine, "input", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 1 {
		out := io.Writer(os.Stdout)
		if machine.Stdout != nil {
			out = machine.Stdout
		}
		fmt.Fprint(out, args[0].Str())
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return vm.NilVal(), machine.NewValueError("EOF when reading a line")
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return vm.ObjVal(&vm.String{Value: line}), nil
}

// builtinIsatty reports whether the process's stdin is an interactive
// terminal (SPEC_FULL.md's ambient go-isatty wiring, mirroring the
// teacher's internal/evaluator/builtins_term.go terminal builtins).
func builtinIsatty(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "isatty", args, 0); err != nil {
		return vm.NilVal(), err
	}
	return vm.BoolVal(isatty.IsTerminal(os.Stdin.Fd())), nil
}
