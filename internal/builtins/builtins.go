// Package builtins installs spec §6's built-in function contract (print,
// input, int, float, str, bool, len, range, list, tuple, dict, abs, min,
// max, sum, pow, round, chr, ord, type, isinstance, enumerate, zip,
// sorted, reversed, super) plus set() and SPEC_FULL.md's isatty(), each
// registered as a vm.NativeFn global at VM construction. Grounded on the
// teacher's internal/evaluator/builtins*.go per-concern file split, but
// built against ms's plain NativeFn{Name, Fn} shape rather than the
// teacher's trait/TypeInfo-carrying Builtin struct, since spec.md's value
// model has no row-polymorphic evidence system for builtins to thread
// through.
package builtins

import (
	"os"

	"github.com/ms-lang/ms/internal/vm"
)

// Register installs every built-in as a global on machine. Called once
// per VM instance by pkg/ms's New (which cmd/ms uses) before running user
// source.
func Register(machine *vm.VM) {
	registerConversions(machine)
	registerSequences(machine)
	registerNumeric(machine)
	registerText(machine)
	registerIO(machine, os.Stdin)
	registerOOP(machine)
}

func define(machine *vm.VM, name string, fn func(machine *vm.VM, args []vm.Value) (vm.Value, error)) {
	machine.DefineGlobal(name, vm.ObjVal(&vm.NativeFn{Name: name, Fn: fn}))
}

// checkArgc enforces an exact arity, the shape every builtin below needs
// before touching its args slice.
func checkArgc(machine *vm.VM, name string, args []vm.Value, want int) error {
	if len(args) != want {
		return machine.NewTypeError("%s() takes exactly %d argument(s) (%d given)", name, want, len(args))
	}
	return nil
}

func checkArgcRange(machine *vm.VM, name string, args []vm.Value, min, max int) error {
	if len(args) < min || len(args) > max {
		return machine.NewTypeError("%s() takes %d to %d argument(s) (%d given)", name, min, max, len(args))
	}
	return nil
}
