package builtins

import "github.com/ms-lang/ms/internal/vm"

func registerOOP(machine *vm.VM) {
	define(machine, "isinstance", builtinIsinstance)
	define(machine, "super", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := checkArgc(machine, "super", args, 0); err != nil {
			return vm.NilVal(), err
		}
		return machine.Super()
	})
}

// builtinIsinstance compares against either a user Class (walking the
// instance's single-inheritance chain, spec §4.2) or the str type()
// returns for primitives, since ms has no standing Class object for
// builtin types (see conversions.go's builtinType).
func builtinIsinstance(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "isinstance", args, 2); err != nil {
		return vm.NilVal(), err
	}
	obj, kind := args[0], args[1]

	if cls, ok := kind.Obj.(*vm.Class); ok {
		inst, ok := obj.Obj.(*vm.Instance)
		if !ok {
			return vm.BoolVal(false), nil
		}
		for c := inst.Class; c != nil; c = c.Parent {
			if c == cls {
				return vm.BoolVal(true), nil
			}
		}
		return vm.BoolVal(false), nil
	}
	if kind.IsString() {
		return vm.BoolVal(obj.TypeName() == kind.AsString()), nil
	}
	return vm.NilVal(), machine.NewTypeError("isinstance() arg 2 must be a type or str")
}
