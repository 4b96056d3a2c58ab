package builtins

import (
	"strconv"
	"strings"

	"github.com/ms-lang/ms/internal/vm"
)

func registerConversions(machine *vm.VM) {
	define(machine, "int", builtinInt)
	define(machine, "float", builtinFloat)
	define(machine, "str", builtinStr)
	define(machine, "bool", builtinBool)
	define(machine, "type", builtinType)
}

func builtinInt(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "int", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 0 {
		return vm.IntVal(0), nil
	}
	v := args[0]
	switch {
	case v.IsInt():
		return v, nil
	case v.IsFloat():
		return vm.IntVal(int64(v.AsFloat())), nil
	case v.Type == vm.ValBool:
		if v.AsBool() {
			return vm.IntVal(1), nil
		}
		return vm.IntVal(0), nil
	case v.IsString():
		n, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
		if err != nil {
			return vm.NilVal(), machine.NewValueError("invalid literal for int(): %q", v.AsString())
		}
		return vm.IntVal(n), nil
	}
	return vm.NilVal(), machine.NewTypeError("int() argument must be a string, int, float or bool, not '%s'", v.TypeName())
}

func builtinFloat(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "float", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 0 {
		return vm.FloatVal(0), nil
	}
	v := args[0]
	switch {
	case v.IsFloat():
		return v, nil
	case v.IsInt():
		return vm.FloatVal(float64(v.AsInt())), nil
	case v.Type == vm.ValBool:
		if v.AsBool() {
			return vm.FloatVal(1), nil
		}
		return vm.FloatVal(0), nil
	case v.IsString():
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		if err != nil {
			return vm.NilVal(), machine.NewValueError("could not convert string to float: %q", v.AsString())
		}
		return vm.FloatVal(f), nil
	}
	return vm.NilVal(), machine.NewTypeError("float() argument must be a string, int, float or bool, not '%s'", v.TypeName())
}

func builtinStr(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "str", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 0 {
		return vm.ObjVal(&vm.String{Value: ""}), nil
	}
	return vm.ObjVal(&vm.String{Value: machine.Stringify(args[0])}), nil
}

func builtinBool(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "bool", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 0 {
		return vm.BoolVal(false), nil
	}
	return vm.BoolVal(args[0].Truthy()), nil
}

// builtinType implements spec §6's type(). ms's value model has no
// standing Class object for primitive types (Class values only exist for
// user-defined classes), so type() of a primitive reports its name as a
// str rather than a first-class type object; type() of an Instance
// returns its actual Class, matching isinstance()'s expectation that
// classes compare by Class identity.
func builtinType(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "type", args, 1); err != nil {
		return vm.NilVal(), err
	}
	if inst, ok := args[0].Obj.(*vm.Instance); ok {
		return vm.ObjVal(inst.Class), nil
	}
	return vm.ObjVal(&vm.String{Value: args[0].TypeName()}), nil
}
