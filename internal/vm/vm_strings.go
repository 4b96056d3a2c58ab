package vm

import (
	"fmt"
	"strings"
)

// stringMethods is the small fixed method table SPEC_FULL.md's supplemented
// string-methods feature describes: getProperty's String case (vm_calls.go)
// looks names up here, and a name not in the table raises AttributeError,
// since spec.md's GET_PROPERTY contract only covers Instance/Module
// receivers.
var stringMethods = map[string]func(vm *VM, self string, args []Value) (Value, error){
	"upper": func(vm *VM, self string, args []Value) (Value, error) {
		if err := checkArity("upper", args, 0); err != nil {
			return NilVal(), err
		}
		return ObjVal(&String{Value: strings.ToUpper(self)}), nil
	},
	"lower": func(vm *VM, self string, args []Value) (Value, error) {
		if err := checkArity("lower", args, 0); err != nil {
			return NilVal(), err
		}
		return ObjVal(&String{Value: strings.ToLower(self)}), nil
	},
	"strip": func(vm *VM, self string, args []Value) (Value, error) {
		if err := checkArity("strip", args, 0); err != nil {
			return NilVal(), err
		}
		return ObjVal(&String{Value: strings.TrimSpace(self)}), nil
	},
	"split": func(vm *VM, self string, args []Value) (Value, error) {
		if len(args) > 1 {
			return NilVal(), vm.NewTypeError("split() takes at most 1 argument but %d were given", len(args))
		}
		var parts []string
		if len(args) == 0 {
			parts = strings.Fields(self)
		} else {
			if !args[0].IsString() {
				return NilVal(), vm.NewTypeError("split() separator must be a str")
			}
			parts = strings.Split(self, args[0].AsString())
		}
		elems := make([]Value, len(parts))
		for i, p := range parts {
			elems[i] = ObjVal(&String{Value: p})
		}
		return ObjVal(&List{Elements: elems}), nil
	},
	"join": func(vm *VM, self string, args []Value) (Value, error) {
		if err := checkArity("join", args, 1); err != nil {
			return NilVal(), err
		}
		list, ok := args[0].Obj.(*List)
		if !ok {
			return NilVal(), vm.NewTypeError("join() argument must be a list")
		}
		parts := make([]string, len(list.Elements))
		for i, e := range list.Elements {
			if !e.IsString() {
				return NilVal(), vm.NewTypeError("join() list must contain only str elements")
			}
			parts[i] = e.AsString()
		}
		return ObjVal(&String{Value: strings.Join(parts, self)}), nil
	},
}

func checkArity(name string, args []Value, want int) error {
	if len(args) != want {
		return &RuntimeError{Value: ObjVal(&String{Value: fmt.Sprintf("TypeError: %s() takes %d argument(s) but %d were given", name, want, len(args))})}
	}
	return nil
}

// getStringMethod returns a bound NativeFn for name on s, if name is one
// of stringMethods' entries.
func (vm *VM) getStringMethod(s *String, name string) (Value, bool) {
	fn, ok := stringMethods[name]
	if !ok {
		return NilVal(), false
	}
	self := s.Value
	return ObjVal(&NativeFn{
		Name: name,
		Fn: func(vm *VM, args []Value) (Value, error) {
			return fn(vm, self, args)
		},
	}), true
}
