package builtins

import "github.com/ms-lang/ms/internal/vm"

func registerText(machine *vm.VM) {
	define(machine, "chr", builtinChr)
	define(machine, "ord", builtinOrd)
}

func builtinChr(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "chr", args, 1); err != nil {
		return vm.NilVal(), err
	}
	if !args[0].IsInt() {
		return vm.NilVal(), machine.NewTypeError("chr() argument must be an int")
	}
	n := args[0].AsInt()
	if n < 0 || n > 0x10FFFF {
		return vm.NilVal(), machine.NewValueError("chr() arg not in range(0x110000)")
	}
	return vm.ObjVal(&vm.String{Value: string(rune(n))}), nil
}

func builtinOrd(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "ord", args, 1); err != nil {
		return vm.NilVal(), err
	}
	if !args[0].IsString() {
		return vm.NilVal(), machine.NewTypeError("ord() argument must be a str")
	}
	runes := []rune(args[0].AsString())
	if len(runes) != 1 {
		return vm.NilVal(), machine.NewTypeError("ord() expected a character, but string of length %d found", len(runes))
	}
	return vm.IntVal(int64(runes[0])), nil
}
