package builtins

import (
	"math"

	"github.com/ms-lang/ms/internal/vm"
)

func registerNumeric(machine *vm.VM) {
	define(machine, "abs", builtinAbs)
	define(machine, "min", builtinMin)
	define(machine, "max", builtinMax)
	define(machine, "sum", builtinSum)
	define(machine, "pow", builtinPow)
	define(machine, "round", builtinRound)
}

func builtinAbs(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "abs", args, 1); err != nil {
		return vm.NilVal(), err
	}
	switch {
	case args[0].IsInt():
		n := args[0].AsInt()
		if n < 0 {
			n = -n
		}
		return vm.IntVal(n), nil
	case args[0].IsFloat():
		return vm.FloatVal(math.Abs(args[0].AsFloat())), nil
	}
	return vm.NilVal(), machine.NewTypeError("abs() argument must be int or float, not '%s'", args[0].TypeName())
}

// minmax shares the positional-args-or-single-iterable shape min() and
// max() both have, picking whichever element LessThan ranks on the wrong
// side of want (pass true for min, false for max).
func minmax(machine *vm.VM, name string, args []vm.Value, wantLess bool) (vm.Value, error) {
	var elems []vm.Value
	if len(args) == 1 {
		seq, err := elementsOf(machine, args[0])
		if err != nil {
			return vm.NilVal(), err
		}
		elems = seq
	} else {
		elems = args
	}
	if len(elems) == 0 {
		return vm.NilVal(), machine.NewValueError("%s() arg is an empty sequence", name)
	}
	best := elems[0]
	for _, e := range elems[1:] {
		less, err := machine.LessThan(e, best)
		if err != nil {
			return vm.NilVal(), err
		}
		if less == wantLess {
			best = e
		}
	}
	return best, nil
}

func builtinMin(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) == 0 {
		return vm.NilVal(), machine.NewTypeError("min() takes at least 1 argument")
	}
	return minmax(machine, "min", args, true)
}

func builtinMax(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) == 0 {
		return vm.NilVal(), machine.NewTypeError("max() takes at least 1 argument")
	}
	return minmax(machine, "max", args, false)
}

func builtinSum(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "sum", args, 1, 2); err != nil {
		return vm.NilVal(), err
	}
	elems, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	start := vm.IntVal(0)
	if len(args) == 2 {
		start = args[1]
	}

	total := start
	isFloat := total.IsFloat()
	floatTotal := asNumber(total)
	intTotal := int64(0)
	if total.IsInt() {
		intTotal = total.AsInt()
	}

	for _, e := range elems {
		if !e.IsNumber() {
			return vm.NilVal(), machine.NewTypeError("sum() elements must be int or float, not '%s'", e.TypeName())
		}
		if e.IsFloat() {
			isFloat = true
		}
		floatTotal += asNumber(e)
		if e.IsInt() {
			intTotal += e.AsInt()
		}
	}
	if isFloat {
		return vm.FloatVal(floatTotal), nil
	}
	return vm.IntVal(intTotal), nil
}

func asNumber(v vm.Value) float64 {
	if v.IsFloat() {
		return v.AsFloat()
	}
	return float64(v.AsInt())
}

func builtinPow(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "pow", args, 2); err != nil {
		return vm.NilVal(), err
	}
	base, exp := args[0], args[1]
	if !base.IsNumber() || !exp.IsNumber() {
		return vm.NilVal(), machine.NewTypeError("pow() arguments must be int or float")
	}
	if base.IsInt() && exp.IsInt() && exp.AsInt() >= 0 {
		result := int64(1)
		b := base.AsInt()
		for i := int64(0); i < exp.AsInt(); i++ {
			result *= b
		}
		return vm.IntVal(result), nil
	}
	return vm.FloatVal(math.Pow(asNumber(base), asNumber(exp))), nil
}

func builtinRound(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "round", args, 1, 2); err != nil {
		return vm.NilVal(), err
	}
	if !args[0].IsNumber() {
		return vm.NilVal(), machine.NewTypeError("round() argument must be int or float, not '%s'", args[0].TypeName())
	}
	f := asNumber(args[0])
	if len(args) == 1 || args[1].AsInt() == 0 {
		if len(args) == 1 && args[0].IsInt() {
			return args[0], nil
		}
		return vm.IntVal(int64(math.Round(f))), nil
	}
	if !args[1].IsInt() {
		return vm.NilVal(), machine.NewTypeError("round() ndigits must be an int")
	}
	scale := math.Pow(10, float64(args[1].AsInt()))
	return vm.FloatVal(math.Round(f*scale) / scale), nil
}
