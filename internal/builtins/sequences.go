package builtins

import (
	"sort"

	"github.com/ms-lang/ms/internal/vm"
)

func registerSequences(machine *vm.VM) {
	define(machine, "len", builtinLen)
	define(machine, "range", builtinRange)
	define(machine, "list", builtinList)
	define(machine, "tuple", builtinTuple)
	define(machine, "dict", builtinDict)
	define(machine, "enumerate", builtinEnumerate)
	define(machine, "zip", builtinZip)
	define(machine, "sorted", builtinSorted)
	define(machine, "reversed", builtinReversed)
	define(machine, "set", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := checkArgcRange(machine, "set", args, 0, 1); err != nil {
			return vm.NilVal(), err
		}
		out := vm.NewSet()
		if len(args) == 1 {
			elems, err := elementsOf(machine, args[0])
			if err != nil {
				return vm.NilVal(), err
			}
			for _, e := range elems {
				out.Add(machine, e)
			}
		}
		return vm.ObjVal(out), nil
	})
}

// elementsOf materializes any of ms's iterable container kinds into a
// plain Go slice, the shared groundwork every sequence builtin below
// needs (spec §4.4's FOR_ITER_LOCAL recognizes the same kinds).
func elementsOf(machine *vm.VM, v vm.Value) ([]vm.Value, error) {
	switch o := v.Obj.(type) {
	case *vm.List:
		return o.Elements, nil
	case *vm.Tuple:
		return o.Elements, nil
	case *vm.Set:
		return o.Elements, nil
	case *vm.String:
		s := o.Value
		out := make([]vm.Value, len(s))
		for i := 0; i < len(s); i++ {
			out[i] = vm.ObjVal(&vm.String{Value: string(s[i])})
		}
		return out, nil
	case *vm.Dict:
		out := make([]vm.Value, len(o.Keys))
		for i, k := range o.Keys {
			out[i] = vm.ObjVal(&vm.String{Value: k})
		}
		return out, nil
	}
	return nil, machine.NewTypeError("'%s' object is not iterable", v.TypeName())
}

func builtinLen(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "len", args, 1); err != nil {
		return vm.NilVal(), err
	}
	switch o := args[0].Obj.(type) {
	case *vm.String:
		return vm.IntVal(int64(len(o.Value))), nil
	case *vm.List:
		return vm.IntVal(int64(len(o.Elements))), nil
	case *vm.Tuple:
		return vm.IntVal(int64(len(o.Elements))), nil
	case *vm.Dict:
		return vm.IntVal(int64(len(o.Keys))), nil
	case *vm.Set:
		return vm.IntVal(int64(len(o.Elements))), nil
	}
	return vm.NilVal(), machine.NewTypeError("object of type '%s' has no len()", args[0].TypeName())
}

// builtinRange materializes its result eagerly as a List rather than a
// lazy iterator object: spec.md's FOR_ITER_LOCAL dispatches on the
// concrete container kinds built into the value model (List/Tuple/Dict/
// Set/String), and there is no lazy-sequence variant among them, so
// range()'s result needs to already be one of those kinds to be usable in
// a for loop or list comprehension.
func builtinRange(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "range", args, 1, 3); err != nil {
		return vm.NilVal(), err
	}
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		if !args[0].IsInt() {
			return vm.NilVal(), machine.NewTypeError("range() arguments must be int")
		}
		stop = args[0].AsInt()
	case 2, 3:
		if !args[0].IsInt() || !args[1].IsInt() {
			return vm.NilVal(), machine.NewTypeError("range() arguments must be int")
		}
		start, stop = args[0].AsInt(), args[1].AsInt()
		if len(args) == 3 {
			if !args[2].IsInt() {
				return vm.NilVal(), machine.NewTypeError("range() arguments must be int")
			}
			step = args[2].AsInt()
		}
	}
	if step == 0 {
		return vm.NilVal(), machine.NewValueError("range() arg 3 must not be zero")
	}

	var elems []vm.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			elems = append(elems, vm.IntVal(i))
		}
	} else {
		for i := start; i > stop; i += step {
			elems = append(elems, vm.IntVal(i))
		}
	}
	return vm.ObjVal(&vm.List{Elements: elems}), nil
}

func builtinList(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "list", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 0 {
		return vm.ObjVal(&vm.List{}), nil
	}
	elems, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	out := make([]vm.Value, len(elems))
	copy(out, elems)
	return vm.ObjVal(&vm.List{Elements: out}), nil
}

func builtinTuple(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "tuple", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	if len(args) == 0 {
		return vm.ObjVal(&vm.Tuple{}), nil
	}
	elems, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	out := make([]vm.Value, len(elems))
	copy(out, elems)
	return vm.ObjVal(&vm.Tuple{Elements: out}), nil
}

// builtinDict builds a Dict from zero arguments (empty), a single Dict
// argument (shallow copy), or a single iterable of 2-element key/value
// pairs (list/tuple), matching the conventional dict(pairs) constructor.
func builtinDict(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "dict", args, 0, 1); err != nil {
		return vm.NilVal(), err
	}
	out := vm.NewDict()
	if len(args) == 0 {
		return vm.ObjVal(out), nil
	}
	if src, ok := args[0].Obj.(*vm.Dict); ok {
		for _, k := range src.Keys {
			v, _ := src.Get(k)
			out.Set(k, v)
		}
		return vm.ObjVal(out), nil
	}
	pairs, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	for _, p := range pairs {
		kv, err := elementsOf(machine, p)
		if err != nil || len(kv) != 2 {
			return vm.NilVal(), machine.NewValueError("dict() pairs must each have exactly 2 elements")
		}
		if !kv[0].IsString() {
			return vm.NilVal(), machine.NewTypeError("dict keys must be strings")
		}
		out.Set(kv[0].AsString(), kv[1])
	}
	return vm.ObjVal(out), nil
}

func builtinEnumerate(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "enumerate", args, 1, 2); err != nil {
		return vm.NilVal(), err
	}
	start := int64(0)
	if len(args) == 2 {
		if !args[1].IsInt() {
			return vm.NilVal(), machine.NewTypeError("enumerate() start must be an int")
		}
		start = args[1].AsInt()
	}
	elems, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	out := make([]vm.Value, len(elems))
	for i, e := range elems {
		out[i] = vm.ObjVal(&vm.Tuple{Elements: []vm.Value{vm.IntVal(start + int64(i)), e}})
	}
	return vm.ObjVal(&vm.List{Elements: out}), nil
}

func builtinZip(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) == 0 {
		return vm.ObjVal(&vm.List{}), nil
	}
	seqs := make([][]vm.Value, len(args))
	shortest := -1
	for i, a := range args {
		elems, err := elementsOf(machine, a)
		if err != nil {
			return vm.NilVal(), err
		}
		seqs[i] = elems
		if shortest == -1 || len(elems) < shortest {
			shortest = len(elems)
		}
	}
	out := make([]vm.Value, shortest)
	for i := 0; i < shortest; i++ {
		tupleElems := make([]vm.Value, len(seqs))
		for j, seq := range seqs {
			tupleElems[j] = seq[i]
		}
		out[i] = vm.ObjVal(&vm.Tuple{Elements: tupleElems})
	}
	return vm.ObjVal(&vm.List{Elements: out}), nil
}

func builtinSorted(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgcRange(machine, "sorted", args, 1, 2); err != nil {
		return vm.NilVal(), err
	}
	elems, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	out := make([]vm.Value, len(elems))
	copy(out, elems)

	reverse := false
	if len(args) == 2 {
		reverse = args[1].Truthy()
	}

	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		less, err := machine.LessThan(out[i], out[j])
		if err != nil {
			sortErr = err
			return false
		}
		if reverse {
			return !less && !out[i].Equals(machine, out[j])
		}
		return less
	})
	if sortErr != nil {
		return vm.NilVal(), sortErr
	}
	return vm.ObjVal(&vm.List{Elements: out}), nil
}

func builtinReversed(machine *vm.VM, args []vm.Value) (vm.Value, error) {
	if err := checkArgc(machine, "reversed", args, 1); err != nil {
		return vm.NilVal(), err
	}
	elems, err := elementsOf(machine, args[0])
	if err != nil {
		return vm.NilVal(), err
	}
	out := make([]vm.Value, len(elems))
	for i, e := range elems {
		out[len(elems)-1-i] = e
	}
	return vm.ObjVal(&vm.List{Elements: out}), nil
}
