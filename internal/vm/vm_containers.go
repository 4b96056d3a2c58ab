package vm

import "fmt"

// indexGet implements INDEX_GET for List/Tuple/Dict/String, trampolining
// through __getitem__ for Instance receivers (spec §4.4). Takes the
// redesign-flagged option of raising IndexError on an out-of-range
// numeric index rather than the baseline's "return Nil" leniency.
func (vm *VM) indexGet(container, key Value) (Value, error) {
	if inst, ok := container.Obj.(*Instance); ok {
		if method, _, ok := inst.Class.FindMethod("__getitem__"); ok {
			if fn, ok := method.Obj.(*Function); ok {
				return vm.runFunctionOn(fn, container, []Value{key}, false)
			}
		}
		return NilVal(), &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object is not subscriptable", inst.Class.Name))}
	}

	switch c := container.Obj.(type) {
	case *List:
		i, err := indexArg(key, len(c.Elements))
		if err != nil {
			return NilVal(), &RuntimeError{Value: vm.indexError(err.Error())}
		}
		return c.Elements[i], nil
	case *Tuple:
		i, err := indexArg(key, len(c.Elements))
		if err != nil {
			return NilVal(), &RuntimeError{Value: vm.indexError(err.Error())}
		}
		return c.Elements[i], nil
	case *String:
		i, err := indexArg(key, len(c.Value))
		if err != nil {
			return NilVal(), &RuntimeError{Value: vm.indexError(err.Error())}
		}
		return ObjVal(&String{Value: string(c.Value[i])}), nil
	case *Dict:
		if !key.IsString() {
			return NilVal(), &RuntimeError{Value: vm.typeError("dict keys must be strings")}
		}
		v, ok := c.Get(key.AsString())
		if !ok {
			return NilVal(), &RuntimeError{Value: vm.newError("KeyError", key.Inspect())}
		}
		return v, nil
	}
	return NilVal(), &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object is not subscriptable", container.TypeName()))}
}

// indexSet implements INDEX_SET, trampolining through __setitem__ for
// Instance receivers.
func (vm *VM) indexSet(container, key, value Value) error {
	if inst, ok := container.Obj.(*Instance); ok {
		if method, _, ok := inst.Class.FindMethod("__setitem__"); ok {
			if fn, ok := method.Obj.(*Function); ok {
				_, err := vm.runFunctionOn(fn, container, []Value{key, value}, false)
				return err
			}
		}
		return &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object does not support item assignment", inst.Class.Name))}
	}

	switch c := container.Obj.(type) {
	case *List:
		i, err := indexArg(key, len(c.Elements))
		if err != nil {
			return &RuntimeError{Value: vm.indexError(err.Error())}
		}
		c.Elements[i] = value
		return nil
	case *Dict:
		if !key.IsString() {
			return &RuntimeError{Value: vm.typeError("dict keys must be strings")}
		}
		c.Set(key.AsString(), value)
		return nil
	}
	return &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object does not support item assignment", container.TypeName()))}
}

// deleteIndex implements DELETE_INDEX (spec's supplemented `del obj[key]`).
func (vm *VM) deleteIndex(container, key Value) error {
	switch c := container.Obj.(type) {
	case *List:
		i, err := indexArg(key, len(c.Elements))
		if err != nil {
			return &RuntimeError{Value: vm.indexError(err.Error())}
		}
		c.Elements = append(c.Elements[:i], c.Elements[i+1:]...)
		return nil
	case *Dict:
		if !key.IsString() {
			return &RuntimeError{Value: vm.typeError("dict keys must be strings")}
		}
		if !c.Delete(key.AsString()) {
			return &RuntimeError{Value: vm.newError("KeyError", key.Inspect())}
		}
		return nil
	}
	return &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object does not support item deletion", container.TypeName()))}
}

// indexArg normalizes a numeric index (negative indices count from the
// end, spec's Python-style convention) and bounds-checks it.
func indexArg(key Value, length int) (int, error) {
	if !key.IsInt() {
		return 0, fmt.Errorf("index must be an integer")
	}
	i := int(key.AsInt())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, fmt.Errorf("index out of range")
	}
	return i, nil
}

// sliceGet implements SLICE_GET (spec §4.4): stack order is
// [obj, start|nil, stop|nil, step|nil], normalized per Python slice rules.
func (vm *VM) sliceGet(obj, start, stop, step Value) (Value, error) {
	stepN := 1
	if !step.IsNil() {
		if !step.IsInt() {
			return NilVal(), &RuntimeError{Value: vm.typeError("slice step must be an integer")}
		}
		stepN = int(step.AsInt())
		if stepN == 0 {
			return NilVal(), &RuntimeError{Value: vm.valueError("slice step cannot be zero")}
		}
	}

	switch c := obj.Obj.(type) {
	case *List:
		lo, hi := normalizeSlice(start, stop, len(c.Elements), stepN)
		return ObjVal(&List{Elements: sliceValues(c.Elements, lo, hi, stepN)}), nil
	case *Tuple:
		lo, hi := normalizeSlice(start, stop, len(c.Elements), stepN)
		return ObjVal(&Tuple{Elements: sliceValues(c.Elements, lo, hi, stepN)}), nil
	case *String:
		lo, hi := normalizeSlice(start, stop, len(c.Value), stepN)
		var b []byte
		if stepN > 0 {
			for i := lo; i < hi; i += stepN {
				b = append(b, c.Value[i])
			}
		} else {
			for i := lo; i > hi; i += stepN {
				b = append(b, c.Value[i])
			}
		}
		return ObjVal(&String{Value: string(b)}), nil
	}
	return NilVal(), &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object is not sliceable", obj.TypeName()))}
}

// normalizeSlice applies Python's negative-index and direction-dependent
// default rules, returning a [lo, hi) range to walk by stepN.
func normalizeSlice(start, stop Value, length, stepN int) (int, int) {
	clamp := func(i, lo, hi int) int {
		if i < lo {
			return lo
		}
		if i > hi {
			return hi
		}
		return i
	}
	var lo, hi int
	if stepN > 0 {
		lo, hi = 0, length
	} else {
		lo, hi = length-1, -1
	}
	if !start.IsNil() && start.IsInt() {
		s := int(start.AsInt())
		if s < 0 {
			s += length
		}
		if stepN > 0 {
			lo = clamp(s, 0, length)
		} else {
			lo = clamp(s, -1, length-1)
		}
	}
	if !stop.IsNil() && stop.IsInt() {
		s := int(stop.AsInt())
		if s < 0 {
			s += length
		}
		if stepN > 0 {
			hi = clamp(s, 0, length)
		} else {
			hi = clamp(s, -1, length-1)
		}
	}
	return lo, hi
}

func sliceValues(elems []Value, lo, hi, stepN int) []Value {
	var out []Value
	if stepN > 0 {
		for i := lo; i < hi; i += stepN {
			out = append(out, elems[i])
		}
	} else {
		for i := lo; i > hi; i += stepN {
			out = append(out, elems[i])
		}
	}
	return out
}

// forIterLocal implements FOR_ITER_LOCAL(var, iter, idx) (spec §4.4): the
// three slots are frame-relative locals reserved by the compiler's loop
// shape (compiler_loops.go's forStatement / compiler_expressions.go's
// compileListComprehension).
func (vm *VM) forIterLocal(frame *Frame, varSlot, iterSlot, idxSlot int) error {
	iterVal := vm.stack[frame.SlotsBase+iterSlot]
	idxVal := vm.stack[frame.SlotsBase+idxSlot]
	idx := int(idxVal.AsInt())

	switch c := iterVal.Obj.(type) {
	case *List:
		if idx >= len(c.Elements) {
			vm.push(BoolVal(false))
			return nil
		}
		vm.stack[frame.SlotsBase+varSlot] = c.Elements[idx]
	case *Tuple:
		if idx >= len(c.Elements) {
			vm.push(BoolVal(false))
			return nil
		}
		vm.stack[frame.SlotsBase+varSlot] = c.Elements[idx]
	case *Dict:
		if idx >= len(c.Keys) {
			vm.push(BoolVal(false))
			return nil
		}
		vm.stack[frame.SlotsBase+varSlot] = ObjVal(&String{Value: c.Keys[idx]})
	case *Set:
		if idx >= len(c.Elements) {
			vm.push(BoolVal(false))
			return nil
		}
		vm.stack[frame.SlotsBase+varSlot] = c.Elements[idx]
	case *String:
		if idx >= len(c.Value) {
			vm.push(BoolVal(false))
			return nil
		}
		vm.stack[frame.SlotsBase+varSlot] = ObjVal(&String{Value: string(c.Value[idx])})
	default:
		return vm.raise(vm.typeError(fmt.Sprintf("'%s' object is not iterable", iterVal.TypeName())))
	}

	vm.stack[frame.SlotsBase+idxSlot] = IntVal(int64(idx + 1))
	vm.push(BoolVal(true))
	return nil
}
