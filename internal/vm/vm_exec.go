package vm

import "fmt"

// run drives the dispatch loop to completion for the top-level Call entry
// point (spec §4.4's "Main loop reads opcode, switches").
func (vm *VM) run() (Value, error) {
	return vm.runUntil(0)
}

// runUntil executes instructions until the frame stack has unwound back
// to baseFrames, frame-index-driven rather than recursive (spec §9's
// redesign note): a CALL opcode pushes a Frame and the SAME loop keeps
// going; a RETURN pops one and the loop notices the count drop. Native Go
// recursion into runUntil only happens for dunder trampolines that need a
// synchronous result (invokeDunder, objectsEqual's __eq__ call), not for
// ordinary user-level calls.
func (vm *VM) runUntil(baseFrames int) (Value, error) {
	for len(vm.frames) > baseFrames {
		if err := vm.step(); err != nil {
			return NilVal(), err
		}
	}
	return vm.pop(), nil
}

func (vm *VM) readByte() byte {
	f := vm.currentFrame()
	b := f.Function.Chunk.Code[f.IP]
	f.IP++
	return b
}

func (vm *VM) readUint16() int {
	f := vm.currentFrame()
	v := f.Function.Chunk.ReadUint16(f.IP)
	f.IP += 2
	return v
}

func (vm *VM) readConstant() Value {
	idx := vm.readUint16()
	return vm.currentFrame().Function.Chunk.Constants[idx]
}

// step executes exactly one instruction.
func (vm *VM) step() error {
	frame := vm.currentFrame()
	if vm.Trace != nil {
		vm.Trace.Debug("frame=%d ip=%d op=%s stack=%d", len(vm.frames)-1, frame.IP, Opcode(frame.Function.Chunk.Code[frame.IP]), len(vm.stack))
	}
	op := Opcode(vm.readByte())

	switch op {
	case OP_CONSTANT:
		vm.push(vm.readConstant())
	case OP_NIL:
		vm.push(NilVal())
	case OP_TRUE:
		vm.push(BoolVal(true))
	case OP_FALSE:
		vm.push(BoolVal(false))

	case OP_POP:
		vm.pop()
	case OP_DUP:
		vm.push(vm.peek(0))
	case OP_SWAP:
		n := len(vm.stack)
		vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]

	case OP_GET_LOCAL:
		slot := vm.readUint16()
		vm.push(vm.stack[frame.SlotsBase+slot])
	case OP_SET_LOCAL:
		slot := vm.readUint16()
		vm.stack[frame.SlotsBase+slot] = vm.peek(0)

	case OP_GET_GLOBAL:
		name := vm.names.Lookup(vm.readUint16())
		v, ok := vm.globals.Get(name)
		if !ok {
			return vm.raise(vm.nameError(fmt.Sprintf("name '%s' is not defined", name)))
		}
		vm.push(v)
	case OP_DEFINE_GLOBAL:
		name := vm.names.Lookup(vm.readUint16())
		vm.globals.Define(name, vm.pop())
	case OP_SET_GLOBAL:
		name := vm.names.Lookup(vm.readUint16())
		vm.globals.Define(name, vm.peek(0)) // first write creates the global

	case OP_GET_PROPERTY:
		idx := vm.readUint16()
		receiver := vm.pop()
		v, err := vm.getProperty(receiver, idx)
		if err != nil {
			return vm.raiseGoError(err)
		}
		vm.push(v)
	case OP_SET_PROPERTY:
		idx := vm.readUint16()
		value := vm.pop()
		receiver := vm.pop()
		if err := vm.setProperty(receiver, idx, value); err != nil {
			return vm.raiseGoError(err)
		}
		vm.push(value)

	case OP_ADD, OP_SUBTRACT, OP_MULTIPLY, OP_DIVIDE, OP_FLOOR_DIVIDE, OP_POWER, OP_MODULO,
		OP_GREATER, OP_GREATER_EQUAL, OP_LESS, OP_LESS_EQUAL, OP_IN:
		return vm.binaryOp(op)
	case OP_NEGATE:
		return vm.opNegate()
	case OP_NOT:
		v := vm.pop()
		vm.push(BoolVal(!v.Truthy()))
	case OP_EQUAL:
		return vm.opEqual()

	case OP_JUMP:
		offset := vm.readUint16()
		frame.IP += offset
	case OP_JUMP_IF_FALSE:
		offset := vm.readUint16()
		if !vm.peek(0).Truthy() {
			frame.IP += offset
		}
	case OP_JUMP_IF_TRUE:
		offset := vm.readUint16()
		if vm.peek(0).Truthy() {
			frame.IP += offset
		}
	case OP_LOOP:
		offset := vm.readUint16()
		frame.IP -= offset

	case OP_CALL:
		argc := int(vm.readByte())
		if len(vm.frames) >= vm.MaxFrames {
			return vm.raise(vm.newError("RuntimeError", "stack overflow"))
		}
		return vm.executeCall(argc)
	case OP_CALL_DECORATOR:
		depth := int(vm.readByte())
		return vm.executeCallDecorator(depth)
	case OP_CALL_ENTER:
		return vm.opCallEnter()
	case OP_CALL_EXIT:
		return vm.opCallExit()

	case OP_RETURN:
		return vm.opReturn()

	case OP_LOAD_MODULE:
		idx := vm.readUint16()
		name := vm.names.Lookup(idx)
		if vm.modules == nil {
			return vm.raise(vm.attributeError(fmt.Sprintf("no extension registry configured for module '%s'", name)))
		}
		mod, err := vm.modules.Load(name)
		if err != nil {
			mod = &Module{Name: name} // spec §8: unresolved import still yields an opaque Module
		}
		vm.push(ObjVal(mod))

	case OP_BUILD_LIST:
		n := vm.readUint16()
		elems := make([]Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(ObjVal(&List{Elements: elems}))
	case OP_BUILD_TUPLE:
		n := vm.readUint16()
		elems := make([]Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(ObjVal(&Tuple{Elements: elems}))
	case OP_BUILD_SET:
		n := vm.readUint16()
		set := NewSet()
		for _, v := range vm.stack[len(vm.stack)-n:] {
			set.Add(vm, v)
		}
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(ObjVal(set))
	case OP_BUILD_DICT:
		n := vm.readUint16()
		d := NewDict()
		pairs := vm.stack[len(vm.stack)-2*n:]
		for i := 0; i < n; i++ {
			k := pairs[2*i]
			v := pairs[2*i+1]
			if !k.IsString() {
				return vm.raise(vm.typeError("dict keys must be strings"))
			}
			d.Set(k.AsString(), v)
		}
		vm.stack = vm.stack[:len(vm.stack)-2*n]
		vm.push(ObjVal(d))
	case OP_LIST_APPEND:
		v := vm.pop()
		list, ok := vm.pop().Obj.(*List) // consumes the accumulator copy
		if !ok {
			return vm.raise(vm.typeError("LIST_APPEND on non-list"))
		}
		list.Elements = append(list.Elements, v)
	case OP_SET_ADD:
		v := vm.pop()
		set, ok := vm.peek(0).Obj.(*Set)
		if !ok {
			return vm.raise(vm.typeError("SET_ADD on non-set"))
		}
		set.Add(vm, v)

	case OP_INDEX_GET:
		key := vm.pop()
		container := vm.pop()
		v, err := vm.indexGet(container, key)
		if err != nil {
			return vm.raiseGoError(err)
		}
		vm.push(v)
	case OP_INDEX_SET:
		value := vm.pop()
		key := vm.pop()
		container := vm.pop()
		if err := vm.indexSet(container, key, value); err != nil {
			return vm.raiseGoError(err)
		}
		vm.push(value)
	case OP_SLICE_GET:
		step := vm.pop()
		stop := vm.pop()
		start := vm.pop()
		obj := vm.pop()
		v, err := vm.sliceGet(obj, start, stop, step)
		if err != nil {
			return vm.raiseGoError(err)
		}
		vm.push(v)

	case OP_FOR_ITER_LOCAL:
		varSlot := vm.readUint16()
		iterSlot := vm.readUint16()
		idxSlot := vm.readUint16()
		return vm.forIterLocal(frame, varSlot, iterSlot, idxSlot)

	case OP_TERNARY:
		// Declared for instruction-set fidelity (spec §4.3); the compiler
		// realizes `a if cond else b` as a JUMP_IF_FALSE/JUMP pair instead
		// (see DESIGN.md), so this opcode is never emitted.
		return fmt.Errorf("OP_TERNARY is not emitted by this compiler")

	case OP_CLASS:
		idx := vm.readUint16()
		name := vm.names.Lookup(idx)
		vm.push(ObjVal(NewClass(name, nil)))
	case OP_INHERIT:
		parentVal := vm.pop()
		classVal := vm.peek(0)
		parent, ok := parentVal.Obj.(*Class)
		if !ok {
			return vm.raise(vm.typeError("can only inherit from a class"))
		}
		class := classVal.Obj.(*Class)
		class.Parent = parent
		for _, k := range parent.Methods.Keys {
			v, _ := parent.Methods.Get(k)
			class.Methods.Set(k, v)
		}
	case OP_METHOD:
		idx := vm.readUint16()
		name := vm.names.Lookup(idx)
		methodVal := vm.pop()
		class := vm.peek(0).Obj.(*Class)
		if fn, ok := methodVal.Obj.(*Function); ok {
			fn.Owner = class
		}
		class.Methods.Set(name, methodVal)

	case OP_ASSERT:
		v := vm.pop()
		if !v.Truthy() {
			return vm.raise(vm.assertionError("assertion failed"))
		}
	case OP_DELETE:
		idx := vm.readUint16()
		name := vm.names.Lookup(idx)
		if !vm.globals.Delete(name) {
			return vm.raise(vm.nameError(fmt.Sprintf("name '%s' is not defined", name)))
		}
	case OP_DELETE_INDEX:
		key := vm.pop()
		container := vm.pop()
		if err := vm.deleteIndex(container, key); err != nil {
			return vm.raiseGoError(err)
		}
	case OP_RAISE:
		v := vm.pop()
		return vm.raise(v)
	case OP_TRY_BEGIN:
		offset := vm.readUint16()
		vm.handlers = append(vm.handlers, ExceptionHandler{
			HandlerIP:   frame.IP + offset,
			StackHeight: len(vm.stack),
			FrameIndex:  len(vm.frames) - 1,
		})
	case OP_TRY_END:
		if len(vm.handlers) > 0 {
			vm.handlers = vm.handlers[:len(vm.handlers)-1]
		}
	case OP_JUMP_IF_EXCEPTION:
		// Declared for instruction-set fidelity; this compiler's try/except
		// has a single catch-all handler per TRY_BEGIN with no per-type
		// dispatch, so it is never emitted (see tryStatement in
		// compiler_statements.go).
		offset := vm.readUint16()
		_ = offset
		return fmt.Errorf("OP_JUMP_IF_EXCEPTION is not emitted by this compiler")

	case OP_HALT:
		vm.frames = vm.frames[:0]

	default:
		return fmt.Errorf("unknown opcode %d", op)
	}
	return nil
}

// opReturn implements spec §4.4's CALL case 2 return path plus the
// __init__ substitution (case 3): "discard __init__'s return and push the
// instance" is realized here via the IsInitializer flag rather than at
// call time, since RETURN is the single place every call path converges.
func (vm *VM) opReturn() error {
	result := vm.pop()
	frame := vm.frames[len(vm.frames)-1]
	var receiver Value
	if frame.IsInitializer {
		receiver = vm.stack[frame.SlotsBase]
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.stack = vm.stack[:frame.SlotsBase]
	if frame.IsInitializer {
		vm.push(receiver)
	} else {
		vm.push(result)
	}
	return nil
}
