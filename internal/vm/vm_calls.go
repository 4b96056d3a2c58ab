package vm

import "fmt"

// callValue dispatches a value as a callee and runs it to completion,
// adapted from the teacher's internal/vm/vm.go callValue but restructured
// around the frame-index-driven loop (spec §9's redesign note: "RETURN
// pops a frame and continues the same loop" rather than recursing). Used
// by CALL_DECORATOR and by objectsEqual's __eq__ dispatch, which need a
// synchronous result; the CALL opcode goes through executeCall instead.
func (vm *VM) callValue(callee Value, args []Value) (Value, error) {
	switch callee.Type {
	case ValObj:
		switch fn := callee.Obj.(type) {
		case *NativeFn:
			return fn.Fn(vm, args)
		case *Function:
			return vm.runFunction(fn, args, false)
		case *BoundMethod:
			if inner, ok := fn.Method.Obj.(*Function); ok {
				return vm.runFunctionOn(inner, fn.Receiver, args, false)
			}
			return NilVal(), fmt.Errorf("bound method wraps non-function")
		case *Class:
			inst := NewInstance(fn)
			if init, _, ok := fn.FindMethod("__init__"); ok {
				if initFn, ok := init.Obj.(*Function); ok {
					if _, err := vm.runFunctionOn(initFn, ObjVal(inst), args, true); err != nil {
						return NilVal(), err
					}
				}
			}
			return ObjVal(inst), nil
		}
	}
	return NilVal(), fmt.Errorf("'%s' object is not callable", callee.TypeName())
}

// runFunction pushes a fresh frame for fn with no bound receiver and runs
// the VM loop until that frame (and only that frame) returns.
func (vm *VM) runFunction(fn *Function, args []Value, isInitializer bool) (Value, error) {
	return vm.runFunctionOn(fn, Value{}, args, isInitializer)
}

// runFunctionOn is the shared call-setup path for plain functions, bound
// methods (receiver present) and __init__ dispatch: pads/truncates args to
// the function's declared defaults, pushes a new Frame, and drives the
// loop until that frame pops (spec §4.2 "Functions", §4.3 CALL semantics).
func (vm *VM) runFunctionOn(fn *Function, receiver Value, args []Value, isInitializer bool) (Value, error) {
	baseFrames := len(vm.frames)
	baseStack := len(vm.stack)

	hasReceiver := receiver.Type != ValNil || receiver.Obj != nil
	slotsBase := len(vm.stack)
	if hasReceiver {
		vm.push(receiver)
	} else {
		vm.push(ObjVal(fn)) // slot 0 placeholder so locals line up with CALL's convention
	}
	if err := vm.pushArgs(fn, args); err != nil {
		return NilVal(), err
	}

	vm.frames = append(vm.frames, Frame{
		Function:      fn,
		IP:            0,
		SlotsBase:     slotsBase,
		IsInitializer: isInitializer,
	})

	result, err := vm.runUntil(baseFrames)
	if err != nil {
		vm.frames = vm.frames[:baseFrames]
		vm.stack = vm.stack[:baseStack]
		return NilVal(), err
	}
	return result, nil
}

// pushArgs validates arity and pushes args padded with the function's
// trailing default values (spec §4.2's default-argument contract).
func (vm *VM) pushArgs(fn *Function, args []Value) error {
	required := fn.Arity - len(fn.Defaults)
	if len(args) < required || len(args) > fn.Arity {
		return &RuntimeError{Message: fmt.Sprintf("%s() takes %d argument(s) but %d were given", fn.Name, fn.Arity, len(args))}
	}
	for i := 0; i < fn.Arity; i++ {
		switch {
		case i < len(args):
			vm.push(args[i])
		default:
			vm.push(fn.Defaults[i-required])
		}
	}
	return nil
}

// executeCall implements the CALL opcode's five-way dispatch (spec §4.3,
// §4.4): the callee sits argc slots below the top of stack.
func (vm *VM) executeCall(argc int) error {
	callee := vm.peek(argc)
	args := make([]Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])

	if callee.Type != ValObj {
		return vm.raise(vm.typeError(fmt.Sprintf("'%s' object is not callable", callee.TypeName())))
	}

	switch fn := callee.Obj.(type) {
	case *NativeFn:
		result, err := fn.Fn(vm, args)
		if err != nil {
			return vm.raiseGoError(err)
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		vm.push(result)
		return nil

	case *Function:
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		calleeSlot := len(vm.stack)
		vm.push(ObjVal(fn))
		if err := vm.pushArgs(fn, args); err != nil {
			return vm.raiseGoError(err)
		}
		vm.frames = append(vm.frames, Frame{Function: fn, IP: 0, SlotsBase: calleeSlot})
		return nil

	case *BoundMethod:
		inner, ok := fn.Method.Obj.(*Function)
		if !ok {
			return vm.raise(vm.typeError("bound method wraps non-function"))
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		calleeSlot := len(vm.stack)
		vm.push(fn.Receiver)
		if err := vm.pushArgs(inner, args); err != nil {
			return vm.raiseGoError(err)
		}
		vm.frames = append(vm.frames, Frame{Function: inner, IP: 0, SlotsBase: calleeSlot, IsInitializer: inner.Name == "__init__"})
		return nil

	case *Class:
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		inst := NewInstance(fn)
		if init, _, ok := fn.FindMethod("__init__"); ok {
			if initFn, ok := init.Obj.(*Function); ok {
				calleeSlot := len(vm.stack)
				vm.push(ObjVal(inst))
				if err := vm.pushArgs(initFn, args); err != nil {
					return vm.raiseGoError(err)
				}
				vm.frames = append(vm.frames, Frame{Function: initFn, IP: 0, SlotsBase: calleeSlot, IsInitializer: true})
				return nil
			}
		}
		vm.push(ObjVal(inst))
		return nil

	case *Module:
		if !vm.hasLastMethod || vm.lastModuleName != fn.Name {
			return vm.raise(vm.attributeError(fmt.Sprintf("module %q has no callable attribute pending", fn.Name)))
		}
		vm.hasLastMethod = false
		if vm.modules == nil {
			return vm.raise(vm.attributeError("no extension registry configured"))
		}
		result, err := vm.modules.Call(vm, vm.lastModuleName, vm.lastMethodName, args)
		if err != nil {
			// spec §8: an unresolved/unregistered module's first
			// attribute-call raises AttributeError, not a bare error.
			return vm.raise(vm.attributeError(err.Error()))
		}
		vm.stack = vm.stack[:len(vm.stack)-argc-1]
		vm.push(result)
		return nil

	case *superProxy:
		return vm.raise(vm.typeError("super object is not callable"))

	default:
		return vm.raise(vm.typeError(fmt.Sprintf("'%s' object is not callable", callee.TypeName())))
	}
}

// executeCallDecorator implements CALL_DECORATOR(depth): the decorator sits
// `depth` slots below the target (always 1, per the compiler's emission).
func (vm *VM) executeCallDecorator(depth int) error {
	target := vm.pop()
	decorator := vm.pop()
	result, err := vm.callValue(decorator, []Value{target})
	if err != nil {
		return vm.raiseGoError(err)
	}
	vm.push(result)
	return nil
}

// opCallEnter dispatches __enter__ on the top-of-stack receiver, replacing
// it with __enter__'s return value (spec §4.2 "with").
func (vm *VM) opCallEnter() error {
	receiver := vm.pop()
	result, err := vm.invokeDunder(receiver, "__enter__", nil)
	if err != nil {
		return vm.raiseGoError(err)
	}
	vm.push(result)
	return nil
}

// opCallExit dispatches __exit__(None, None, None) on the top-of-stack
// receiver, leaving its return value on the stack (the compiler emits an
// explicit POP afterward, spec §9's acknowledged deviation: __exit__ only
// runs on normal exit, not on a raised exception in the body).
func (vm *VM) opCallExit() error {
	receiver := vm.pop()
	result, err := vm.invokeDunder(receiver, "__exit__", []Value{NilVal(), NilVal(), NilVal()})
	if err != nil {
		return vm.raiseGoError(err)
	}
	vm.push(result)
	return nil
}

// invokeDunder looks up a dunder method on an Instance and calls it,
// the shared trampoline spec §9 asks for ("factor the dunder dispatch
// logic that CALL_ENTER/CALL_EXIT/comparisons/__eq__ all need").
func (vm *VM) invokeDunder(receiver Value, name string, args []Value) (Value, error) {
	inst, ok := receiver.Obj.(*Instance)
	if !ok {
		return NilVal(), &RuntimeError{Message: fmt.Sprintf("'%s' object has no method %s", receiver.TypeName(), name)}
	}
	method, _, found := inst.Class.FindMethod(name)
	if !found {
		return NilVal(), &RuntimeError{Message: fmt.Sprintf("'%s' object has no method %s", inst.Class.Name, name)}
	}
	fn, ok := method.Obj.(*Function)
	if !ok {
		return NilVal(), &RuntimeError{Message: fmt.Sprintf("%s is not a function", name)}
	}
	return vm.runFunctionOn(fn, receiver, args, false)
}

// getProperty implements GET_PROPERTY's Instance/Class/Module/superProxy
// dispatch (spec §3, §4.2, §4.5).
func (vm *VM) getProperty(receiver Value, nameIdx int) (Value, error) {
	name := vm.names.Lookup(nameIdx)

	switch obj := receiver.Obj.(type) {
	case *Instance:
		if v, ok := obj.Attrs.Get(name); ok {
			return v, nil
		}
		if method, _, ok := obj.Class.FindMethod(name); ok {
			return ObjVal(&BoundMethod{Receiver: receiver, Method: method}), nil
		}
		return NilVal(), &RuntimeError{Value: vm.attributeError(fmt.Sprintf("'%s' object has no attribute '%s'", obj.Class.Name, name))}

	case *Class:
		if method, _, ok := obj.FindMethod(name); ok {
			return method, nil
		}
		return NilVal(), &RuntimeError{Value: vm.attributeError(fmt.Sprintf("type object '%s' has no attribute '%s'", obj.Name, name))}

	case *superProxy:
		if obj.StartClass == nil {
			return NilVal(), &RuntimeError{Value: vm.attributeError("super: no parent class")}
		}
		if method, _, ok := obj.StartClass.FindMethod(name); ok {
			return ObjVal(&BoundMethod{Receiver: obj.Receiver, Method: method}), nil
		}
		return NilVal(), &RuntimeError{Value: vm.attributeError(fmt.Sprintf("'super' object has no attribute '%s'", name))}

	case *Module:
		// Rendezvous: the value produced here is only ever meaningful when
		// immediately followed by CALL, which reads lastModuleName/lastMethodName
		// rather than this placeholder (spec §4.3 CALL case 5).
		vm.lastModuleName = obj.Name
		vm.lastMethodName = name
		vm.hasLastMethod = true
		return receiver, nil

	case *String:
		if method, ok := vm.getStringMethod(obj, name); ok {
			return method, nil
		}
		return NilVal(), &RuntimeError{Value: vm.attributeError(fmt.Sprintf("'str' object has no attribute '%s'", name))}

	default:
		return NilVal(), &RuntimeError{Value: vm.attributeError(fmt.Sprintf("'%s' object has no attribute '%s'", receiver.TypeName(), name))}
	}
}

// setProperty implements SET_PROPERTY, Instance-only (spec §3: attribute
// assignment is only meaningful on instances).
func (vm *VM) setProperty(receiver Value, nameIdx int, value Value) error {
	inst, ok := receiver.Obj.(*Instance)
	if !ok {
		return &RuntimeError{Value: vm.typeError(fmt.Sprintf("'%s' object does not support attribute assignment", receiver.TypeName()))}
	}
	inst.Attrs.Set(vm.names.Lookup(nameIdx), value)
	return nil
}
