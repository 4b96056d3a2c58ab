package vm

import "fmt"

// newError builds an exception Value from a conventional error-kind name
// and message. Built-in exceptions are plain Strings shaped "Kind: message"
// rather than a dedicated Exception object type, since spec §3's value
// model has no exception-class hierarchy of its own (only named error
// kinds appear in prose); this keeps raise/except working uniformly over
// both user-raised and implicit runtime values.
func (vm *VM) newError(kind, msg string) Value {
	return ObjVal(&String{Value: kind + ": " + msg})
}

func (vm *VM) typeError(msg string) Value        { return vm.newError("TypeError", msg) }
func (vm *VM) attributeError(msg string) Value    { return vm.newError("AttributeError", msg) }
func (vm *VM) nameError(msg string) Value         { return vm.newError("NameError", msg) }
func (vm *VM) indexError(msg string) Value        { return vm.newError("IndexError", msg) }
func (vm *VM) zeroDivisionError(msg string) Value { return vm.newError("ZeroDivisionError", msg) }
func (vm *VM) valueError(msg string) Value        { return vm.newError("ValueError", msg) }
func (vm *VM) assertionError(msg string) Value    { return vm.newError("AssertionError", msg) }

// raise is the single unification point for `raise expr` and every
// implicit runtime error (spec §4.4's "Any runtime error ... is
// equivalent to RAISE with a built-in error value"): pop the nearest
// handler, restore stack/frame height to what it recorded, jump the
// target frame to handler_ip, and push the exception value for the
// except clause to bind or discard. Returns a non-nil *RuntimeError only
// when no handler remains, for the caller to propagate to the host.
func (vm *VM) raise(excValue Value) error {
	if len(vm.handlers) == 0 {
		return &RuntimeError{Message: vm.stringify(excValue), Value: excValue}
	}
	h := vm.handlers[len(vm.handlers)-1]
	vm.handlers = vm.handlers[:len(vm.handlers)-1]
	vm.frames = vm.frames[:h.FrameIndex+1]
	vm.stack = vm.stack[:h.StackHeight]
	vm.frames[len(vm.frames)-1].IP = h.HandlerIP
	vm.push(excValue)
	return nil
}

// raiseGoError wraps a Go error surfaced from a native function or
// internal helper as a raised exception value. A *RuntimeError already
// carries its own exception Value (constructed by one of the New*Error
// helpers below, or by an internal opcode handler) and is raised as-is;
// any other error is wrapped under the generic "Error" kind.
func (vm *VM) raiseGoError(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RuntimeError); ok && re.Value.Obj != nil {
		return vm.raise(re.Value)
	}
	return vm.raise(vm.newError("Error", err.Error()))
}

// New*Error build the same "Kind: message" exception values the dispatch
// loop raises internally, exported so internal/builtins (which cannot
// reach the unexported typeError/valueError/... helpers from outside this
// package) can signal a properly-kinded exception from a NativeFn.
func (vm *VM) NewTypeError(format string, args ...any) error {
	return &RuntimeError{Value: vm.typeError(fmt.Sprintf(format, args...))}
}
func (vm *VM) NewValueError(format string, args ...any) error {
	return &RuntimeError{Value: vm.valueError(fmt.Sprintf(format, args...))}
}
func (vm *VM) NewIndexError(format string, args ...any) error {
	return &RuntimeError{Value: vm.indexError(fmt.Sprintf(format, args...))}
}
func (vm *VM) NewKeyError(format string, args ...any) error {
	return &RuntimeError{Value: vm.newError("KeyError", fmt.Sprintf(format, args...))}
}
func (vm *VM) NewNameError(format string, args ...any) error {
	return &RuntimeError{Value: vm.nameError(fmt.Sprintf(format, args...))}
}
func (vm *VM) NewAttributeError(format string, args ...any) error {
	return &RuntimeError{Value: vm.attributeError(fmt.Sprintf(format, args...))}
}
func (vm *VM) NewZeroDivisionError(format string, args ...any) error {
	return &RuntimeError{Value: vm.zeroDivisionError(fmt.Sprintf(format, args...))}
}
func (vm *VM) NewStopIteration() error {
	return &RuntimeError{Value: vm.newError("StopIteration", "iteration stopped")}
}

// Stringify exposes stringify to internal/builtins so print() honors a
// user class's __str__ the same way the language's own string coercions
// do.
func (vm *VM) Stringify(v Value) string { return vm.stringify(v) }

// stringify renders a Value for print()/str()/error messages, dispatching
// to __str__ when the receiver is an Instance that defines it (spec §4.4's
// "for print/string via __str__" trampoline note).
func (vm *VM) stringify(v Value) string {
	if inst, ok := v.Obj.(*Instance); ok {
		if method, _, ok := inst.Class.FindMethod("__str__"); ok {
			if fn, ok := method.Obj.(*Function); ok {
				result, err := vm.runFunctionOn(fn, v, nil, false)
				if err == nil {
					return result.Str()
				}
			}
		}
	}
	return v.Str()
}

// ---- arithmetic (spec §4.4 "ADD ... Same trampoline for SUBTRACT/...") ----

// dunderName maps an arithmetic/comparison opcode to the instance method
// it trampolines to when the left operand is an Instance.
func dunderName(op Opcode) string {
	switch op {
	case OP_ADD:
		return "__add__"
	case OP_SUBTRACT:
		return "__sub__"
	case OP_MULTIPLY:
		return "__mul__"
	case OP_DIVIDE:
		return "__truediv__"
	case OP_FLOOR_DIVIDE:
		return "__floordiv__"
	case OP_MODULO:
		return "__mod__"
	case OP_POWER:
		return "__pow__"
	case OP_EQUAL:
		return "__eq__"
	case OP_LESS:
		return "__lt__"
	case OP_LESS_EQUAL:
		return "__le__"
	case OP_GREATER:
		return "__gt__"
	case OP_GREATER_EQUAL:
		return "__ge__"
	case OP_IN:
		return "__contains__"
	}
	return ""
}

// binaryOp implements every arithmetic/comparison opcode's shared operand
// dispatch: Instance-with-dunder first, then the built-in type rules.
func (vm *VM) binaryOp(op Opcode) error {
	b := vm.pop()
	a := vm.pop()

	recv, other := a, b
	if op == OP_IN {
		recv, other = b, a // `value in container` dispatches on the container
	}
	if inst, ok := recv.Obj.(*Instance); ok {
		if name := dunderName(op); name != "" {
			if method, _, ok := inst.Class.FindMethod(name); ok {
				fn, ok := method.Obj.(*Function)
				if !ok {
					return vm.raiseGoError(fmt.Errorf("%s is not a function", name))
				}
				result, err := vm.runFunctionOn(fn, recv, []Value{other}, false)
				if err != nil {
					return vm.raiseGoError(err)
				}
				vm.push(result)
				return nil
			}
		}
		return vm.raise(vm.typeError(fmt.Sprintf("unsupported operand type(s) for %s: '%s'", op, recv.TypeName())))
	}

	switch op {
	case OP_ADD:
		return vm.opAdd(a, b)
	case OP_SUBTRACT:
		return vm.numericOp(a, b, "-", func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case OP_MULTIPLY:
		return vm.opMultiply(a, b)
	case OP_DIVIDE:
		return vm.opDivide(a, b)
	case OP_FLOOR_DIVIDE:
		return vm.opFloorDivide(a, b)
	case OP_MODULO:
		return vm.opModulo(a, b)
	case OP_POWER:
		return vm.opPower(a, b)
	case OP_GREATER:
		return vm.opCompare(a, b, func(c int) bool { return c > 0 })
	case OP_GREATER_EQUAL:
		return vm.opCompare(a, b, func(c int) bool { return c >= 0 })
	case OP_LESS:
		return vm.opCompare(a, b, func(c int) bool { return c < 0 })
	case OP_LESS_EQUAL:
		return vm.opCompare(a, b, func(c int) bool { return c <= 0 })
	case OP_IN:
		return vm.opIn(a, b)
	}
	return fmt.Errorf("unhandled binary opcode %s", op)
}

func (vm *VM) opAdd(a, b Value) error {
	if a.IsString() || b.IsString() {
		vm.push(ObjVal(&String{Value: vm.stringify(a) + vm.stringify(b)}))
		return nil
	}
	if la, ok := a.Obj.(*List); ok {
		lb, ok := b.Obj.(*List)
		if !ok {
			return vm.raise(vm.typeError("can only concatenate list with list"))
		}
		merged := make([]Value, 0, len(la.Elements)+len(lb.Elements))
		merged = append(merged, la.Elements...)
		merged = append(merged, lb.Elements...)
		vm.push(ObjVal(&List{Elements: merged}))
		return nil
	}
	return vm.numericOp(a, b, "+", func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
}

func (vm *VM) opMultiply(a, b Value) error {
	if la, ok := a.Obj.(*List); ok && b.IsInt() {
		vm.push(ObjVal(&List{Elements: repeatValues(la.Elements, int(b.AsInt()))}))
		return nil
	}
	if a.IsString() && b.IsInt() {
		s := ""
		for i := int64(0); i < b.AsInt(); i++ {
			s += a.AsString()
		}
		vm.push(ObjVal(&String{Value: s}))
		return nil
	}
	return vm.numericOp(a, b, "*", func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
}

func repeatValues(elems []Value, n int) []Value {
	if n <= 0 {
		return nil
	}
	out := make([]Value, 0, len(elems)*n)
	for i := 0; i < n; i++ {
		out = append(out, elems...)
	}
	return out
}

// numericOp implements spec §4.4's numeric-promotion rule: Int op Int
// stays Int, any Float operand promotes both sides to Float.
func (vm *VM) numericOp(a, b Value, symbol string, intOp func(x, y int64) int64, floatOp func(x, y float64) float64) error {
	if !a.IsNumber() || !b.IsNumber() {
		return vm.raise(vm.typeError(fmt.Sprintf("unsupported operand type(s) for %s: '%s' and '%s'", symbol, a.TypeName(), b.TypeName())))
	}
	if a.IsInt() && b.IsInt() {
		vm.push(IntVal(intOp(a.AsInt(), b.AsInt())))
		return nil
	}
	vm.push(FloatVal(floatOp(asFloat(a), asFloat(b))))
	return nil
}

func asFloat(v Value) float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// opDivide implements spec §4.4's DIVIDE: Int/Int truncates toward zero
// (C-style), any Float operand promotes to Float division.
func (vm *VM) opDivide(a, b Value) error {
	if !a.IsNumber() || !b.IsNumber() {
		return vm.raise(vm.typeError(fmt.Sprintf("unsupported operand type(s) for /: '%s' and '%s'", a.TypeName(), b.TypeName())))
	}
	if a.IsInt() && b.IsInt() {
		if b.AsInt() == 0 {
			return vm.raise(vm.zeroDivisionError("division by zero"))
		}
		vm.push(IntVal(a.AsInt() / b.AsInt()))
		return nil
	}
	if asFloat(b) == 0 {
		return vm.raise(vm.zeroDivisionError("division by zero"))
	}
	vm.push(FloatVal(asFloat(a) / asFloat(b)))
	return nil
}

// opFloorDivide takes the redesign-flagged option (spec §9): true floor
// division (rounds toward -infinity), diverging from DIVIDE's C-style
// truncation above.
func (vm *VM) opFloorDivide(a, b Value) error {
	if !a.IsNumber() || !b.IsNumber() {
		return vm.raise(vm.typeError(fmt.Sprintf("unsupported operand type(s) for //: '%s' and '%s'", a.TypeName(), b.TypeName())))
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		if y == 0 {
			return vm.raise(vm.zeroDivisionError("integer division or modulo by zero"))
		}
		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}
		vm.push(IntVal(q))
		return nil
	}
	fx, fy := asFloat(a), asFloat(b)
	if fy == 0 {
		return vm.raise(vm.zeroDivisionError("float floor division by zero"))
	}
	q := fx / fy
	vm.push(FloatVal(floorFloat(q)))
	return nil
}

func floorFloat(f float64) float64 {
	i := float64(int64(f))
	if f < 0 && i != f {
		return i - 1
	}
	return i
}

func (vm *VM) opModulo(a, b Value) error {
	if !a.IsNumber() || !b.IsNumber() {
		return vm.raise(vm.typeError(fmt.Sprintf("unsupported operand type(s) for %%: '%s' and '%s'", a.TypeName(), b.TypeName())))
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		if y == 0 {
			return vm.raise(vm.zeroDivisionError("integer division or modulo by zero"))
		}
		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		vm.push(IntVal(r))
		return nil
	}
	fx, fy := asFloat(a), asFloat(b)
	if fy == 0 {
		return vm.raise(vm.zeroDivisionError("float modulo"))
	}
	r := fx - floorFloat(fx/fy)*fy
	vm.push(FloatVal(r))
	return nil
}

// opPower: Int**Int stays Int when the mathematical result fits in i64,
// otherwise falls back to Float (spec §4.4).
func (vm *VM) opPower(a, b Value) error {
	if !a.IsNumber() || !b.IsNumber() {
		return vm.raise(vm.typeError(fmt.Sprintf("unsupported operand type(s) for **: '%s' and '%s'", a.TypeName(), b.TypeName())))
	}
	if a.IsInt() && b.IsInt() && b.AsInt() >= 0 {
		if result, ok := intPow(a.AsInt(), b.AsInt()); ok {
			vm.push(IntVal(result))
			return nil
		}
	}
	vm.push(FloatVal(floatPow(asFloat(a), asFloat(b))))
	return nil
}

func intPow(base, exp int64) (int64, bool) {
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		next := result * base
		if base != 0 && next/base != result {
			return 0, false // overflow
		}
		result = next
	}
	return result, true
}

func floatPow(base, exp float64) float64 {
	result := 1.0
	neg := exp < 0
	n := exp
	if neg {
		n = -n
	}
	for i := 0.0; i < n; i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

// opCompare orders Int/Float (numeric promotion) and String (lexicographic).
func (vm *VM) opCompare(a, b Value, ok func(int) bool) error {
	switch {
	case a.IsNumber() && b.IsNumber():
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			vm.push(BoolVal(ok(-1)))
		case fa > fb:
			vm.push(BoolVal(ok(1)))
		default:
			vm.push(BoolVal(ok(0)))
		}
		return nil
	case a.IsString() && b.IsString():
		sa, sb := a.AsString(), b.AsString()
		switch {
		case sa < sb:
			vm.push(BoolVal(ok(-1)))
		case sa > sb:
			vm.push(BoolVal(ok(1)))
		default:
			vm.push(BoolVal(ok(0)))
		}
		return nil
	}
	return vm.raise(vm.typeError(fmt.Sprintf("'<' not supported between instances of '%s' and '%s'", a.TypeName(), b.TypeName())))
}

// LessThan exposes `<`'s comparison (numeric, string, or Instance __lt__
// trampoline) to internal/builtins so sorted/min/max order values the
// same way the language's own `<` operator does, without duplicating the
// comparison rules or routing through the operand stack.
func (vm *VM) LessThan(a, b Value) (bool, error) {
	if inst, ok := a.Obj.(*Instance); ok {
		if _, _, ok := inst.Class.FindMethod("__lt__"); ok {
			result, err := vm.invokeDunder(ObjVal(inst), "__lt__", []Value{b})
			if err != nil {
				return false, err
			}
			return result.Truthy(), nil
		}
		return false, vm.NewTypeError("unsupported operand type(s) for <: '%s'", a.TypeName())
	}
	switch {
	case a.IsNumber() && b.IsNumber():
		return asFloat(a) < asFloat(b), nil
	case a.IsString() && b.IsString():
		return a.AsString() < b.AsString(), nil
	}
	return false, vm.NewTypeError("'<' not supported between instances of '%s' and '%s'", a.TypeName(), b.TypeName())
}

// opIn implements `value in container` (spec's __contains__ trampoline is
// handled earlier in binaryOp for Instance receivers; this covers the
// built-in container kinds). Note operand order: stack is [value, container].
func (vm *VM) opIn(value, container Value) error {
	switch c := container.Obj.(type) {
	case *List:
		for _, e := range c.Elements {
			if e.Equals(vm, value) {
				vm.push(BoolVal(true))
				return nil
			}
		}
		vm.push(BoolVal(false))
		return nil
	case *Tuple:
		for _, e := range c.Elements {
			if e.Equals(vm, value) {
				vm.push(BoolVal(true))
				return nil
			}
		}
		vm.push(BoolVal(false))
		return nil
	case *Set:
		vm.push(BoolVal(c.Contains(vm, value)))
		return nil
	case *Dict:
		if value.IsString() {
			_, ok := c.Get(value.AsString())
			vm.push(BoolVal(ok))
			return nil
		}
		vm.push(BoolVal(false))
		return nil
	case *String:
		if value.IsString() {
			vm.push(BoolVal(stringContains(c.Value, value.AsString())))
			return nil
		}
	}
	return vm.raise(vm.typeError(fmt.Sprintf("argument of type '%s' is not iterable", container.TypeName())))
}

func stringContains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func (vm *VM) opNegate() error {
	v := vm.pop()
	switch {
	case v.IsInt():
		vm.push(IntVal(-v.AsInt()))
	case v.IsFloat():
		vm.push(FloatVal(-v.AsFloat()))
	default:
		return vm.raise(vm.typeError(fmt.Sprintf("bad operand type for unary -: '%s'", v.TypeName())))
	}
	return nil
}

func (vm *VM) opEqual() error {
	b := vm.pop()
	a := vm.pop()
	vm.push(BoolVal(a.Equals(vm, b)))
	return nil
}
