package vm

import (
	"fmt"
	"math"
)

// ValueType identifies the variant carried by a Value (spec §3).
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBool
	ValInt
	ValFloat
	ValObj // heap Object: String, List, Tuple, Dict, Set, Function, ...
)

// Value is a stack-allocated tagged union, adapted from the teacher's
// vm.Value (internal/vm/value.go): primitives live inline in Data, heap
// values are carried as an Object pointer so the Go GC keeps them alive
// for as long as they are reachable from the stack, a frame's locals, or
// the globals table (spec §3 "Lifecycles").
type Value struct {
	Type ValueType
	Data uint64
	Obj  Object
}

func NilVal() Value                 { return Value{Type: ValNil} }
func BoolVal(b bool) Value {
	if b {
		return Value{Type: ValBool, Data: 1}
	}
	return Value{Type: ValBool, Data: 0}
}
func IntVal(i int64) Value   { return Value{Type: ValInt, Data: uint64(i)} }
func FloatVal(f float64) Value { return Value{Type: ValFloat, Data: math.Float64bits(f)} }
func ObjVal(o Object) Value  { return Value{Type: ValObj, Obj: o} }

func (v Value) AsInt() int64     { return int64(v.Data) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsBool() bool     { return v.Data != 0 }

func (v Value) IsNil() bool   { return v.Type == ValNil }
func (v Value) IsBool() bool  { return v.Type == ValBool }
func (v Value) IsInt() bool   { return v.Type == ValInt }
func (v Value) IsFloat() bool { return v.Type == ValFloat }
func (v Value) IsObj() bool   { return v.Type == ValObj }

func (v Value) IsNumber() bool { return v.Type == ValInt || v.Type == ValFloat }

func (v Value) IsString() bool {
	if v.Type != ValObj {
		return false
	}
	_, ok := v.Obj.(*String)
	return ok
}

func (v Value) AsString() string {
	if s, ok := v.Obj.(*String); ok {
		return s.Value
	}
	return ""
}

// Truthy implements spec §3's truthiness rule: Nil/False/0/0.0/empty
// string are falsy; containers are truthy regardless of size, except that
// this implementation chooses empty containers falsy too (spec leaves the
// choice open and only requires consistency for non-empty containers).
func (v Value) Truthy() bool {
	switch v.Type {
	case ValNil:
		return false
	case ValBool:
		return v.AsBool()
	case ValInt:
		return v.AsInt() != 0
	case ValFloat:
		return v.AsFloat() != 0
	case ValObj:
		switch o := v.Obj.(type) {
		case *String:
			return len(o.Value) > 0
		case *List:
			return len(o.Elements) > 0
		case *Tuple:
			return len(o.Elements) > 0
		case *Dict:
			return len(o.Keys) > 0
		case *Set:
			return len(o.Elements) > 0
		default:
			return true
		}
	default:
		return false
	}
}

// Equals implements structural equality for primitives, with implicit
// Int<->Float comparison, and delegates to objectsEqual for heap values
// (dunder-overridable for Instance, spec §3/§4.4).
func (v Value) Equals(vm *VM, other Value) bool {
	if v.Type != other.Type {
		if v.Type == ValInt && other.Type == ValFloat {
			return float64(v.AsInt()) == other.AsFloat()
		}
		if v.Type == ValFloat && other.Type == ValInt {
			return v.AsFloat() == float64(other.AsInt())
		}
		return false
	}
	switch v.Type {
	case ValNil:
		return true
	case ValBool, ValInt:
		return v.Data == other.Data
	case ValFloat:
		return v.AsFloat() == other.AsFloat()
	case ValObj:
		return objectsEqual(vm, v.Obj, other.Obj)
	default:
		return false
	}
}

// Hash is used by Set/Dict membership tests.
func (v Value) Hash() uint32 {
	switch v.Type {
	case ValNil:
		return 0
	case ValBool, ValInt:
		return uint32(v.Data ^ (v.Data >> 32))
	case ValFloat:
		return uint32(v.Data ^ (v.Data >> 32))
	case ValObj:
		if v.Obj != nil {
			return v.Obj.Hash()
		}
		return 0
	default:
		return 0
	}
}

// TypeName is the spec's runtime type-name contract, used by type()/
// isinstance() and in TypeError messages.
func (v Value) TypeName() string {
	switch v.Type {
	case ValNil:
		return "NilType"
	case ValBool:
		return "bool"
	case ValInt:
		return "int"
	case ValFloat:
		return "float"
	case ValObj:
		if v.Obj != nil {
			return v.Obj.TypeName()
		}
		return "NilType"
	default:
		return "?"
	}
}

// Inspect renders a Value as it would appear in source (repr-style);
// Str renders it as print() would (str-style). These diverge only for
// String (Inspect quotes it).
func (v Value) Inspect() string {
	if v.Type == ValObj {
		if s, ok := v.Obj.(*String); ok {
			return fmt.Sprintf("%q", s.Value)
		}
	}
	return v.Str()
}

func (v Value) Str() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValInt:
		return fmt.Sprintf("%d", v.AsInt())
	case ValFloat:
		return formatFloat(v.AsFloat())
	case ValObj:
		if v.Obj != nil {
			return v.Obj.Str()
		}
		return "nil"
	default:
		return "<?>"
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprintf("%g", f)
}
