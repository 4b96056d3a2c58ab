package vm

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Object is the interface satisfied by every heap-allocated value variant
// in spec §3's data model (String, List, Tuple, Dict, Set, Function,
// NativeFn, BoundMethod, Class, Instance, Module), adapted from the
// teacher's evaluator.Object interface (internal/evaluator/object.go).
type Object interface {
	TypeName() string
	Str() string
	Hash() uint32
}

// String is an immutable byte sequence (spec §3).
type String struct {
	Value string
}

func (s *String) TypeName() string { return "str" }
func (s *String) Str() string      { return s.Value }
func (s *String) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(s.Value))
	return h.Sum32()
}

// List is a mutable ordered sequence; it owns its elements.
type List struct {
	Elements []Value
}

func (l *List) TypeName() string { return "list" }
func (l *List) Str() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (l *List) Hash() uint32 { return fnv.New32a().Sum32() ^ uint32(len(l.Elements)) }

// Tuple is a fixed-length sequence.
type Tuple struct {
	Elements []Value
}

func (t *Tuple) TypeName() string { return "tuple" }
func (t *Tuple) Str() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.Inspect()
	}
	suffix := ""
	if len(parts) == 1 {
		suffix = ","
	}
	return "(" + strings.Join(parts, ", ") + suffix + ")"
}
func (t *Tuple) Hash() uint32 {
	var h uint32 = 2166136261
	for _, e := range t.Elements {
		h = (h ^ e.Hash()) * 16777619
	}
	return h
}

// Dict is an insertion-ordered string-keyed map (spec §3: "keys are
// strings"). Keys is the canonical insertion order.
type Dict struct {
	Keys   []string
	Values map[string]Value
}

func NewDict() *Dict {
	return &Dict{Values: make(map[string]Value)}
}

func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.Values[key]
	return v, ok
}

func (d *Dict) Set(key string, v Value) {
	if _, exists := d.Values[key]; !exists {
		d.Keys = append(d.Keys, key)
	}
	d.Values[key] = v
}

func (d *Dict) Delete(key string) bool {
	if _, exists := d.Values[key]; !exists {
		return false
	}
	delete(d.Values, key)
	for i, k := range d.Keys {
		if k == key {
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			break
		}
	}
	return true
}

func (d *Dict) TypeName() string { return "dict" }
func (d *Dict) Str() string {
	parts := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		parts[i] = fmt.Sprintf("%q: %s", k, d.Values[k].Inspect())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (d *Dict) Hash() uint32 { return fnv.New32a().Sum32() ^ uint32(len(d.Keys)) }

// Set holds unordered elements deduplicated by structural equality.
type Set struct {
	Elements []Value
}

func NewSet() *Set { return &Set{} }

func (s *Set) Contains(vm *VM, v Value) bool {
	for _, e := range s.Elements {
		if e.Equals(vm, v) {
			return true
		}
	}
	return false
}

func (s *Set) Add(vm *VM, v Value) {
	if !s.Contains(vm, v) {
		s.Elements = append(s.Elements, v)
	}
}

func (s *Set) TypeName() string { return "set" }
func (s *Set) Str() string {
	parts := make([]string, len(s.Elements))
	for i, e := range s.Elements {
		parts[i] = e.Inspect()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (s *Set) Hash() uint32 { return fnv.New32a().Sum32() ^ uint32(len(s.Elements)) }

// Function is a user-defined function: a chunk reference plus arity and
// default values (spec §3). Shared (by pointer) once constructed.
type Function struct {
	Name       string
	Chunk      *Chunk
	Arity      int
	Defaults   []Value // defaults for the last len(Defaults) parameters
	ParamNames []string
	// Owner is the class whose body this function was compiled inside of
	// (set once at OP_METHOD time), i.e. the statically-defining class for
	// super() lookups. Nil for plain, non-method functions.
	Owner *Class
}

func (f *Function) TypeName() string { return "function" }
func (f *Function) Str() string      { return fmt.Sprintf("<function %s>", f.Name) }
func (f *Function) Hash() uint32     { return fnv.New32a().Sum32() }

// NativeFn wraps a Go function as a VM-callable value (spec §3, §6).
type NativeFn struct {
	Name string
	Fn   func(vm *VM, args []Value) (Value, error)
}

func (n *NativeFn) TypeName() string { return "builtin_function" }
func (n *NativeFn) Str() string      { return fmt.Sprintf("<built-in function %s>", n.Name) }
func (n *NativeFn) Hash() uint32     { return fnv.New32a().Sum32() }

// BoundMethod pairs a receiver with a method value (spec §3, glossary).
type BoundMethod struct {
	Receiver Value
	Method   Value
}

func (b *BoundMethod) TypeName() string { return "bound_method" }
func (b *BoundMethod) Str() string {
	name := "?"
	if f, ok := b.Method.Obj.(*Function); ok {
		name = f.Name
	}
	return fmt.Sprintf("<bound method %s of %s>", name, b.Receiver.Str())
}
func (b *BoundMethod) Hash() uint32 { return b.Receiver.Hash() ^ b.Method.Hash() }

// Class is a callable value whose call allocates an Instance (spec §4.2).
type Class struct {
	Name    string
	Parent  *Class
	Methods *Dict // method name -> Value (Function)
}

func NewClass(name string, parent *Class) *Class {
	return &Class{Name: name, Parent: parent, Methods: NewDict()}
}

// FindMethod walks the single-inheritance chain (spec §4.2 "INHERIT...
// copies parent's methods for simple MRO"; kept as an explicit walk too
// so super() can skip the defining class, per spec §9 Open Questions).
func (c *Class) FindMethod(name string) (Value, *Class, bool) {
	for cls := c; cls != nil; cls = cls.Parent {
		if v, ok := cls.Methods.Get(name); ok {
			return v, cls, true
		}
	}
	return Value{}, nil, false
}

func (c *Class) TypeName() string { return "type" }
func (c *Class) Str() string      { return fmt.Sprintf("<class %s>", c.Name) }
func (c *Class) Hash() uint32     { return fnv.New32a().Sum32() }

// Instance is a class instance with its own attribute dict (spec §3).
type Instance struct {
	Class *Class
	Attrs *Dict
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Attrs: NewDict()}
}

func (i *Instance) TypeName() string { return i.Class.Name }
func (i *Instance) Str() string {
	return fmt.Sprintf("<%s instance>", i.Class.Name)
}
func (i *Instance) Hash() uint32 { return fnv.New32a().Sum32() }

// Module is an opaque extension handle (spec §3, §4.5): only GET_PROPERTY
// followed by CALL is meaningful on it.
type Module struct {
	Name string
}

func (m *Module) TypeName() string { return "module" }
func (m *Module) Str() string      { return fmt.Sprintf("<module %s>", m.Name) }
func (m *Module) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(m.Name))
	return h.Sum32()
}

// superProxy is returned by the builtin super(); its GET_PROPERTY walks
// the MRO starting at startClass, skipping the defining class (spec §9
// Open Questions: "super() ... returns a receiver whose attribute lookup
// skips the method's defining class and walks the MRO from its parent").
type superProxy struct {
	Receiver   Value
	StartClass *Class
}

func (s *superProxy) TypeName() string { return "super" }
func (s *superProxy) Str() string      { return "<super>" }
func (s *superProxy) Hash() uint32     { return s.Receiver.Hash() }

// objectsEqual implements structural equality for heap objects, falling
// back to __eq__ dispatch for Instance values (spec §4.4).
func objectsEqual(vmachine *VM, a, b Object) bool {
	switch av := a.(type) {
	case *String:
		bv, ok := b.(*String)
		return ok && av.Value == bv.Value
	case *List:
		bv, ok := b.(*List)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !av.Elements[i].Equals(vmachine, bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Tuple:
		bv, ok := b.(*Tuple)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !av.Elements[i].Equals(vmachine, bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || len(av.Keys) != len(bv.Keys) {
			return false
		}
		for _, k := range av.Keys {
			bval, ok := bv.Get(k)
			if !ok || !av.Values[k].Equals(vmachine, bval) {
				return false
			}
		}
		return true
	case *Set:
		bv, ok := b.(*Set)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for _, e := range av.Elements {
			if !bv.Contains(vmachine, e) {
				return false
			}
		}
		return true
	case *Instance:
		if vmachine != nil {
			if method, _, ok := av.Class.FindMethod("__eq__"); ok {
				bound := &BoundMethod{Receiver: ObjVal(av), Method: method}
				result, err := vmachine.callValue(ObjVal(bound), []Value{ObjVal(b)})
				if err == nil {
					return result.Truthy()
				}
			}
		}
		return a == b
	default:
		return a == b
	}
}
