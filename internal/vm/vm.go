package vm

import (
	"fmt"

	"github.com/ms-lang/ms/internal/logx"
)

const stackInitialCap = 256

// Frame is one call activation: a function's chunk plus its instruction
// pointer and the stack position its locals begin at, adapted from the
// teacher's internal/vm/vm.go CallFrame. Frames are pushed/popped on a
// plain slice so an ordinary CALL never recurses into the Go call stack
// (spec §9's "frame-index-driven dispatch" redesign note); dunder
// trampolines and decorator calls do re-enter runUntil (see vm_exec.go).
type Frame struct {
	Function      *Function
	IP            int
	SlotsBase     int
	IsInitializer bool
}

// ExceptionHandler is a single TRY_BEGIN record: where to resume and how
// much of the stack/frame-set to unwind back to (spec §4.4).
type ExceptionHandler struct {
	HandlerIP   int
	StackHeight int
	FrameIndex  int
}

// ModuleDispatcher is implemented by internal/modules.Registry. Declared
// here (rather than importing internal/modules) to avoid an import cycle,
// since the registry itself needs vm.Value to describe extension
// function signatures.
type ModuleDispatcher interface {
	Load(name string) (*Module, error)
	Call(machine *VM, moduleName, methodName string, args []Value) (Value, error)
}

// RuntimeError is a VM-level failure that unwinds to the nearest
// try/except handler or, uncaught, to the host (spec §7).
type RuntimeError struct {
	Message string
	Value   Value
}

func (e *RuntimeError) Error() string { return e.Message }

// VM executes compiled chunks. Spec §9's redesign note folds the
// process-wide singletons (name table, extension registry) into the VM
// instance so multiple VMs never share hidden state.
type VM struct {
	stack  []Value
	frames []Frame

	globals *Globals
	names   *Names
	modules ModuleDispatcher

	handlers          []ExceptionHandler
	currentException  Value
	hasException      bool

	lastModuleName string
	lastMethodName string
	hasLastMethod  bool

	Stdout writer
	MaxFrames int

	// Trace, when non-nil, receives a Debug line per dispatched opcode
	// (SPEC_FULL.md's ambient-stack logging requirement). Left nil in
	// normal operation; set by the CLI's -trace flag or MS_DEBUG.
	Trace *logx.Logger
}

// writer is the narrow io.Writer-shaped interface print() needs; kept
// local so the vm package doesn't need to import io just for this.
type writer interface {
	Write(p []byte) (n int, err error)
}

// NewVM constructs a VM sharing the given Names table with the Compiler
// that produced the chunk it will run (spec §3's "Name table").
func NewVM(names *Names, out writer) *VM {
	return &VM{
		stack:     make([]Value, 0, stackInitialCap),
		globals:   NewGlobals(),
		names:     names,
		Stdout:    out,
		MaxFrames: maxFrames,
	}
}

// SetModules installs the extension registry used by LOAD_MODULE and
// Module-valued CALLs (spec §4.5).
func (vm *VM) SetModules(m ModuleDispatcher) { vm.modules = m }

// DefineGlobal pre-binds a builtin or embedder-supplied global before
// running user code (used by internal/builtins).
func (vm *VM) DefineGlobal(name string, v Value) { vm.globals.Define(name, v) }

// GetGlobal and SetGlobal expose the globals table to native extension
// callbacks (spec §6's ABI: "they may call back into the VM's
// push/pop/get_global/set_global/register_function APIs").
func (vm *VM) GetGlobal(name string) (Value, bool) { return vm.globals.Get(name) }
func (vm *VM) SetGlobal(name string, v Value) bool { return vm.globals.Set(name, v) }

// Push and Pop expose the operand stack to native extension callbacks
// (spec §6's ABI), distinct from the unexported push/pop used by the
// dispatch loop itself only in capitalization.
func (vm *VM) Push(v Value) { vm.push(v) }
func (vm *VM) Pop() Value   { return vm.pop() }

// RegisterFunction installs a NativeFn as a global, the callback an
// extension uses to expose additional host functions at runtime (spec
// §6's "register_function").
func (vm *VM) RegisterFunction(name string, fn func(vm *VM, args []Value) (Value, error)) {
	vm.globals.Define(name, ObjVal(&NativeFn{Name: name, Fn: fn}))
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distanceFromTop int) Value {
	return vm.stack[len(vm.stack)-1-distanceFromTop]
}

func (vm *VM) currentFrame() *Frame { return &vm.frames[len(vm.frames)-1] }

// Interpret compiles and runs source in one step (spec §6's "compiles it
// as a standalone chunk").
func (vm *VM) Interpret(source string) (Value, error) {
	fn, errs := Compile(source, vm.names)
	if len(errs) > 0 {
		msgs := ""
		for _, e := range errs {
			msgs += e.Error() + "\n"
		}
		return NilVal(), fmt.Errorf("%s", msgs)
	}
	return vm.Call(fn)
}

// Call runs a compiled top-level Function to completion.
func (vm *VM) Call(fn *Function) (Value, error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.push(ObjVal(fn))
	vm.frames = append(vm.frames, Frame{Function: fn, IP: 0, SlotsBase: 0})
	return vm.run()
}
