// Package ms is ms's small embeddable entry point: construct a Machine,
// feed it source, get back a Value or a classified exit code. Grounded on
// the teacher's pkg/cli.entry "one VM per invocation, wire builtins and
// the module registry before running user code" shape, reduced to spec
// §6's actual surface — no bundler/ext-build pipeline, since spec.md
// places compiled-binary packaging out of scope.
package ms

import (
	"fmt"
	"io"
	"os"

	"github.com/ms-lang/ms/internal/builtins"
	"github.com/ms-lang/ms/internal/config"
	"github.com/ms-lang/ms/internal/logx"
	"github.com/ms-lang/ms/internal/modules"
	"github.com/ms-lang/ms/internal/vm"
)

// Exit codes per spec §6.
const (
	ExitOK           = 0
	ExitUsageError   = 64
	ExitCompileError = 65
	ExitRuntimeError = 70
)

// Options configures a Machine. Every field has a usable zero value.
type Options struct {
	// Stdout receives print() output; defaults to os.Stdout.
	Stdout io.Writer
	// Config supplies ms.yaml-sourced settings; defaults to config.Default().
	Config *config.Config
	// Trace forces opcode-dispatch trace logging regardless of Config.Trace
	// (wired from the CLI's -trace flag or MS_DEBUG).
	Trace bool
}

// Machine is a ready-to-run VM with the built-in contract (§6) and the
// module binder (§4.5) installed.
type Machine struct {
	VM      *vm.VM
	Names   *vm.Names
	Modules *modules.Registry
}

// New builds a Machine. Builtins are registered and the extension
// registry is wired before the caller runs anything.
func New(opts Options) *Machine {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	names := vm.NewNames()
	machine := vm.NewVM(names, opts.Stdout)
	if cfg.MaxFrames > 0 {
		machine.MaxFrames = cfg.MaxFrames
	}
	if opts.Trace || cfg.Trace {
		machine.Trace = logx.New(true)
	}

	builtins.Register(machine)

	registry := modules.NewRegistry(cfg.ExtensionPaths, machine.Trace)
	machine.SetModules(registry)

	return &Machine{VM: machine, Names: names, Modules: registry}
}

// Close tears down every extension this Machine loaded (spec §6's
// ms_extension_destroy).
func (m *Machine) Close() { m.Modules.Unload() }

// RunSource compiles and runs source as one standalone chunk (spec §6:
// "compiles it as a standalone chunk, runs it"). Globals persist across
// successive calls on the same Machine, which is what lets the REPL bind
// a name in one line and read it back in the next.
func (m *Machine) RunSource(source string) (vm.Value, error) {
	return m.VM.Interpret(source)
}

// RunFile reads path, runs it on a fresh Machine, prints any error to
// stderr (compile errors as `[line N] Error: message` lines), and returns
// the matching exit code.
func RunFile(path string, opts Options) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ms: %v\n", err)
		return ExitUsageError
	}

	m := New(opts)
	defer m.Close()

	_, err = m.RunSource(string(source))
	return Classify(err)
}

// Classify sorts a RunSource error into spec §6's exit-code contract and
// prints it to stderr. A nil error is success (0). A *vm.RuntimeError is
// an uncaught exception unwound to the top level (70, spec §5's
// "unwinds ... to the top-level interpret call"). Anything else is a
// compile-time diagnostic (65, spec §7).
func Classify(err error) int {
	if err == nil {
		return ExitOK
	}
	if _, ok := err.(*vm.RuntimeError); ok {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return ExitRuntimeError
	}
	fmt.Fprintf(os.Stderr, "%v", err)
	return ExitCompileError
}
