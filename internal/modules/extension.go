// Package modules implements ms's native extension registry and dynamic
// loader (spec §4.5, §6): LOAD_MODULE resolves a platform shared object,
// calls its conventional entry point, and registers the functions it
// exposes under the module's name so GET_PROPERTY+CALL can dispatch into
// them. Grounded on the teacher's internal/modules/loader.go
// registry-with-search-path shape, retargeted from source-module loading
// to native shared-object loading.
package modules

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ms-lang/ms/internal/vm"
)

// NativeFunc is the Go-side shape of a single extension function (spec
// §6's "Value (*)(VM*, int argc, Value* args)", expressed as a Go closure
// rather than a raw C function pointer since extensions are loaded via
// Go's plugin package rather than cgo dlopen).
type NativeFunc func(machine *vm.VM, args []vm.Value) (vm.Value, error)

// Extension is one loaded native module: its name, its function table, and
// a uuid.UUID identity assigned at load time and written to the load log
// line. The Registry keys extensions by module name and returns the cached
// one on a repeated import, so a name is loaded at most once per Registry.
type Extension struct {
	ID        uuid.UUID
	Name      string
	Functions map[string]NativeFunc
	Path      string

	destroy func()
}

// ExtensionDescriptor is what an extension's entry point returns — the Go
// analogue of spec §6's ExtensionDescriptor* (name, function_count, inline
// {name, fn_ptr} array). EntryPoint is the conventional symbol every
// extension plugin exports, named MsExtensionCreate because Go's plugin
// package resolves symbols by Go identifier, not C symbol name; the
// original ms_extension_create() is this package's spiritual ABI, not its
// literal Go symbol (documented in DESIGN.md).
type ExtensionDescriptor struct {
	Name      string
	Functions map[string]NativeFunc
	Destroy   func()
}

// EntryPointSymbol is the exported Go plugin symbol every extension must
// define: `func MsExtensionCreate() *modules.ExtensionDescriptor`. A
// package-level variable of that func type does not match, because the
// plugin package hands back a pointer to a variable.
const EntryPointSymbol = "MsExtensionCreate"

func newExtension(path string, desc *ExtensionDescriptor) *Extension {
	return &Extension{
		ID:        uuid.New(),
		Name:      desc.Name,
		Functions: desc.Functions,
		Path:      path,
		destroy:   desc.Destroy,
	}
}

// Call dispatches a single function by name (spec §4.4 CALL case 5).
func (e *Extension) Call(machine *vm.VM, methodName string, args []vm.Value) (vm.Value, error) {
	fn, ok := e.Functions[methodName]
	if !ok {
		return vm.NilVal(), fmt.Errorf("module %q has no function %q", e.Name, methodName)
	}
	return fn(machine, args)
}

// Unload runs the extension's optional teardown hook (spec §6's
// ms_extension_destroy).
func (e *Extension) Unload() {
	if e.destroy != nil {
		e.destroy()
	}
}
