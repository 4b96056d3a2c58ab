package modules

import (
	"fmt"

	"github.com/ms-lang/ms/internal/logx"
	"github.com/ms-lang/ms/internal/vm"
)

// maxExtensions is spec §4.5's "fixed-size array (≤32) keyed by module
// name" limit, kept as a configuration constant per spec §9's redesign
// note rather than a literal fixed-size array.
const maxExtensions = 32

// Registry is the VM-instance-owned extension table (spec §9's "fold
// these into the VM instance so multiple VM instances do not share hidden
// state"): unlike the teacher's process-wide module cache, one Registry
// belongs to exactly one VM.
type Registry struct {
	loader *Loader
	byName map[string]*Extension
	log    *logx.Logger
}

// NewRegistry builds a Registry that searches searchPaths (in addition to
// the running executable's own directory) for native extension shared
// objects.
func NewRegistry(searchPaths []string, log *logx.Logger) *Registry {
	if log == nil {
		log = logx.New(false)
	}
	return &Registry{
		loader: newLoader(searchPaths),
		byName: make(map[string]*Extension),
		log:    log,
	}
}

// Load implements vm.ModuleDispatcher (spec §4.5's LOAD_MODULE): the
// first successful load of a name is cached and reused.
func (r *Registry) Load(name string) (*vm.Module, error) {
	if ext, ok := r.byName[name]; ok {
		return &vm.Module{Name: ext.Name}, nil
	}
	if len(r.byName) >= maxExtensions {
		return nil, fmt.Errorf("extension registry full (max %d modules)", maxExtensions)
	}

	ext, err := r.loader.load(name)
	if err != nil {
		r.log.Warn("module %q: %v", name, err)
		return nil, err
	}
	r.byName[name] = ext
	r.log.Info("loaded extension %q (id=%s, path=%s)", ext.Name, ext.ID, ext.Path)
	return &vm.Module{Name: ext.Name}, nil
}

// Call implements vm.ModuleDispatcher (spec §4.4 CALL case 5).
func (r *Registry) Call(machine *vm.VM, moduleName, methodName string, args []vm.Value) (vm.Value, error) {
	ext, ok := r.byName[moduleName]
	if !ok {
		return vm.NilVal(), fmt.Errorf("module %q is not loaded", moduleName)
	}
	return ext.Call(machine, methodName, args)
}

// Unload tears down every registered extension (called at VM/REPL
// shutdown, spec §6's ms_extension_destroy).
func (r *Registry) Unload() {
	for name, ext := range r.byName {
		ext.Unload()
		delete(r.byName, name)
	}
}
