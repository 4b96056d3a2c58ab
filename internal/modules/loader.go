package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
)

// Loader resolves a module name to a platform shared object and opens it,
// adapted from the teacher's internal/modules/loader.go
// registry-with-search-path shape (there: source `.lang` packages across a
// directory tree; here: native shared objects, per spec §4.5).
type Loader struct {
	searchPaths []string
}

func newLoader(extra []string) *Loader {
	paths := []string{exeDir()}
	paths = append(paths, extra...)
	return &Loader{searchPaths: paths}
}

func exeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// candidateNames lists the file names tried in each search directory, in
// order: <name>.{so|dylib|dll}, then lib<name>.{so|dylib|dll}. The bare
// module name is handled separately by resolve.
func candidateNames(name string) []string {
	ext := platformExt()
	return []string{
		name + ext,
		"lib" + name + ext,
	}
}

func platformExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// load finds and opens name's extension, calling its MsExtensionCreate
// entry point (spec §6's ms_extension_create contract, Go-plugin-shaped —
// see extension.go's EntryPointSymbol doc).
func (l *Loader) load(name string) (*Extension, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening extension %q: %w", path, err)
	}

	sym, err := p.Lookup(EntryPointSymbol)
	if err != nil {
		return nil, fmt.Errorf("extension %q does not export %s: %w", path, EntryPointSymbol, err)
	}
	create, ok := sym.(func() *ExtensionDescriptor)
	if !ok {
		return nil, fmt.Errorf("extension %q: %s has the wrong signature", path, EntryPointSymbol)
	}

	desc := create()
	if desc == nil || desc.Name == "" {
		return nil, fmt.Errorf("extension %q: %s returned no descriptor", path, EntryPointSymbol)
	}
	return newExtension(path, desc), nil
}

// resolve walks the search paths trying each candidate filename, then
// falls back to the bare module name as a path relative to the working
// directory. Only files that os.Stat finds are returned; the OS loader's
// own search rules (LD_LIBRARY_PATH and the like) are not consulted.
func (l *Loader) resolve(name string) (string, error) {
	for _, dir := range l.searchPaths {
		for _, candidate := range candidateNames(name) {
			full := filepath.Join(dir, candidate)
			if _, err := os.Stat(full); err == nil {
				return full, nil
			}
		}
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	return "", fmt.Errorf("no extension found for module %q in %v", name, l.searchPaths)
}
