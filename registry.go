package exportlib

import (
	"fmt"
	"strings"
)

// LinkerRegistry manages the registration and selection of linker drivers.
//
// # Usage
//
//	registry := exportlib.NewLinkerRegistry()
//	linker, err := registry.LinkerFor("lld-link")
//
// or let the registry pick the first driver whose tools are installed:
//
//	linker, err := registry.Detect()
//
// # Thread Safety
//
// Register all linkers before concurrent use; lookups are safe afterwards.
type LinkerRegistry struct {
	linkers []Linker
}

// NewLinkerRegistry creates a registry with the standard drivers, in
// detection priority order:
//  1. MinGWLinker - gcc/clang MinGW drivers
//  2. LLDLinker - lld-link
//  3. msvc - link.exe with def_parser
func NewLinkerRegistry() *LinkerRegistry {
	registry := &LinkerRegistry{}

	registry.Register(&MinGWLinker{})
	registry.Register(&LLDLinker{})
	registry.Register(NewMSVCLinker(""))

	return registry
}

// Register adds a linker. A linker registered under an existing name
// replaces it in place.
//
// Not thread-safe. Register all linkers before concurrent use.
func (r *LinkerRegistry) Register(linker Linker) {
	for i, existing := range r.linkers {
		if strings.EqualFold(existing.Name(), linker.Name()) {
			r.linkers[i] = linker
			return
		}
	}
	r.linkers = append(r.linkers, linker)
}

// LinkerFor returns the linker registered under name, ignoring case.
func (r *LinkerRegistry) LinkerFor(name string) (Linker, error) {
	for _, linker := range r.linkers {
		if strings.EqualFold(linker.Name(), name) {
			return linker, nil
		}
	}
	return nil, fmt.Errorf("no linker named %q (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists the registered linker names in priority order.
func (r *LinkerRegistry) Names() []string {
	names := make([]string, 0, len(r.linkers))
	for _, linker := range r.linkers {
		names = append(names, linker.Name())
	}
	return names
}

// ListLinkers returns a copy of all registered linkers.
func (r *LinkerRegistry) ListLinkers() []Linker {
	return append([]Linker{}, r.linkers...)
}

// Detect returns the first linker whose tools are all available. Linkers
// that do not implement ToolChecker are assumed usable.
func (r *LinkerRegistry) Detect() (Linker, error) {
	var reasons []string
	for _, linker := range r.linkers {
		checker, ok := linker.(ToolChecker)
		if !ok {
			return linker, nil
		}
		err := checker.CheckTools()
		if err == nil {
			return linker, nil
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", linker.Name(), err))
	}
	if len(reasons) == 0 {
		return nil, fmt.Errorf("no linkers registered")
	}
	return nil, fmt.Errorf("no usable linker found: %s", strings.Join(reasons, "; "))
}

// Resolve returns the named linker, or the detected one when name is empty.
func (r *LinkerRegistry) Resolve(name string) (Linker, error) {
	if name == "" {
		return r.Detect()
	}
	return r.LinkerFor(name)
}
