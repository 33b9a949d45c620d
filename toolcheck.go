package exportlib

import (
	"fmt"
	"os/exec"
	"strings"
)

// execLookPath resolves tool names; tests replace it.
var execLookPath = exec.LookPath

// ToolChecker is an optional interface for linkers that depend on external
// binaries. LinkerRegistry.Detect uses it to pick a usable driver.
//
// # Consumer Usage
//
//	if checker, ok := linker.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return fmt.Errorf("linker tools missing: %w", err)
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the tools this linker runs.
	RequiredTools() []ToolRequirement

	// CheckTools returns nil when every required tool is found in PATH.
	CheckTools() error
}

// ToolRequirement describes a build tool dependency.
//
//	ToolRequirement{
//	    Name:         "x86_64-w64-mingw32-gcc",
//	    Alternatives: []string{"x86_64-w64-mingw32-clang", "gcc"},
//	    Purpose:      "MinGW compiler driver",
//	}
type ToolRequirement struct {
	// Name is the preferred binary name.
	Name string

	// Alternatives satisfy the requirement when Name is missing; the first
	// one found is used.
	Alternatives []string

	// Optional tools are reported but never fail a check.
	Optional bool

	// Purpose says why the tool is needed, for error messages.
	Purpose string
}

// Candidates returns Name followed by its alternatives.
func (r ToolRequirement) Candidates() []string {
	return append([]string{r.Name}, r.Alternatives...)
}

// Resolve returns the first candidate found in PATH.
func (r ToolRequirement) Resolve() (string, bool) {
	for _, candidate := range r.Candidates() {
		if CheckToolAvailable(candidate) == nil {
			return candidate, true
		}
	}
	return "", false
}

// CheckToolAvailable checks if a tool is available in the system PATH.
func CheckToolAvailable(tool string) error {
	if _, err := execLookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies every non-optional requirement resolves.
//
// Error format for one missing tool:
//
//	lld-link (LLVM COFF linker) not found in PATH
//
// and for several:
//
//	missing required tools: link (MSVC linker), def_parser (symbol dump tool)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, req := range requirements {
		if _, found := req.Resolve(); found || req.Optional {
			continue
		}
		if req.Purpose != "" {
			missingTools = append(missingTools, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
		} else {
			missingTools = append(missingTools, req.Name)
		}
	}

	switch len(missingTools) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s not found in PATH", missingTools[0])
	default:
		return fmt.Errorf("missing required tools: %s", strings.Join(missingTools, ", "))
	}
}
