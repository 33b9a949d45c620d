package exportlib

import (
	"path/filepath"
)

// Stage identifies one step of the export pipeline.
type Stage int

const (
	StageDiscover   Stage = iota + 1 // throwaway link that emits the symbol dump
	StageExtract                     // read the dump into symbol records
	StageFilter                      // select and deduplicate exports
	StageSynthesize                  // render the export table
	StageLink                        // real link with the export table
	StageAdapt                       // pair binary and import library, publish
)

func (s Stage) String() string {
	switch s {
	case StageDiscover:
		return "discover"
	case StageExtract:
		return "extract"
	case StageFilter:
		return "filter"
	case StageSynthesize:
		return "synthesize"
	case StageLink:
		return "link"
	case StageAdapt:
		return "adapt"
	default:
		return "configure"
	}
}

// PipelineResult contains the output and status of one pipeline run.
//
// On failure Stage is the stage that failed and Target is nil: nothing was
// published. Output collects the command lines and tool output of every
// linker invocation.
type PipelineResult struct {
	ID          string       // Run identifier, also used in the scratch directory name
	Name        string       // Target name
	Success     bool         // True if every stage completed
	Stage       Stage        // Last stage reached
	Output      []string     // Lines of output from the linker invocations
	Exports     ExportSpec   // Symbols selected by the filter
	ExportTable *ExportTable // Table handed to the final link
	Target      *ImportTarget
	Error       error
}

// PipelineConfig describes one shared library target.
//
// Target identity:
//   - Name: the name the published ImportTarget is known by
//   - Output: final shared library filename (e.g. "mylib.dll"); also the
//     LIBRARY name in the export table
//   - OutDir: directory the binary and import library are published into
//   - ImportLibrary: import library filename, default Output + ".if.lib"
//
// Link inputs, identical for both links:
//   - Srcs: direct link inputs in order (objects, sources the driver compiles)
//   - Deps: static libraries linked whole into the artifact
//   - LinkArgs: extra linker arguments
//   - WorkDir: relative Srcs/Deps/OutDir resolve against it
//
// Export selection: Predicate wins when set; otherwise ExportPrefixes and
// ExportPatterns are combined, and with neither the DefaultExportPrefix
// namespace is exported.
type PipelineConfig struct {
	Name          string
	Output        string
	OutDir        string
	ImportLibrary string

	Srcs     []string
	Deps     []string
	LinkArgs []string
	WorkDir  string
	Env      map[string]string

	ExportPrefixes []string
	ExportPatterns []string
	Predicate      Predicate

	ScratchDir    string // Parent of the per-run scratch directory ("" = system temp)
	KeepScratch   bool   // Leave the scratch directory behind for debugging
	WriteManifest bool   // Write <Name>.import.yaml next to the published pair
	Verify        bool   // Check the final binary exports exactly the selected symbols
}

// Validate reports configuration errors that would make every stage pointless.
func (c *PipelineConfig) Validate() error {
	if c == nil {
		return invalidf("nil config")
	}
	if c.Name == "" {
		return invalidf("target name is empty")
	}
	if err := checkOutputName(c.Output); err != nil {
		return err
	}
	if implib := c.importLibraryName(); implib == c.Output {
		return invalidf("import library %q collides with output", implib)
	} else if err := checkOutputName(implib); err != nil {
		return invalidf("import library: %v", err)
	}
	if len(c.Srcs) == 0 && len(c.Deps) == 0 {
		return invalidf("target %s has no srcs or deps to link", c.Name)
	}
	if c.Predicate == nil {
		if _, err := CompilePatterns(c.ExportPatterns...); err != nil {
			return err
		}
	}
	return nil
}

// ExportPredicate returns the predicate the filter stage applies.
func (c *PipelineConfig) ExportPredicate() (Predicate, error) {
	if c.Predicate != nil {
		return c.Predicate, nil
	}
	if len(c.ExportPrefixes) == 0 && len(c.ExportPatterns) == 0 {
		return PrefixPredicate(DefaultExportPrefix), nil
	}
	byPattern, err := PatternPredicate(c.ExportPatterns...)
	if err != nil {
		return nil, err
	}
	return AnyPredicate(PrefixPredicate(c.ExportPrefixes...), byPattern), nil
}

func (c *PipelineConfig) importLibraryName() string {
	if c.ImportLibrary != "" {
		return c.ImportLibrary
	}
	return c.Output + ".if.lib"
}

func (c *PipelineConfig) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.WorkDir == "" {
		return path
	}
	return filepath.Join(c.WorkDir, path)
}

func (c *PipelineConfig) resolveAll(paths []string) []string {
	resolved := make([]string, 0, len(paths))
	for _, p := range uniqueStrings(paths) {
		resolved = append(resolved, c.resolve(p))
	}
	return resolved
}

func (c *PipelineConfig) outDir() string {
	if c.OutDir == "" {
		return c.resolve(".")
	}
	return c.resolve(c.OutDir)
}
