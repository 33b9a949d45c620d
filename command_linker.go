package exportlib

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// CommandLinker is a linker described entirely by command templates, for
// toolchains whose linker cannot write a symbol dump itself and needs a
// separate tool after the throwaway link (MSVC link.exe plus a .def
// generator, for example).
//
// # Placeholders
//
// An argument that is exactly one of these expands to zero or more arguments:
//
//	{{srcs}}          direct link inputs
//	{{deps}}          dependency libraries
//	{{deps:PREFIX}}   each dependency with PREFIX prepended, e.g. {{deps:/WHOLEARCHIVE:}}
//	{{args}}          extra linker arguments
//
// These are substituted anywhere inside an argument:
//
//	{{throwaway}}       throwaway library path (discovery only)
//	{{throwaway_name}}  its file name
//	{{dump}}            symbol dump path (discovery only)
//	{{output}}          final library path (link only)
//	{{output_name}}     its file name
//	{{def}}             export table path (link only)
//	{{implib}}          import library path (link only)
type CommandLinker struct {
	name     string
	tools    []ToolRequirement
	discover [][]string
	link     []string
}

// CommandLinkerConfig defines configuration for a CommandLinker.
type CommandLinkerConfig struct {
	// Name is the linker name (e.g. "msvc")
	Name string

	// Tools are the binaries the commands need
	Tools []ToolRequirement

	// DiscoverCommands run in order during phase one; together they must
	// leave the symbol dump at {{dump}}
	DiscoverCommands [][]string

	// LinkCommand runs the final link
	LinkCommand []string
}

// NewCommandLinker creates a new CommandLinker from configuration.
func NewCommandLinker(config *CommandLinkerConfig) *CommandLinker {
	discover := make([][]string, 0, len(config.DiscoverCommands))
	for _, command := range config.DiscoverCommands {
		discover = append(discover, append([]string{}, command...))
	}
	return &CommandLinker{
		name:     config.Name,
		tools:    config.Tools,
		discover: discover,
		link:     append([]string{}, config.LinkCommand...),
	}
}

// NewMSVCLinker creates a CommandLinker for link.exe. link.exe cannot list
// the symbols of a DLL that exports nothing, so the dump comes from defParser,
// a tool with the command line of Bazel's def_parser:
//
//	def_parser OUTPUT.def DLLNAME INPUTS...
//
// An empty defParser selects "def_parser".
func NewMSVCLinker(defParser string) *CommandLinker {
	if defParser == "" {
		defParser = "def_parser"
	}
	return NewCommandLinker(&CommandLinkerConfig{
		Name: "msvc",
		Tools: []ToolRequirement{
			{Name: "link", Purpose: "MSVC linker"},
			{Name: defParser, Purpose: "symbol dump tool"},
		},
		DiscoverCommands: [][]string{
			{
				"link", "/NOLOGO", "/DLL",
				"/OUT:{{throwaway}}", "/IMPLIB:{{throwaway}}.lib",
				"{{srcs}}", "{{deps:/WHOLEARCHIVE:}}", "{{args}}",
			},
			{defParser, "{{dump}}", "{{throwaway_name}}", "{{srcs}}", "{{deps}}"},
		},
		LinkCommand: []string{
			"link", "/NOLOGO", "/DLL",
			"/OUT:{{output}}", "/DEF:{{def}}", "/IMPLIB:{{implib}}",
			"{{srcs}}", "{{deps:/WHOLEARCHIVE:}}", "{{args}}",
		},
	})
}

// Name returns the linker name
func (l *CommandLinker) Name() string {
	return l.name
}

// RequiredTools returns the tools needed by the commands
func (l *CommandLinker) RequiredTools() []ToolRequirement {
	return l.tools
}

// CheckTools verifies that all required tools are available
func (l *CommandLinker) CheckTools() error {
	return CheckRequiredTools(l.RequiredTools())
}

// DiscoverSymbols runs every discovery command in order
func (l *CommandLinker) DiscoverSymbols(ctx context.Context, req *DiscoverRequest, result *PipelineResult) error {
	if len(l.discover) == 0 {
		return fmt.Errorf("%w: no discovery command configured for %s linker", ErrThrowawayLink, l.name)
	}
	vars := map[string]string{
		"throwaway":      req.Throwaway,
		"throwaway_name": filepath.Base(req.Throwaway),
		"dump":           req.SymbolDump,
	}
	for _, template := range l.discover {
		if err := l.run(ctx, ErrThrowawayLink, result, template, &req.LinkInputs, vars); err != nil {
			return err
		}
	}
	return nil
}

// LinkShared runs the final link command
func (l *CommandLinker) LinkShared(ctx context.Context, req *LinkRequest, result *PipelineResult) error {
	vars := map[string]string{
		"output":      req.Output,
		"output_name": filepath.Base(req.Output),
		"def":         req.ExportTable,
		"implib":      req.ImportLibrary,
	}
	return l.run(ctx, ErrFinalLink, result, l.link, &req.LinkInputs, vars)
}

func (l *CommandLinker) run(ctx context.Context, kind error, result *PipelineResult, template []string, in *LinkInputs, vars map[string]string) error {
	argv := expandTemplate(template, in, vars)
	if len(argv) == 0 {
		return fmt.Errorf("%w: empty command configured for %s linker", kind, l.name)
	}
	return runTool(ctx, kind, result, in.Env, argv[0], argv[1:]...)
}

// expandTemplate substitutes placeholders in template.
func expandTemplate(template []string, in *LinkInputs, vars map[string]string) []string {
	var argv []string
	for _, arg := range template {
		switch {
		case arg == "{{srcs}}":
			argv = append(argv, in.Srcs...)
			continue
		case arg == "{{deps}}":
			argv = append(argv, in.Deps...)
			continue
		case arg == "{{args}}":
			argv = append(argv, in.LinkArgs...)
			continue
		case strings.HasPrefix(arg, "{{deps:") && strings.HasSuffix(arg, "}}"):
			prefix := strings.TrimSuffix(strings.TrimPrefix(arg, "{{deps:"), "}}")
			for _, dep := range in.Deps {
				argv = append(argv, prefix+dep)
			}
			continue
		}
		for key, value := range vars {
			arg = strings.ReplaceAll(arg, "{{"+key+"}}", value)
		}
		argv = append(argv, arg)
	}
	return argv
}
