package exportlib

import (
	"context"
)

// LLDLinker drives lld-link, LLVM's link.exe compatible COFF linker.
//
// lld-link understands the MinGW-only /export-all-symbols and /output-def:
// switches, which gives the discovery link the same shape as MinGWLinker
// while the final link uses the MSVC-style /def: and /implib: options.
type LLDLinker struct {
	// Tool overrides the lld-link binary.
	Tool string
}

// Name returns the linker name
func (l *LLDLinker) Name() string {
	return "lld-link"
}

// RequiredTools returns the tools needed for lld-link builds
func (l *LLDLinker) RequiredTools() []ToolRequirement {
	return []ToolRequirement{{Name: l.tool(), Purpose: "LLVM COFF linker"}}
}

// CheckTools verifies that lld-link is available
func (l *LLDLinker) CheckTools() error {
	return CheckRequiredTools(l.RequiredTools())
}

// DiscoverSymbols links the throwaway DLL and writes its export list
func (l *LLDLinker) DiscoverSymbols(ctx context.Context, req *DiscoverRequest, result *PipelineResult) error {
	args := []string{
		"/nologo", "/dll",
		"/out:" + req.Throwaway,
		"/implib:" + req.Throwaway + ".lib",
		"/export-all-symbols",
		"/output-def:" + req.SymbolDump,
	}
	args = append(args, l.inputArgs(&req.LinkInputs)...)
	return runTool(ctx, ErrThrowawayLink, result, req.Env, l.tool(), args...)
}

// LinkShared links the real DLL against the export table
func (l *LLDLinker) LinkShared(ctx context.Context, req *LinkRequest, result *PipelineResult) error {
	args := []string{
		"/nologo", "/dll",
		"/out:" + req.Output,
		"/def:" + req.ExportTable,
		"/implib:" + req.ImportLibrary,
	}
	args = append(args, l.inputArgs(&req.LinkInputs)...)
	return runTool(ctx, ErrFinalLink, result, req.Env, l.tool(), args...)
}

func (l *LLDLinker) inputArgs(in *LinkInputs) []string {
	args := append([]string{}, in.Srcs...)
	for _, dep := range in.Deps {
		args = append(args, "/wholearchive:"+dep)
	}
	return append(args, in.LinkArgs...)
}

func (l *LLDLinker) tool() string {
	if l.Tool != "" {
		return l.Tool
	}
	return "lld-link"
}
