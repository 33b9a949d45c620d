package exportlib

import (
	"context"
	"runtime"
)

// hostOS is the operating system drivers are looked up for; tests swap it.
var hostOS = runtime.GOOS

// MinGWLinker links PE DLLs with a MinGW gcc or clang driver.
//
// Phase one uses GNU ld's --export-all-symbols together with --output-def so
// the linker itself writes the full export list; phase two feeds the filtered
// table back as an input file and asks for the import library with
// --out-implib. Deps are wrapped in --whole-archive so both phases see every
// object of every dependency.
type MinGWLinker struct {
	// Driver overrides the compiler driver; empty selects the first of
	// RequiredTools found in PATH. Plain gcc and clang are only candidates
	// on Windows hosts; elsewhere they target the host's own object format.
	Driver string
}

// Name returns the linker name
func (l *MinGWLinker) Name() string {
	return "mingw"
}

// RequiredTools returns the compiler drivers this linker can use
func (l *MinGWLinker) RequiredTools() []ToolRequirement {
	if l.Driver != "" {
		return []ToolRequirement{{Name: l.Driver, Purpose: "MinGW compiler driver"}}
	}
	alternatives := []string{
		"x86_64-w64-mingw32-clang",
		"i686-w64-mingw32-gcc",
	}
	if hostOS == "windows" {
		alternatives = append(alternatives, "gcc", "clang")
	}
	return []ToolRequirement{
		{
			Name:         "x86_64-w64-mingw32-gcc",
			Alternatives: alternatives,
			Purpose:      "MinGW compiler driver",
		},
	}
}

// CheckTools verifies that a driver is available
func (l *MinGWLinker) CheckTools() error {
	return CheckRequiredTools(l.RequiredTools())
}

// DiscoverSymbols links the throwaway DLL and writes its export list
func (l *MinGWLinker) DiscoverSymbols(ctx context.Context, req *DiscoverRequest, result *PipelineResult) error {
	args := []string{"-shared", "-o", req.Throwaway}
	args = append(args, l.inputArgs(&req.LinkInputs)...)
	args = append(args,
		"-Wl,--export-all-symbols",
		"-Wl,--output-def,"+req.SymbolDump,
	)
	return runTool(ctx, ErrThrowawayLink, result, req.Env, l.driver(), args...)
}

// LinkShared links the real DLL against the export table
func (l *MinGWLinker) LinkShared(ctx context.Context, req *LinkRequest, result *PipelineResult) error {
	args := []string{"-shared", "-o", req.Output, req.ExportTable}
	args = append(args, l.inputArgs(&req.LinkInputs)...)
	args = append(args,
		"-Wl,--exclude-all-symbols",
		"-Wl,--out-implib,"+req.ImportLibrary,
	)
	return runTool(ctx, ErrFinalLink, result, req.Env, l.driver(), args...)
}

func (l *MinGWLinker) inputArgs(in *LinkInputs) []string {
	args := append([]string{}, in.Srcs...)
	if len(in.Deps) > 0 {
		args = append(args, "-Wl,--whole-archive")
		args = append(args, in.Deps...)
		args = append(args, "-Wl,--no-whole-archive")
	}
	return append(args, in.LinkArgs...)
}

func (l *MinGWLinker) driver() string {
	if l.Driver != "" {
		return l.Driver
	}
	if tool, ok := l.RequiredTools()[0].Resolve(); ok {
		return tool
	}
	return "x86_64-w64-mingw32-gcc"
}
