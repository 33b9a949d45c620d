package exportlib

import "context"

// Linker drives a native toolchain through the two link phases.
//
// # Phases
//
//  1. DiscoverSymbols links the inputs into a throwaway shared library purely
//     so the toolchain writes every externally visible symbol to
//     req.SymbolDump. The throwaway binary is never used afterwards.
//  2. LinkShared performs the real link of the same inputs with the export
//     table, writing req.Output and the import library at req.ImportLibrary.
//
// Both phases append the command lines they run and the tool output to
// result.Output. Failures should be *LinkError values (or at least wrap
// ErrThrowawayLink / ErrFinalLink); the pipeline wraps anything else.
//
// # Example Implementation
//
//	type fakeLinker struct{}
//
//	func (fakeLinker) Name() string { return "fake" }
//
//	func (fakeLinker) DiscoverSymbols(ctx context.Context, req *DiscoverRequest, result *PipelineResult) error {
//	    return os.WriteFile(req.SymbolDump, []byte("mlir_foo\n"), 0o644)
//	}
//
//	func (fakeLinker) LinkShared(ctx context.Context, req *LinkRequest, result *PipelineResult) error {
//	    ...
//	}
//
// # Thread Safety
//
// Linker implementations should be stateless. RunAll uses one Linker for
// targets linked concurrently.
type Linker interface {
	// Name returns the driver name used for lookup and in error messages,
	// e.g. "mingw", "lld-link", "msvc".
	Name() string

	// DiscoverSymbols runs the throwaway link of phase one.
	DiscoverSymbols(ctx context.Context, req *DiscoverRequest, result *PipelineResult) error

	// LinkShared runs the real link of phase two.
	LinkShared(ctx context.Context, req *LinkRequest, result *PipelineResult) error
}

// LinkInputs is shared by both phases; the pipeline hands both links the
// same values.
type LinkInputs struct {
	Srcs     []string          // Direct link inputs, absolute or cwd-relative
	Deps     []string          // Static libraries linked whole
	LinkArgs []string          // Extra linker arguments
	Env      map[string]string // Extra environment for the tool
}

// DiscoverRequest is the input of phase one. Both paths live in the run's
// scratch directory.
type DiscoverRequest struct {
	LinkInputs
	Throwaway  string // Path of the throwaway shared library
	SymbolDump string // Path the symbol dump must be written to
}

// LinkRequest is the input of phase two.
type LinkRequest struct {
	LinkInputs
	Output        string // Path of the shared library; its base name is the LIBRARY name
	ExportTable   string // Path of the export table document
	ImportLibrary string // Path the import library should be written to
}
