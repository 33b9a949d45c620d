// Package exportlib links shared libraries that export only a chosen subset
// of their symbols, on toolchains that cannot export by pattern in a single
// link.
//
// The library is linked twice. A throwaway link makes the linker list every
// visible symbol; the list is filtered (by default to the "mlir" namespace),
// rendered into a module-definition export table naming the final library,
// and the same inputs are linked again with that table. The resulting DLL
// and its import library are published together as one ImportTarget that
// dependent links use like any other shared library.
//
// # Basic Usage
//
//	registry := exportlib.NewLinkerRegistry()
//	linker, err := registry.Resolve("mingw")
//	if err != nil {
//	    return err
//	}
//
//	pipeline := exportlib.NewPipeline(linker, slog.Default())
//	result, err := pipeline.Run(ctx, &exportlib.PipelineConfig{
//	    Name:           "mlir_capi",
//	    Output:         "mlir_capi.dll",
//	    OutDir:         "dist",
//	    Srcs:           []string{"capi.o"},
//	    Deps:           []string{"libMLIRCAPIIR.a"},
//	    ExportPrefixes: []string{"mlir"},
//	})
//
// # Architecture
//
//	Pipeline
//	├── Linker.DiscoverSymbols  (stage 1, throwaway link)
//	├── ReadSymbols             (stage 2)
//	├── FilterExports           (stage 3)
//	├── NewExportTable          (stage 4)
//	├── Linker.LinkShared       (stage 5)
//	└── publish ImportTarget    (stage 6)
//
// Linker drivers: MinGWLinker (gcc/clang), LLDLinker (lld-link) and
// CommandLinker templates such as NewMSVCLinker. LinkerRegistry picks one by
// name or by the tools found in PATH.
//
// Each stage works on explicit values (SymbolRecord, ExportSpec,
// ExportTable), so the stages can be exercised on their own, and phase one
// and phase two can be tested with fake linkers.
//
// # Platform Support
//
// The export-table mechanism is a PE/COFF one; the drivers target Windows
// DLLs, natively or cross-compiled. ExportedSymbols also reads ELF files.
package exportlib
