package exportlib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/contriboss/exportlib-go/internal/logutil"
)

// Pipeline links one shared library with a filtered export table.
//
// # Process Flow
//
//  1. Discover: throwaway link, the linker writes every visible symbol to a dump
//  2. Extract: parse the dump; the throwaway files are deleted right after
//  3. Filter: keep the symbols accepted by the export predicate
//  4. Synthesize: render the export table for the final output name
//  5. Link: re-read the table, check its LIBRARY name, link for real
//  6. Adapt: locate the import library and publish the pair
//
// Stages run strictly in order. The first failing stage ends the run, and
// nothing is published unless all six succeed. Every run owns a scratch
// directory that is removed on return.
//
// A Pipeline holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	Linker Linker
	Logger *slog.Logger
}

// NewPipeline creates a pipeline for linker. A nil logger discards output.
func NewPipeline(linker Linker, logger *slog.Logger) *Pipeline {
	return &Pipeline{Linker: linker, Logger: logger}
}

// exportTableWritten observes the export table once stage 4 has put it on
// disk; tests swap it.
var exportTableWritten = func(path string) {}

type stage struct {
	stage Stage
	run   func(ctx context.Context) error
}

// run carries the documents one pipeline instance hands from stage to stage.
type run struct {
	cfg    *PipelineConfig
	linker Linker
	logger *slog.Logger
	result *PipelineResult
	pred   Predicate
	inputs LinkInputs

	scratch      string
	discoverDir  string
	dump         string
	records      []SymbolRecord
	tablePath    string
	stageDir     string
	binary       string
	wantedImplib string
}

// Run executes the pipeline for config.
//
// The returned result is never nil. On failure result.Error is the returned
// error; failures inside a stage are *StageError values whose Unwrap chain
// reaches one of the Err* sentinels.
func (p *Pipeline) Run(ctx context.Context, config *PipelineConfig) (*PipelineResult, error) {
	result := &PipelineResult{ID: uuid.NewString(), Output: []string{}}
	if config != nil {
		result.Name = config.Name
	}

	fail := func(err error) (*PipelineResult, error) {
		result.Error = err
		return result, err
	}

	if p.Linker == nil {
		return fail(invalidf("no linker configured"))
	}
	if err := config.Validate(); err != nil {
		return fail(err)
	}
	pred, err := config.ExportPredicate()
	if err != nil {
		return fail(err)
	}

	logger := p.logger().With("target", config.Name, "run", result.ID)
	ctx = withLogger(ctx, logger)

	if config.ScratchDir != "" {
		if err := os.MkdirAll(config.ScratchDir, 0o755); err != nil {
			return fail(fmt.Errorf("creating scratch directory: %w", err))
		}
	}
	scratch, err := os.MkdirTemp(config.ScratchDir, "exportlib-"+result.ID[:8]+"-")
	if err != nil {
		return fail(fmt.Errorf("creating scratch directory: %w", err))
	}
	if config.KeepScratch {
		logger.Info("keeping scratch directory", "dir", scratch)
	} else {
		defer os.RemoveAll(scratch)
	}

	r := &run{
		cfg:    config,
		linker: p.Linker,
		logger: logger,
		result: result,
		pred:   pred,
		inputs: LinkInputs{
			Srcs:     config.resolveAll(config.Srcs),
			Deps:     config.resolveAll(config.Deps),
			LinkArgs: append([]string{}, config.LinkArgs...),
			Env:      config.Env,
		},
		scratch: scratch,
	}

	return runStages(ctx, logger, result, []stage{
		{StageDiscover, r.discover},
		{StageExtract, r.extract},
		{StageFilter, r.filter},
		{StageSynthesize, r.synthesize},
		{StageLink, r.link},
		{StageAdapt, r.adapt},
	})
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logutil.Discard()
}

// runStages executes stages in order, stopping at the first error or when
// ctx is done. A stage already running is never interrupted.
func runStages(ctx context.Context, logger *slog.Logger, result *PipelineResult, stages []stage) (*PipelineResult, error) {
	for _, s := range stages {
		result.Stage = s.stage

		err := ctx.Err()
		if err == nil {
			logger.Debug("stage started", "stage", s.stage)
			err = s.run(ctx)
		}
		if err != nil {
			stageErr := &StageError{Stage: s.stage, Err: err}
			logger.Debug("stage failed", "stage", s.stage, "error", err)
			result.Error = stageErr
			return result, stageErr
		}
	}

	result.Success = true
	return result, nil
}

func (r *run) discover(ctx context.Context) error {
	r.discoverDir = filepath.Join(r.scratch, "discover")
	if err := os.MkdirAll(r.discoverDir, 0o755); err != nil {
		return err
	}

	ext := filepath.Ext(r.cfg.Output)
	throwaway := filepath.Join(r.discoverDir, strings.TrimSuffix(r.cfg.Output, ext)+".throwaway"+ext)
	r.dump = filepath.Join(r.discoverDir, r.cfg.Output+".full.def")

	req := &DiscoverRequest{
		LinkInputs: r.inputs.clone(),
		Throwaway:  throwaway,
		SymbolDump: r.dump,
	}
	if err := r.linker.DiscoverSymbols(ctx, req, r.result); err != nil {
		return classify(err, ErrThrowawayLink)
	}
	if info, err := os.Stat(r.dump); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s linker left no symbol dump at %s", ErrThrowawayLink, r.linker.Name(), r.dump)
	}
	return nil
}

func (r *run) extract(ctx context.Context) error {
	defer r.discardThrowaway()

	records, err := ReadSymbolFile(r.dump)
	if err != nil {
		return err
	}
	r.records = records
	r.logger.Debug("symbols discovered", "count", len(records))
	return nil
}

// discardThrowaway deletes the throwaway library and its dump once they have
// been read, whatever the later stages do.
func (r *run) discardThrowaway() {
	if r.cfg.KeepScratch {
		return
	}
	if err := os.RemoveAll(r.discoverDir); err != nil {
		r.logger.Warn("failed to remove throwaway artifacts", "dir", r.discoverDir, "error", err)
	}
}

func (r *run) filter(ctx context.Context) error {
	discovered := len(r.records)
	spec, err := FilterExports(SliceRecords(r.records), r.pred)
	r.records = nil
	if err != nil {
		return err
	}

	r.result.Exports = spec
	if len(spec) == 0 {
		r.logger.Warn("no symbols matched the export predicate, the library will export nothing", "discovered", discovered)
	} else {
		r.logger.Debug("exports selected", "count", len(spec), "discovered", discovered)
	}
	return nil
}

func (r *run) synthesize(ctx context.Context) error {
	table, err := NewExportTable(r.cfg.Output, r.result.Exports)
	if err != nil {
		return err
	}
	r.tablePath = filepath.Join(r.scratch, r.cfg.Output+".def")
	if err := table.WriteFile(r.tablePath); err != nil {
		return fmt.Errorf("writing export table: %w", err)
	}
	r.result.ExportTable = table
	exportTableWritten(r.tablePath)
	return nil
}

func (r *run) link(ctx context.Context) error {
	table, err := ReadExportTableFile(r.tablePath)
	if err != nil {
		return fmt.Errorf("%w: re-reading export table: %v", ErrFinalLink, err)
	}
	if err := table.CheckLibraryName(r.cfg.Output); err != nil {
		return err
	}

	r.stageDir = filepath.Join(r.scratch, "stage")
	if err := os.MkdirAll(r.stageDir, 0o755); err != nil {
		return err
	}

	req := &LinkRequest{
		LinkInputs:    r.inputs.clone(),
		Output:        filepath.Join(r.stageDir, r.cfg.Output),
		ExportTable:   r.tablePath,
		ImportLibrary: filepath.Join(r.stageDir, r.cfg.importLibraryName()),
	}
	if err := r.linker.LinkShared(ctx, req, r.result); err != nil {
		return classify(err, ErrFinalLink)
	}
	if info, err := os.Stat(req.Output); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s linker did not produce %s", ErrFinalLink, r.linker.Name(), req.Output)
	}

	if r.cfg.Verify {
		got, err := ExportedSymbols(req.Output)
		if err != nil {
			return fmt.Errorf("%w: reading exports: %v", ErrFinalLink, err)
		}
		if err := verifyExports(got, table.Symbols); err != nil {
			return err
		}
	}

	r.binary = req.Output
	r.wantedImplib = req.ImportLibrary
	return nil
}

func (r *run) adapt(ctx context.Context) error {
	implib, err := locateImportLibrary(r.stageDir, r.wantedImplib, r.cfg.Output)
	if err != nil {
		return err
	}

	outDir := r.cfg.outDir()
	binary, interfaceLib, err := publishPair(outDir, r.binary, r.cfg.Output, implib, r.cfg.importLibraryName())
	if err != nil {
		return fmt.Errorf("publishing %s: %w", r.cfg.Name, err)
	}

	target := &ImportTarget{
		Name:             r.cfg.Name,
		SharedLibrary:    binary,
		InterfaceLibrary: interfaceLib,
		Exports:          append(ExportSpec{}, r.result.Exports...),
	}
	if r.cfg.WriteManifest {
		if err := target.WriteManifest(ManifestPath(outDir, r.cfg.Name)); err != nil {
			os.Remove(binary)
			os.Remove(interfaceLib)
			return fmt.Errorf("writing import manifest: %w", err)
		}
	}

	r.result.Target = target
	r.logger.Info("published shared library", "library", binary, "import_library", interfaceLib, "exports", len(target.Exports))
	return nil
}

func (in LinkInputs) clone() LinkInputs {
	return LinkInputs{
		Srcs:     append([]string{}, in.Srcs...),
		Deps:     append([]string{}, in.Deps...),
		LinkArgs: append([]string{}, in.LinkArgs...),
		Env:      maps.Clone(in.Env),
	}
}

// classify makes sure err carries kind.
func classify(err, kind error) error {
	if errors.Is(err, kind) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
