package exportlib

import (
	"context"
	"errors"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// RunAll runs one pipeline per config, at most jobs at a time.
//
// Each target gets its own pipeline instance and scratch directory; the
// stages inside a target still run sequentially. With stopOnFailure, the
// first failure cancels targets that have not started yet; already running
// links finish.
//
// # Return Values
//
// The results slice is index-aligned with configs and every entry is
// non-nil. The returned error is the error of the lowest-index target that
// failed on its own; targets cancelled by stopOnFailure only count when
// nothing else failed.
func (p *Pipeline) RunAll(ctx context.Context, configs []*PipelineConfig, jobs int, stopOnFailure bool) ([]*PipelineResult, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	if err := checkDistinctTargets(configs); err != nil {
		return nil, err
	}
	if jobs <= 0 {
		jobs = 1
	}

	results := make([]*PipelineResult, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, config := range configs {
		runCtx := ctx
		if stopOnFailure {
			runCtx = gctx
		}

		g.Go(func() error {
			if err := runCtx.Err(); err != nil {
				results[i] = &PipelineResult{Name: config.Name, Error: err}
				return err
			}
			result, err := p.Run(runCtx, config)
			results[i] = result
			if stopOnFailure {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	var firstErr, cancelled error
	for _, result := range results {
		switch {
		case result.Error == nil:
		case ctx.Err() == nil && errors.Is(result.Error, context.Canceled):
			if cancelled == nil {
				cancelled = result.Error
			}
		case firstErr == nil:
			firstErr = result.Error
		}
	}
	if firstErr == nil {
		firstErr = cancelled
	}
	return results, firstErr
}

// checkDistinctTargets rejects batches in which two targets would publish
// the same files.
func checkDistinctTargets(configs []*PipelineConfig) error {
	names := make(map[string]struct{}, len(configs))
	outputs := make(map[string]string, len(configs))
	for _, config := range configs {
		if err := config.Validate(); err != nil {
			return err
		}
		if _, dup := names[config.Name]; dup {
			return invalidf("target %s is defined twice", config.Name)
		}
		names[config.Name] = struct{}{}

		for _, file := range []string{config.Output, config.importLibraryName()} {
			path := filepath.Clean(filepath.Join(config.outDir(), file))
			if other, dup := outputs[path]; dup {
				return invalidf("targets %s and %s both write %s", other, config.Name, path)
			}
			outputs[path] = config.Name
		}
	}
	return nil
}
