package exportlib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"slices"
	"strings"

	"github.com/contriboss/exportlib-go/internal/logutil"
)

// execCommandContext builds external tool commands; tests swap it for a
// helper process.
var execCommandContext = exec.CommandContext

type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return logutil.Discard()
}

// runTool runs tool with args and records the invocation and its combined
// output in result.Output. kind classifies a failure (ErrThrowawayLink or
// ErrFinalLink).
//
// The tool runs to completion once started: ctx is only consulted before
// launch. Arguments reach the tool verbatim; env is added on top of the
// inherited environment.
func runTool(ctx context.Context, kind error, result *PipelineResult, env map[string]string, tool string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	commandLine := tool + " " + strings.Join(args, " ")
	logutil.Trace(ctx, loggerFrom(ctx), "running linker", "command", commandLine)
	result.Output = append(result.Output, "Running: "+commandLine)

	//nolint:gosec // Command is from trusted linker configuration
	cmd := execCommandContext(context.WithoutCancel(ctx), tool, slices.Clone(args)...)
	cmd.Env = cmd.Environ()
	for _, key := range slices.Sorted(maps.Keys(env)) {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, env[key]))
	}

	output, err := cmd.CombinedOutput()
	lines := splitOutput(string(output))
	result.Output = append(result.Output, lines...)
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &LinkError{Kind: kind, Tool: tool, ExitCode: code, Output: lines, Err: err}
	}
	return nil
}

func splitOutput(s string) []string {
	s = strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
