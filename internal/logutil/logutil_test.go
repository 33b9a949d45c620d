package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	Trace(context.Background(), logger, "running linker", "tool", "gcc")

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "tool=gcc")
	assert.Contains(t, out, "logutil_test.go")
}

func TestTraceSuppressedAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	Trace(context.Background(), logger, "hidden")
	logger.Debug("also hidden")

	assert.Empty(t, buf.String())
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
	Trace(context.Background(), nil, "no logger")
}
