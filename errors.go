package exportlib

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("invalid pipeline configuration")
	ErrThrowawayLink     = errors.New("discovery link failed")
	ErrMalformedMetadata = errors.New("malformed symbol metadata")
	ErrFinalLink         = errors.New("final link failed")
	ErrNameMismatch      = errors.New("export table library name does not match output")
	ErrImportLibrary     = errors.New("import library not produced")
)

// StageError records the stage at which a pipeline run stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("stage %d (%s): %v", int(e.Stage), e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MetadataError points at the first line of a symbol dump that could not be
// understood.
type MetadataError struct {
	Line int
	Text string
	Msg  string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%s: line %d: %s: %q", ErrMalformedMetadata.Error(), e.Line, e.Msg, e.Text)
}

func (e *MetadataError) Unwrap() error { return ErrMalformedMetadata }

// LinkError is returned by linker drivers when the external tool fails.
// Kind is ErrThrowawayLink or ErrFinalLink.
type LinkError struct {
	Kind     error
	Tool     string
	ExitCode int
	Output   []string
	Err      error
}

func (e *LinkError) Error() string {
	return BuildError(e.Tool, e.Output, fmt.Errorf("%w (exit status %d): %v", e.Kind, e.ExitCode, e.Err)).Error()
}

func (e *LinkError) Unwrap() []error { return []error{e.Kind, e.Err} }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
