package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Setup-phase failures wrap exactly one of these so the CLI
// can classify them with errors.Is.
var (
	// ErrEnvironment means no usable package manager was detected.
	ErrEnvironment = errors.New("environment error")
	// ErrToolInvocation means the package manager exited non-zero or
	// produced output that could not be parsed.
	ErrToolInvocation = errors.New("tool invocation error")
	// ErrFileFormat means a tags or requirements file is absent or empty.
	ErrFileFormat = errors.New("file format error")
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind error
	Path string // optional: relevant file path
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := e.Op
	if e.Kind != nil {
		base += ": " + e.Kind.Error()
	}
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func Environment(op string, err error) error {
	return &OpError{Op: op, Kind: ErrEnvironment, Err: err}
}

func ToolInvocation(op string, err error) error {
	return &OpError{Op: op, Kind: ErrToolInvocation, Err: err}
}

func FileFormat(op, path string, err error) error {
	return &OpError{Op: op, Kind: ErrFileFormat, Path: path, Err: err}
}

// IsKind reports whether err was classified as kind.
func IsKind(err, kind error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}
