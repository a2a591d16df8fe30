package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Locator resolves an executable name to a path. It is the only way the
// prober learns about the host, so tests can substitute a fake.
type Locator interface {
	LookPath(name string) (string, error)
}

// Runner executes package-manager subprocesses.
type Runner interface {
	// Output runs name with args and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Run runs name with args, streaming output to the runner's writers.
	Run(ctx context.Context, name string, args ...string) error
}

// PathLocator resolves executables from PATH.
type PathLocator struct{}

var _ Locator = PathLocator{}

func (PathLocator) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// ExecRunner runs real subprocesses via os/exec.
type ExecRunner struct {
	Stdout io.Writer // nil discards
	Stderr io.Writer // nil discards
	Env    []string  // extra KEY=VALUE entries appended to the inherited environment
}

var _ Runner = &ExecRunner{}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := r.command(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return out, execError(err)
	}
	return out, nil
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := r.command(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stdout = r.Stdout
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(r.Stderr, &stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (r *ExecRunner) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	return cmd
}

// execError extracts stderr from an *exec.ExitError when available.
func execError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
	}
	return err
}

// lastLine returns the last non-blank line of s; pip puts its final
// "ERROR: ..." summary there.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
