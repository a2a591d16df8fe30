// Package fetch drives the package manager's download command once per
// target tag, falling back to source distributions when no binary matches.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pipfetch/pipfetch/pkg/errdefs"
	"github.com/pipfetch/pipfetch/pkg/store"
	"github.com/pipfetch/pipfetch/pkg/tags"
	"github.com/pipfetch/pipfetch/pkg/toolchain"
)

// Mode is how a tag's download was satisfied.
type Mode string

const (
	ModeBinary Mode = "binary"
	ModeSource Mode = "source"
	ModeFailed Mode = "failed"
)

// Result is the outcome of one tag iteration.
type Result struct {
	Tag  tags.Tag
	Mode Mode
	// Err is the binary attempt's error when Mode is ModeSource, and the
	// final error when Mode is ModeFailed.
	Err error
}

// Warning is a non-fatal per-tag failure: both the binary attempt and the
// source retry failed. One download covers every requirement for the tag,
// so a warning names the tag rather than a single package.
type Warning struct {
	Tag       tags.Tag
	BinaryErr error
	SourceErr error
}

func (w Warning) Error() string {
	return fmt.Sprintf("tag %s: %s", w.Tag, w.Cause())
}

// Cause describes why the tag failed, without the tag itself.
func (w Warning) Cause() string {
	if w.SourceErr == nil {
		return fmt.Sprint(w.BinaryErr)
	}
	return fmt.Sprintf("binary: %v; source: %v", w.BinaryErr, w.SourceErr)
}

// Report aggregates a whole run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
	Warnings []Warning
}

// Count returns how many results ended in mode.
func (r *Report) Count(mode Mode) int {
	n := 0
	for _, res := range r.Results {
		if res.Mode == mode {
			n++
		}
	}
	return n
}

// Orchestrator runs `<manager> download` for every tag, sequentially.
type Orchestrator struct {
	Runner  toolchain.Runner
	Manager string // executable to invoke, usually the prober's ManagerPath
	Store   store.Store

	DefaultPackages []string
	// NoBinaryFallback forbids wheels in the source retry.
	NoBinaryFallback bool
	// ErrorsLog receives one appended line per warning; empty disables it.
	ErrorsLog string

	Logger   *log.Logger
	Now      func() time.Time
	NewRunID func() string
}

// Run downloads requirements plus the default packages for every tag into
// the store. Per-tag failures never abort the run; they are returned in
// Report.Warnings. The returned error is reserved for setup failures and
// context cancellation, in which case the partial report is still returned.
func (o *Orchestrator) Run(ctx context.Context, requirements string, ts []tags.Tag) (*Report, error) {
	if err := ValidateRequirements(requirements); err != nil {
		return nil, err
	}
	if err := o.Store.EnsureDir(); err != nil {
		return nil, err
	}

	report := &Report{RunID: o.runID(), Started: o.now()}
	l := o.logger().With("run", report.RunID)

	for i, tag := range ts {
		if err := ctx.Err(); err != nil {
			return o.finish(l, report), err
		}

		l.Info("downloading", "tag", tag, "n", fmt.Sprintf("%d/%d", i+1, len(ts)))
		res := o.downloadTag(ctx, l, requirements, tag)
		if res.Mode == ModeFailed && ctx.Err() != nil {
			return o.finish(l, report), ctx.Err()
		}

		report.Results = append(report.Results, res)
		if res.Mode == ModeFailed {
			w := Warning{Tag: tag, BinaryErr: res.Err}
			var fe *fallbackError
			if errors.As(res.Err, &fe) {
				w.BinaryErr, w.SourceErr = fe.binary, fe.source
			}
			report.Warnings = append(report.Warnings, w)
			l.Warn("download failed, continuing with next tag", "tag", tag, "err", w)
		}
	}

	return o.finish(l, report), nil
}

// finish stamps the report and records its warnings, including on the
// cancellation paths.
func (o *Orchestrator) finish(l *log.Logger, report *Report) *Report {
	report.Finished = o.now()
	if err := o.appendErrorsLog(report); err != nil {
		l.Warn("could not record download errors", "path", o.ErrorsLog, "err", err)
	}
	return report
}

// fallbackError carries both attempts' errors for a failed tag.
type fallbackError struct {
	binary error
	source error
}

func (e *fallbackError) Error() string {
	return fmt.Sprintf("binary: %v; source: %v", e.binary, e.source)
}

func (o *Orchestrator) downloadTag(ctx context.Context, l *log.Logger, requirements string, tag tags.Tag) Result {
	args, err := o.binaryArgs(requirements, tag)
	if err != nil {
		return Result{Tag: tag, Mode: ModeFailed, Err: err}
	}

	binErr := o.Runner.Run(ctx, o.Manager, args...)
	if binErr == nil {
		return Result{Tag: tag, Mode: ModeBinary}
	}
	if ctx.Err() != nil {
		return Result{Tag: tag, Mode: ModeFailed, Err: ctx.Err()}
	}

	// Any failure of the binary-only attempt triggers the retry; pip does
	// not distinguish "no matching wheel" from other errors in its exit code.
	l.Warn("binary download failed, retrying with source distributions", "tag", tag, "err", binErr)

	srcErr := o.Runner.Run(ctx, o.Manager, o.sourceArgs(requirements)...)
	if srcErr == nil {
		return Result{Tag: tag, Mode: ModeSource, Err: binErr}
	}
	return Result{Tag: tag, Mode: ModeFailed, Err: &fallbackError{binary: binErr, source: srcErr}}
}

func (o *Orchestrator) binaryArgs(requirements string, tag tags.Tag) ([]string, error) {
	pyVersion, err := tag.PythonVersion()
	if err != nil {
		return nil, err
	}

	args := o.targets(requirements)
	args = append(args,
		"--python-version", pyVersion,
		"--platform", tag.Platform,
		"--abi", tag.ABI,
		"--only-binary=:all:",
		"--dest", o.Store.Root(),
	)
	return args, nil
}

// sourceArgs drops the platform constraints: pip refuses --platform and
// friends unless binaries are mandatory.
func (o *Orchestrator) sourceArgs(requirements string) []string {
	args := o.targets(requirements)
	if o.NoBinaryFallback {
		args = append(args, "--no-binary=:all:")
	}
	return append(args, "--dest", o.Store.Root())
}

func (o *Orchestrator) targets(requirements string) []string {
	args := []string{"download", "-r", requirements}
	return append(args, o.DefaultPackages...)
}

func (o *Orchestrator) appendErrorsLog(report *Report) error {
	if o.ErrorsLog == "" || len(report.Warnings) == 0 {
		return nil
	}

	f, err := os.OpenFile(o.ErrorsLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	stamp := report.Finished.UTC().Format(time.RFC3339)
	for _, w := range report.Warnings {
		line := fmt.Sprintf("%s run=%s Failed to download binary and source for tag %s: %s\n",
			stamp, report.RunID, w.Tag, oneLine(w.Cause()))
		if _, err := f.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRequirements checks that path names a readable requirements file
// with at least one entry. Failures are errdefs.ErrFileFormat.
func ValidateRequirements(path string) error {
	if path == "" {
		return errdefs.FileFormat("reading requirements", path, errors.New("no requirements file given"))
	}

	f, err := os.Open(path)
	if err != nil {
		return errdefs.FileFormat("reading requirements", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errdefs.FileFormat("reading requirements", path, err)
	}
	if info.IsDir() {
		return errdefs.FileFormat("reading requirements", path, errors.New("is a directory"))
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return errdefs.FileFormat("reading requirements", path, err)
	}
	return errdefs.FileFormat("reading requirements", path, errors.New("file has no requirements"))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) runID() string {
	if o.NewRunID != nil {
		return o.NewRunID()
	}
	return uuid.NewString()
}

var discard = log.New(io.Discard)

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return discard
}
