package tags

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pipfetch/pipfetch/pkg/errdefs"
	"github.com/pipfetch/pipfetch/pkg/toolchain"
)

const compatibleTagsHeader = "Compatible tags:"

// Target narrows enumeration to a machine other than the host. Each
// non-empty field is forwarded to `pip debug` under the flag of the same
// name.
type Target struct {
	Platform       string
	PythonVersion  string
	Implementation string
	ABI            string
}

func (t Target) args() []string {
	var args []string
	if t.Platform != "" {
		args = append(args, "--platform", t.Platform)
	}
	if t.PythonVersion != "" {
		args = append(args, "--python-version", t.PythonVersion)
	}
	if t.Implementation != "" {
		args = append(args, "--implementation", t.Implementation)
	}
	if t.ABI != "" {
		args = append(args, "--abi", t.ABI)
	}
	return args
}

type Options struct {
	Target Target
	// Filter keeps only tags for the detected (or targeted) interpreter
	// version and host machine.
	Filter bool
}

// Enumerator lists compatibility tags by asking the package manager.
type Enumerator struct {
	Runner toolchain.Runner
	Logger *log.Logger
}

// Enumerate runs `<manager> debug --verbose` and returns the compatible
// tags, optionally filtered. Failures are errdefs.ErrToolInvocation.
func (e *Enumerator) Enumerate(ctx context.Context, env *toolchain.Environment, opts Options) ([]Tag, error) {
	args := append([]string{"debug", "--verbose"}, opts.Target.args()...)
	op := env.Manager + " " + strings.Join(args, " ")

	out, err := e.Runner.Output(ctx, env.ManagerPath, args...)
	if err != nil {
		return nil, errdefs.ToolInvocation(op, err)
	}

	all, err := ParseDebugOutput(strings.NewReader(string(out)))
	if err != nil {
		return nil, errdefs.ToolInvocation(op, err)
	}
	e.logger().Debug("enumerated compatible tags", "count", len(all))

	if !opts.Filter {
		return Dedupe(all), nil
	}

	pyVersion := env.PythonVersion()
	if opts.Target.PythonVersion != "" {
		pyVersion = strings.ReplaceAll(opts.Target.PythonVersion, ".", "")
	}
	machine := env.Host.Machine
	if opts.Target.Platform != "" {
		// the platform is already pinned, host architecture is irrelevant
		machine = ""
	}

	filtered := Filter(all, pyVersion, machine)
	e.logger().Debug("filtered compatible tags", "python", pyVersion, "machine", machine, "count", len(filtered))
	return filtered, nil
}

// ParseDebugOutput extracts the "Compatible tags" section of
// `pip debug --verbose` output. The section is the run of indented lines
// after the header.
func ParseDebugOutput(r io.Reader) ([]Tag, error) {
	sc := bufio.NewScanner(r)

	declared := -1
	inSection := false
	var out []Tag

	for sc.Scan() {
		line := sc.Text()

		if !inSection {
			if rest, ok := strings.CutPrefix(line, compatibleTagsHeader); ok {
				n, err := strconv.Atoi(strings.TrimSpace(rest))
				if err != nil {
					return nil, fmt.Errorf("parsing tag count %q: %w", strings.TrimSpace(rest), err)
				}
				declared = n
				inSection = true
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			break
		}

		t, err := Parse(line)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading debug output: %w", err)
	}

	if declared < 0 {
		return nil, fmt.Errorf("no %q section in debug output", compatibleTagsHeader)
	}
	if declared != len(out) {
		return nil, fmt.Errorf("debug output declared %d tags but listed %d", declared, len(out))
	}
	return out, nil
}

// Filter keeps tags whose interpreter or ABI is cp<pyVersion> and whose
// platform mentions machine. An empty machine matches every platform.
// Duplicates are dropped, first occurrence wins.
func Filter(ts []Tag, pyVersion, machine string) []Tag {
	want := "cp" + pyVersion

	var out []Tag
	for _, t := range ts {
		if t.Interpreter != want && t.ABI != want {
			continue
		}
		if machine != "" && !strings.Contains(t.Platform, machine) {
			continue
		}
		out = append(out, t)
	}
	return Dedupe(out)
}

// Dedupe removes repeated tags while preserving order.
func Dedupe(ts []Tag) []Tag {
	seen := make(map[Tag]struct{}, len(ts))
	out := make([]Tag, 0, len(ts))
	for _, t := range ts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var discard = log.New(io.Discard)

func (e *Enumerator) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return discard
}
