package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/pipfetch/pipfetch/pkg/errdefs"
	"github.com/pipfetch/pipfetch/pkg/platform"
)

const (
	PrimaryManager   = "pip"
	SecondaryManager = "pip3"
)

// DefaultCandidates is the detection order when no override is configured.
var DefaultCandidates = []string{PrimaryManager, SecondaryManager}

// pip debug first shipped in 19.2; older managers can still download but
// cannot enumerate tags.
var minDebugVersion = version.Must(version.NewVersion("19.2"))

// pip 23.1.2 from /usr/lib/python3/dist-packages/pip (python 3.10)
var pipVersionRE = regexp.MustCompile(`^pip\s+(\S+)\s+from\s+.*\(python\s+(\d+\.\d+)[^)]*\)\s*$`)

// Environment is what the prober learned about the invoking system.
type Environment struct {
	Manager        string           // executable name that answered, e.g. "pip"
	ManagerPath    string           // resolved path of Manager
	ManagerVersion *version.Version // e.g. 23.1.2
	Python         *version.Version // interpreter major.minor, e.g. 3.10
	Host           platform.Host
}

// PythonVersion returns the compact interpreter token pip expects in
// --python-version and in cp tags: major and minor concatenated ("310").
func (e *Environment) PythonVersion() string {
	if e == nil || e.Python == nil {
		return ""
	}
	segs := e.Python.Segments()
	if len(segs) < 2 {
		return fmt.Sprint(segs[0])
	}
	return fmt.Sprintf("%d%d", segs[0], segs[1])
}

// PipVersion returns the manager version as printed by pip.
func (e *Environment) PipVersion() string {
	if e == nil || e.ManagerVersion == nil {
		return ""
	}
	return e.ManagerVersion.Original()
}

// SupportsDebug reports whether the manager can list compatible tags.
func (e *Environment) SupportsDebug() bool {
	return e != nil && e.ManagerVersion != nil && e.ManagerVersion.GreaterThanOrEqual(minDebugVersion)
}

// Prober detects the package manager, interpreter version, and host
// platform. All host access goes through Locator and Runner.
type Prober struct {
	Locator    Locator
	Runner     Runner
	Candidates []string // tried in order; first that answers --version wins
	GOOS       string
	GOARCH     string
	Logger     *log.Logger
}

// NewProber returns a prober over the real PATH and os/exec. An empty
// candidates list falls back to DefaultCandidates.
func NewProber(candidates []string, logger *log.Logger) *Prober {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return &Prober{
		Locator:    PathLocator{},
		Runner:     &ExecRunner{},
		Candidates: candidates,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		Logger:     logger,
	}
}

// Probe detects the environment. It fails with an errdefs.ErrEnvironment
// error when no candidate answers and errdefs.ErrToolInvocation when the
// answering candidate prints an unrecognised version line.
func (p *Prober) Probe(ctx context.Context) (*Environment, error) {
	name, path, out, err := p.detectManager(ctx)
	if err != nil {
		return nil, err
	}

	pipVer, pyVer, err := ParseVersionLine(out)
	if err != nil {
		return nil, errdefs.ToolInvocation(name+" --version", err)
	}

	env := &Environment{
		Manager:        name,
		ManagerPath:    path,
		ManagerVersion: pipVer,
		Python:         pyVer,
		Host:           platform.Detect(p.GOOS, p.GOARCH),
	}

	l := p.logger()
	l.Debug("detected package manager", "manager", name, "path", path, "pip", env.PipVersion(), "python", env.PythonVersion(), "host", env.Host)
	if !env.SupportsDebug() {
		l.Warn("package manager too old to list compatible tags", "manager", name, "version", env.PipVersion(), "minimum", minDebugVersion.String())
	}

	return env, nil
}

func (p *Prober) detectManager(ctx context.Context) (name, path, out string, err error) {
	var errs []error
	for _, candidate := range p.Candidates {
		resolved, err := p.Locator.LookPath(candidate)
		if err != nil {
			p.logger().Debug("package manager not found", "candidate", candidate, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
			continue
		}

		stdout, err := p.Runner.Output(ctx, resolved, "--version")
		if err != nil {
			if ctx.Err() != nil {
				return "", "", "", ctx.Err()
			}
			p.logger().Debug("package manager did not respond", "candidate", candidate, "err", err)
			errs = append(errs, fmt.Errorf("%s --version: %w", candidate, err))
			continue
		}

		return candidate, resolved, string(stdout), nil
	}

	cause := fmt.Errorf("none of %s responded: %w", strings.Join(p.Candidates, ", "), errors.Join(errs...))
	return "", "", "", errdefs.Environment("detecting package manager", cause)
}

// ParseVersionLine extracts the manager and interpreter versions from the
// output of `pip --version`.
func ParseVersionLine(out string) (pip *version.Version, python *version.Version, err error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	m := pipVersionRE.FindStringSubmatch(line)
	if m == nil {
		return nil, nil, fmt.Errorf("unrecognised version output %q", line)
	}

	pip, err = version.NewVersion(m[1])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing pip version %q: %w", m[1], err)
	}
	python, err = version.NewVersion(m[2])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing python version %q: %w", m[2], err)
	}
	return pip, python, nil
}

var discard = log.New(io.Discard)

func (p *Prober) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return discard
}
