package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pipfetch/pipfetch/pkg/config"
	"github.com/pipfetch/pipfetch/pkg/errdefs"
	"github.com/pipfetch/pipfetch/pkg/toolchain"
	"github.com/pipfetch/pipfetch/pkg/toolchain/toolchaintest"
)

const versionLine = "pip 23.1.2 from /usr/lib/python3/dist-packages/pip (python 3.10)\n"

const debugOutput = `pip version: pip 23.1.2 from /usr/lib/python3/dist-packages/pip (python 3.10)
sys.platform: linux
Compatible tags: 6
  cp310-cp310-manylinux_2_17_x86_64
  cp310-abi3-manylinux_2_17_x86_64
  cp39-abi3-manylinux_2_17_x86_64
  cp310-none-any
  py3-none-any
  cp310-cp310-manylinux_2_17_x86_64
`

// pipHandler answers like a healthy pip; downloads for tags containing
// fail are rejected together with their source retry.
func pipHandler(fail string) func(toolchaintest.Call) toolchaintest.Response {
	var failing bool
	return func(c toolchaintest.Call) toolchaintest.Response {
		switch {
		case c.Has("--version"):
			return toolchaintest.Response{Stdout: versionLine}
		case c.Has("debug"):
			return toolchaintest.Response{Stdout: debugOutput}
		case c.Has("download"):
			if c.Has("--only-binary=:all:") {
				failing = fail != "" && strings.Contains(c.Line(), fail)
			}
			if failing {
				return toolchaintest.Response{Err: errors.New("exit status 1: ERROR: No matching distribution")}
			}
		}
		return toolchaintest.Response{}
	}
}

func fakeDeps(runner *toolchaintest.Runner, paths map[string]string) *deps {
	return &deps{
		locator:   &toolchaintest.Locator{Paths: paths},
		newRunner: func(_, _ io.Writer) toolchain.Runner { return runner },
		goos:      "linux",
		goarch:    "amd64",
		now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		newRunID:  func() string { return "run-1" },
		prompt: func(defaults *config.Config) (*initAnswers, error) {
			return &initAnswers{
				DefaultPackages:  []string{"wheel"},
				NoBinaryFallback: true,
				Gitignore:        []string{"packages/"},
			}, nil
		},
	}
}

var pipOnPath = map[string]string{"pip": "/usr/bin/pip"}

// inTempDir isolates a test from the real working directory and home.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return dir
}

func execute(t *testing.T, d *deps, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(d)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInfoWritesTagsFile(t *testing.T) {
	dir := inTempDir(t)
	runner := &toolchaintest.Runner{Handler: pipHandler("")}

	stdout, _, err := execute(t, fakeDeps(runner, pipOnPath), "-i")
	if err != nil {
		t.Fatalf("pipfetch -i error: %v", err)
	}

	for _, want := range []string{
		"Platform: linux",
		"Python version: 310",
		"Pip version: 23.1.2",
		"-r requirements.txt -d ./packages",
		"Number of filtered tags found: 2",
		"Attempting to write system tags to file system.tags...",
		"Writing to file completed.",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "system.tags"))
	if err != nil {
		t.Fatal(err)
	}
	want := "cp310-cp310-manylinux_2_17_x86_64\ncp310-abi3-manylinux_2_17_x86_64\n"
	if string(data) != want {
		t.Errorf("system.tags = %q, want %q", data, want)
	}
}

func TestInfoHonoursTagsPathAndFormat(t *testing.T) {
	dir := inTempDir(t)
	runner := &toolchaintest.Runner{Handler: pipHandler("")}

	stdout, stderr, err := execute(t, fakeDeps(runner, pipOnPath), "-i", "-t", "host.tags", "--format", "json")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), "{") || strings.Contains(stdout, "Writing to file") {
		t.Errorf("stdout should hold only the json report:\n%s", stdout)
	}
	if !strings.Contains(stderr, "Writing to file completed.") {
		t.Errorf("progress should be logged to stderr:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "host.tags")); err != nil {
		t.Errorf("host.tags not written: %v", err)
	}
}

func TestInfoNoPackageManager(t *testing.T) {
	inTempDir(t)
	runner := &toolchaintest.Runner{Handler: pipHandler("")}

	_, _, err := execute(t, fakeDeps(runner, nil), "-i")
	if !errdefs.IsKind(err, errdefs.ErrEnvironment) {
		t.Fatalf("error = %v, want environment error", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode = %d, want 1", ExitCode(err))
	}
}

func TestInfoFallsBackToPip3(t *testing.T) {
	inTempDir(t)
	runner := &toolchaintest.Runner{Handler: pipHandler("")}

	_, _, err := execute(t, fakeDeps(runner, map[string]string{"pip3": "/usr/local/bin/pip3"}), "-i")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	calls := runner.Calls()
	if len(calls) == 0 || calls[len(calls)-1].Name != "/usr/local/bin/pip3" {
		t.Errorf("calls = %v, want pip3 to be used", calls)
	}
}

func TestDownload(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, "requirements.txt"), "requests==2.31.0\n")
	writeFile(t, filepath.Join(dir, "system.tags"), "cp310-cp310-manylinux_2_17_x86_64\ncp39-cp39-win_amd64\n")

	runner := &toolchaintest.Runner{Handler: pipHandler("win_amd64")}

	stdout, _, err := execute(t, fakeDeps(runner, pipOnPath), "-r", "requirements.txt", "-d", "packages")
	if err != nil {
		t.Fatalf("download error: %v", err)
	}

	var binary, source int
	for _, c := range runner.Calls() {
		if !c.Has("download") {
			continue
		}
		if !c.Has("requirements.txt") {
			t.Errorf("download call missing requirements: %s", c.Line())
		}
		for _, pkg := range config.DefaultPackages {
			if !c.Has(pkg) {
				t.Errorf("download call missing %s: %s", pkg, c.Line())
			}
		}
		if c.Has("--only-binary=:all:") {
			binary++
		} else {
			source++
		}
	}
	if binary != 2 || source != 1 {
		t.Errorf("binary=%d source=%d, want 2 and 1", binary, source)
	}

	for _, want := range []string{
		"Successfully downloaded packages to packages.",
		"pip install -r requirements.txt --find-links packages --no-index",
		"warning: tag cp39-cp39-win_amd64",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}

	for _, name := range []string{"download_errors.log", "local_requirements.txt", filepath.Join("packages", "pipfetch.lock")} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestDownloadAllTagsFailed(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, "requirements.txt"), "requests==2.31.0\n")
	writeFile(t, filepath.Join(dir, "system.tags"), "cp310-cp310-manylinux_2_17_x86_64\ncp39-cp39-win_amd64\n")

	runner := &toolchaintest.Runner{Handler: pipHandler("cp3")}

	stdout, _, err := execute(t, fakeDeps(runner, pipOnPath), "-r", "requirements.txt", "-d", "packages")
	if err != nil {
		t.Fatalf("per-tag failures should not fail the command: %v", err)
	}
	if ExitCode(err) != 0 {
		t.Errorf("ExitCode = %d, want 0", ExitCode(err))
	}
	if strings.Contains(stdout, "Successfully downloaded") {
		t.Errorf("summary should not claim success:\n%s", stdout)
	}
	for _, want := range []string{"completed with warnings", "0 binary, 0 source, 2 failed"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestDownloadSetupErrors(t *testing.T) {
	tests := map[string]struct {
		files    map[string]string
		args     []string
		wantKind error
		wantMsg  string
	}{
		"missing flags": {
			args:    []string{"-r", "requirements.txt"},
			wantMsg: "-r and -d options are required",
		},
		"missing requirements": {
			files:    map[string]string{"system.tags": "py3-none-any\n"},
			args:     []string{"-r", "requirements.txt", "-d", "packages"},
			wantKind: errdefs.ErrFileFormat,
		},
		"missing tags file": {
			files:    map[string]string{"requirements.txt": "requests\n"},
			args:     []string{"-r", "requirements.txt", "-d", "packages"},
			wantKind: errdefs.ErrFileFormat,
			wantMsg:  "run with -i first",
		},
		"empty tags file": {
			files:    map[string]string{"requirements.txt": "requests\n", "other.tags": "\n"},
			args:     []string{"-r", "requirements.txt", "-d", "packages", "-t", "other.tags"},
			wantKind: errdefs.ErrFileFormat,
		},
		"stray argument": {
			args:    []string{"extra"},
			wantMsg: "unknown command",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := inTempDir(t)
			for file, contents := range tc.files {
				writeFile(t, filepath.Join(dir, file), contents)
			}
			runner := &toolchaintest.Runner{Handler: pipHandler("")}

			_, _, err := execute(t, fakeDeps(runner, pipOnPath), tc.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantKind != nil && !errdefs.IsKind(err, tc.wantKind) {
				t.Errorf("error = %v, want kind %v", err, tc.wantKind)
			}
			if tc.wantMsg != "" && !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tc.wantMsg)
			}
			for _, c := range runner.Calls() {
				if c.Has("download") {
					t.Errorf("no download should run: %s", c.Line())
				}
			}
		})
	}
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, "requirements.txt"), "requests\n")
	writeFile(t, filepath.Join(dir, "custom.tags"), "cp310-cp310-manylinux_2_17_x86_64\n")
	writeFile(t, filepath.Join(dir, "ci.toml"), `default_packages = ["wheel"]
tags_file = "custom.tags"
lock_file = ""
`)

	runner := &toolchaintest.Runner{Handler: pipHandler("")}
	if _, _, err := execute(t, fakeDeps(runner, pipOnPath), "--config", "ci.toml", "-r", "requirements.txt", "-d", "out"); err != nil {
		t.Fatalf("error: %v", err)
	}

	for _, c := range runner.Calls() {
		if c.Has("download") && (c.Has("Cython") || !c.Has("wheel")) {
			t.Errorf("default packages not taken from config: %s", c.Line())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "pipfetch.lock")); !os.IsNotExist(err) {
		t.Errorf("empty lock_file should disable the lock file, stat err = %v", err)
	}
}

func TestPipFlagForcesManager(t *testing.T) {
	inTempDir(t)
	runner := &toolchaintest.Runner{Handler: pipHandler("")}
	paths := map[string]string{"pip": "/usr/bin/pip", "pip3.11": "/opt/bin/pip3.11"}

	if _, _, err := execute(t, fakeDeps(runner, paths), "--pip", "pip3.11", "-i"); err != nil {
		t.Fatalf("error: %v", err)
	}
	for _, c := range runner.Calls() {
		if c.Name != "/opt/bin/pip3.11" {
			t.Errorf("call went to %s, want /opt/bin/pip3.11", c.Name)
		}
	}
}

func TestTagsCommand(t *testing.T) {
	dir := inTempDir(t)

	tests := map[string]struct {
		args     []string
		wantTags int
		wantArgs []string
	}{
		"filtered to host": {
			args:     []string{"tags"},
			wantTags: 2,
		},
		"all tags": {
			args:     []string{"tags", "--all"},
			wantTags: 5,
		},
		"foreign target": {
			args:     []string{"tags", "--platform", "manylinux_2_17_x86_64", "--python-version", "3.9"},
			wantTags: 1,
			wantArgs: []string{"--platform", "manylinux_2_17_x86_64", "--python-version", "3.9"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			runner := &toolchaintest.Runner{Handler: pipHandler("")}
			stdout, _, err := execute(t, fakeDeps(runner, pipOnPath), tc.args...)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			lines := strings.Fields(stdout)
			if len(lines) != tc.wantTags {
				t.Errorf("got %d tags, want %d:\n%s", len(lines), tc.wantTags, stdout)
			}
			for _, c := range runner.Calls() {
				if !c.Has("debug") {
					continue
				}
				for _, arg := range tc.wantArgs {
					if !c.Has(arg) {
						t.Errorf("debug call missing %q: %s", arg, c.Line())
					}
				}
			}
		})
	}

	t.Run("output file", func(t *testing.T) {
		runner := &toolchaintest.Runner{Handler: pipHandler("")}
		stdout, _, err := execute(t, fakeDeps(runner, pipOnPath), "tags", "-o", "host.tags")
		if err != nil {
			t.Fatalf("error: %v", err)
		}
		if !strings.Contains(stdout, "Wrote 2 tags to host.tags") {
			t.Errorf("stdout = %q", stdout)
		}
		if _, err := os.Stat(filepath.Join(dir, "host.tags")); err != nil {
			t.Error(err)
		}
	})
}

func TestInit(t *testing.T) {
	dir := inTempDir(t)
	runner := &toolchaintest.Runner{}

	stdout, _, err := execute(t, fakeDeps(runner, pipOnPath), "init")
	if err != nil {
		t.Fatalf("init error: %v", err)
	}
	if !strings.Contains(stdout, "Created pipfetch.toml") || !strings.Contains(stdout, "Added packages/ to .gitignore") {
		t.Errorf("stdout = %q", stdout)
	}

	cfg, err := config.Load(config.Overrides{ConfigFile: filepath.Join(dir, config.LocalConfigFile)})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.DefaultPackages) != 1 || cfg.DefaultPackages[0] != "wheel" || !cfg.NoBinaryFallback {
		t.Errorf("config = %+v", cfg)
	}

	if _, _, err := execute(t, fakeDeps(runner, pipOnPath), "init"); err == nil {
		t.Error("second init should fail")
	}
	if len(runner.Calls()) != 0 {
		t.Errorf("init should not run the package manager: %v", runner.Calls())
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("Cython, wheel,,setuptools  numpy")
	want := []string{"Cython", "wheel", "setuptools", "numpy"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
}

func TestExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":       {err: nil, want: 0},
		"failure":   {err: errors.New("boom"), want: 1},
		"cancelled": {err: context.Canceled, want: 130},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestHostRunnerDisablesPipVersionCheck(t *testing.T) {
	runner := hostDeps().newRunner(nil, nil)
	r, ok := runner.(*toolchain.ExecRunner)
	if !ok {
		t.Fatalf("host runner = %T, want *toolchain.ExecRunner", runner)
	}
	found := false
	for _, kv := range r.Env {
		if kv == "PIP_DISABLE_PIP_VERSION_CHECK=1" {
			found = true
		}
	}
	if !found {
		t.Errorf("Env = %v, want the pip version check disabled", r.Env)
	}
}
