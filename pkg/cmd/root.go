package cmd

import (
	"context"
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pipfetch/pipfetch/pkg/config"
	"github.com/pipfetch/pipfetch/pkg/report"
	"github.com/pipfetch/pipfetch/pkg/toolchain"
)

// deps is everything the commands take from the host.
type deps struct {
	locator   toolchain.Locator
	newRunner func(stdout, stderr io.Writer) toolchain.Runner
	goos      string
	goarch    string
	now       func() time.Time
	newRunID  func() string
	prompt    func(defaults *config.Config) (*initAnswers, error)
}

// pipEnv keeps pip's stderr to the errors that matter: the self-update
// notice would otherwise become the last line of a failed download.
var pipEnv = []string{"PIP_DISABLE_PIP_VERSION_CHECK=1"}

func hostDeps() *deps {
	return &deps{
		locator: toolchain.PathLocator{},
		newRunner: func(stdout, stderr io.Writer) toolchain.Runner {
			return &toolchain.ExecRunner{Stdout: stdout, Stderr: stderr, Env: pipEnv}
		},
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		now:      time.Now,
		newRunID: uuid.NewString,
		prompt:   promptInit,
	}
}

// rootOptions holds the root flags and the state resolved before any
// command runs.
type rootOptions struct {
	info         bool
	requirements string
	directory    string
	tagsFile     string
	verbose      bool
	pip          string
	format       string
	configFile   string

	deps *deps

	// cfg is available to all subcommands after PersistentPreRunE.
	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(hostDeps())
}

func newRootCmd(d *deps) *cobra.Command {
	o := &rootOptions{deps: d}

	root := &cobra.Command{
		Use:   "pipfetch",
		Short: "Download Python packages for offline installation",
		Long: `pipfetch downloads the packages in a requirements file, and their dependencies,
for every platform listed in a tags file, so they can be installed on a machine
without network access.

Run with -i on the target machine to print its details and write system.tags,
then run with -r and -d on a connected machine to download.`,
		Example: `  pipfetch -i
  pipfetch -r requirements.txt -d ./packages
  pipfetch -r requirements.txt -d ./packages -t target.tags`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: o.setup,
		RunE:              o.run,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&o.pip, "pip", "", "package manager executable to use instead of detecting pip or pip3")
	pf.StringVar(&o.configFile, "config", "", "config file to use instead of ./"+config.LocalConfigFile)

	f := root.Flags()
	f.BoolVarP(&o.info, "info", "i", false, "print system information, write the tags file, and show an example command")
	f.StringVarP(&o.requirements, "requirements", "r", "", "path to the requirements file")
	f.StringVarP(&o.directory, "directory", "d", "", "directory to download the packages to")
	f.StringVarP(&o.tagsFile, "tags", "t", "", "path to the tags file (default from config, "+config.DefaultTagsFile+")")
	f.StringVar(&o.format, "format", string(report.FormatText), "info report format: text, yaml or json")

	root.AddCommand(newInitCmd(o))
	root.AddCommand(newTagsCmd(o))

	return root
}

// setup attaches the logger and resolves configuration.
func (o *rootOptions) setup(cmd *cobra.Command, args []string) error {
	level := log.InfoLevel
	if o.verbose {
		level = log.DebugLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), level)
	cmd.SetContext(withLogger(cmd.Context(), logger))

	var managers []string
	if o.pip != "" {
		managers = []string{o.pip}
	}
	cfg, err := config.Load(config.Overrides{Managers: managers, ConfigFile: o.configFile})
	if err != nil {
		return err
	}
	o.cfg = cfg
	logger.Debug("configuration loaded", "managers", cfg.Managers, "tags_file", cfg.TagsFile)

	if o.tagsFile == "" {
		o.tagsFile = cfg.TagsFile
	}
	return nil
}

func (o *rootOptions) run(cmd *cobra.Command, args []string) error {
	if o.info {
		format, err := report.ParseFormat(o.format)
		if err != nil {
			return err
		}
		return o.runInfo(cmd, format)
	}

	if o.requirements == "" || o.directory == "" {
		return errors.New("the -r and -d options are required unless using the -i option")
	}
	return o.runDownload(cmd)
}

// prober returns an environment prober wired to the command's host deps.
func (o *rootOptions) prober(logger *log.Logger) *toolchain.Prober {
	p := toolchain.NewProber(o.cfg.Managers, logger)
	p.Locator = o.deps.locator
	p.Runner = o.deps.newRunner(nil, nil)
	p.GOOS = o.deps.goos
	p.GOARCH = o.deps.goarch
	return p
}

// Execute runs the CLI with a context cancelled on SIGINT or SIGTERM by
// the caller.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// ExitCode maps an Execute error onto a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
