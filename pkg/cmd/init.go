package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/pipfetch/pipfetch/pkg/config"
	"github.com/pipfetch/pipfetch/pkg/project"
)

// initAnswers is what the init prompts collect.
type initAnswers struct {
	DefaultPackages  []string
	NoBinaryFallback bool
	Gitignore        []string
}

func newInitCmd(o *rootOptions) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize pipfetch in the current directory",
		Long:  "Creates a pipfetch.toml config file and adds the files pipfetch generates to .gitignore.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				return runInitGlobal(cmd)
			}
			return o.runInit(cmd)
		},
		// init writes the config; it must not fail on a missing or broken one.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	cmd.Flags().BoolVar(&global, "global", false, "create ~/.pipfetch/config.toml with the defaults instead")
	return cmd
}

func (o *rootOptions) runInit(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg := config.Default()
	answers, err := o.deps.prompt(cfg)
	if err != nil {
		return err
	}
	if len(answers.DefaultPackages) > 0 {
		cfg.DefaultPackages = answers.DefaultPackages
	}
	cfg.NoBinaryFallback = answers.NoBinaryFallback

	if err := project.Init(wd, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", project.ConfigFile)

	added, err := project.EnsureGitignore(wd, answers.Gitignore)
	if err != nil {
		return err
	}
	for _, entry := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to .gitignore\n", entry)
	}

	return nil
}

func runInitGlobal(cmd *cobra.Command) error {
	wrote, err := project.InitGlobal()
	if err != nil {
		return err
	}
	dir, err := config.GlobalConfigDir()
	if err != nil {
		return err
	}
	if wrote {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s/%s\n", dir, config.GlobalConfigFile)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s already exists\n", dir, config.GlobalConfigFile)
	}
	return nil
}

// promptInit uses huh to ask for the default packages, the source retry
// policy, and the generated files to gitignore.
func promptInit(defaults *config.Config) (*initAnswers, error) {
	packages := strings.Join(defaults.DefaultPackages, ", ")
	noBinary := defaults.NoBinaryFallback

	generated := project.GeneratedFiles(defaults)
	options := make([]huh.Option[string], len(generated))
	for i, entry := range generated {
		options[i] = huh.NewOption(entry, entry).Selected(true)
	}
	var ignored []string

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Packages to download alongside every requirements file").
				Description("Comma separated.").
				Value(&packages),
			huh.NewConfirm().
				Title("Force source distributions when the binary download fails?").
				Value(&noBinary),
			huh.NewMultiSelect[string]().
				Title("Add generated files to .gitignore?").
				Options(options...).
				Value(&ignored),
		),
	).Run()
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	return &initAnswers{
		DefaultPackages:  splitList(packages),
		NoBinaryFallback: noBinary,
		Gitignore:        ignored,
	}, nil
}

// splitList splits a comma or whitespace separated list, dropping blanks.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
