package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipfetch/pipfetch/pkg/report"
	"github.com/pipfetch/pipfetch/pkg/tags"
)

// runInfo prints the host summary, then enumerates the host's filtered
// compatibility tags and writes them to the tags file.
func (o *rootOptions) runInfo(cmd *cobra.Command, format report.Format) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	out := cmd.OutOrStdout()

	env, err := o.prober(logger).Probe(ctx)
	if err != nil {
		return err
	}

	if err := report.WriteInfo(out, report.NewInfo(env), format); err != nil {
		return err
	}

	// Progress lines would corrupt structured output, so they go to the log.
	notify := func(msg string, args ...any) {
		fmt.Fprintf(out, msg+"\n", args...)
	}
	if format != report.FormatText {
		notify = func(msg string, args ...any) {
			logger.Info(fmt.Sprintf(msg, args...))
		}
	}

	enum := &tags.Enumerator{Runner: o.deps.newRunner(nil, nil), Logger: logger}
	ts, err := enum.Enumerate(ctx, env, tags.Options{Filter: true})
	if err != nil {
		return err
	}
	if len(ts) == 0 {
		logger.Warn("no tags matched this interpreter and machine", "python", env.PythonVersion(), "machine", env.Host.Machine)
	}

	notify("Number of filtered tags found: %d", len(ts))
	notify("Attempting to write system tags to file %s...", o.tagsFile)
	if err := tags.WriteFile(o.tagsFile, ts); err != nil {
		return err
	}
	notify("Writing to file completed.")

	return nil
}
