package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/pipfetch/pipfetch/pkg/fetch"
	"github.com/pipfetch/pipfetch/pkg/report"
	"github.com/pipfetch/pipfetch/pkg/store"
	"github.com/pipfetch/pipfetch/pkg/tags"
)

// runDownload downloads the requirements for every tag in the tags file,
// then records what landed in the destination. Per-tag failures are
// reported but do not fail the command.
func (o *rootOptions) runDownload(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if err := fetch.ValidateRequirements(o.requirements); err != nil {
		return err
	}

	tf, err := tags.ReadFile(o.tagsFile)
	if err != nil {
		return err
	}
	for _, skipped := range tf.Skipped {
		logger.Warn("skipping tags file line", "file", tf.Path, "line", skipped.Line, "text", skipped.Text, "err", skipped.Err)
	}

	env, err := o.prober(logger).Probe(ctx)
	if err != nil {
		return err
	}

	s, err := store.New(o.directory)
	if err != nil {
		return err
	}

	// pip's own output is only interesting when debugging.
	var pipOut io.Writer
	if o.verbose {
		pipOut = cmd.ErrOrStderr()
	}

	orch := &fetch.Orchestrator{
		Runner:           o.deps.newRunner(pipOut, pipOut),
		Manager:          env.ManagerPath,
		Store:            s,
		DefaultPackages:  o.cfg.DefaultPackages,
		NoBinaryFallback: o.cfg.NoBinaryFallback,
		ErrorsLog:        o.cfg.ErrorsLog,
		Logger:           logger,
		Now:              o.deps.now,
		NewRunID:         o.deps.newRunID,
	}

	p := newProgress(logger)
	rep, err := orch.Run(ctx, o.requirements, tf.Tags)
	if err != nil {
		return err
	}
	p.done("download finished", "tags", len(rep.Results), "warnings", len(rep.Warnings))

	if n, err := store.WriteLocalRequirements(o.cfg.LocalRequirements, s); err != nil {
		logger.Warn("could not write local requirements", "path", o.cfg.LocalRequirements, "err", err)
	} else {
		logger.Debug("wrote local requirements", "path", o.cfg.LocalRequirements, "wheels", n)
	}

	if o.cfg.LockFile != "" {
		if _, err := fetch.WriteLockFile(s, o.cfg.LockFile, rep, o.tagsFile, tf.Tags); err != nil {
			logger.Warn("could not write lock file", "path", s.Path(o.cfg.LockFile), "err", err)
		}
	}

	return report.WriteDownloadSummary(cmd.OutOrStdout(), o.directory, rep)
}
