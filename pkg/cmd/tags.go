package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipfetch/pipfetch/pkg/tags"
)

func newTagsCmd(o *rootOptions) *cobra.Command {
	var (
		target tags.Target
		all    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List compatibility tags for this or another machine",
		Long: `Lists the compatibility tags the package manager accepts, filtered to the
interpreter version and machine unless --all is given.

The target options are passed through to "pip debug", so a tags file for a
machine that cannot run pipfetch can be produced here.`,
		Example: `  pipfetch tags
  pipfetch tags --platform manylinux2014_aarch64 --python-version 3.11 -o arm.tags`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			env, err := o.prober(logger).Probe(ctx)
			if err != nil {
				return err
			}

			enum := &tags.Enumerator{Runner: o.deps.newRunner(nil, nil), Logger: logger}
			ts, err := enum.Enumerate(ctx, env, tags.Options{Target: target, Filter: !all})
			if err != nil {
				return err
			}

			if output == "" {
				return tags.Write(cmd.OutOrStdout(), ts)
			}
			if err := tags.WriteFile(output, ts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tags to %s\n", len(ts), output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&target.Platform, "platform", "", "platform tag of the target machine, e.g. manylinux2014_x86_64")
	f.StringVar(&target.PythonVersion, "python-version", "", "interpreter version of the target machine, e.g. 3.11")
	f.StringVar(&target.Implementation, "implementation", "", "interpreter implementation, e.g. cp")
	f.StringVar(&target.ABI, "abi", "", "ABI tag of the target interpreter, e.g. cp311")
	f.BoolVar(&all, "all", false, "list every compatible tag without filtering")
	f.StringVarP(&output, "output", "o", "", "write the tags to this file instead of stdout")

	return cmd
}
