package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

// NewCleanCmd creates a new clean command
func NewCleanCmd(ro *opts.RootOpts) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the files the last run generated",
		Long: `Clean removes everything the last run wrote into the output folder.
It will:
1. Load the lock file from the output folder
2. Remove every generated file it records
3. Remove the lock file itself`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if cmd.Flags().Changed("output") {
				ro.Config.Output = output
			}

			op, err := operation.New(operation.Options{
				Config:     ro.Config,
				UserLogger: ro.UserLogger,
			})
			if err != nil {
				return errors.Errorf("creating operator: %w", err)
			}

			if _, err := op.Clean(ctx); err != nil {
				return errors.Errorf("cleaning output: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder holding the lock file")

	return cmd
}
