package commands

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/log"
	"github.com/walteh/retext/pkg/operation"
	"github.com/walteh/retext/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// NewStatusCmd creates a new status command
func NewStatusCmd(ro *opts.RootOpts) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded run",
		Long: `Status prints the run recorded in the output folder's lock file.
It will:
1. Load the lock file from the output folder
2. Print one line per recorded file
3. Print the run summary`,
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

			run, err := op.Status(ctx)
			if err != nil {
				return errors.Errorf("checking status: %w", err)
			}

			if run == nil {
				ro.UserLogger.LogStateChange("No run recorded for this output")
				return nil
			}

			renderRun(ctx, cmd.OutOrStdout(), ro.Config.Output, run)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder holding the lock file")

	return cmd
}

// renderRun prints a recorded run in the columned console format. The
// console logger's own zerolog channel stays disabled so the lines are
// not printed twice.
func renderRun(ctx context.Context, w io.Writer, output string, run *state.RunState) {
	console := log.New(w, zerolog.Disabled)

	console.StartRun(ctx, log.RunOperation{
		Input:  run.InputRoot,
		Output: output,
		Model:  run.Model,
		Files:  len(run.Files),
	})

	for _, entry := range run.FilesSorted() {
		console.LogFileOperation(ctx, log.FileOperation{
			Path:          entry.Path,
			Kind:          entry.Kind,
			Status:        string(entry.Status),
			IsTransformed: entry.Status == state.StatusTransformed,
			IsCopied:      entry.Status == state.StatusCopied,
			IsFailed:      entry.Status == state.StatusFailed,
			Retries:       entry.Retries,
		})
	}
	console.EndRun(ctx)

	console.LogNewline()
	if run.Summary.Failed > 0 {
		console.Warningf("%d transformed, %d copied, %d failed", run.Summary.Transformed, run.Summary.Copied, run.Summary.Failed)
	} else {
		console.Successf("%d transformed, %d copied", run.Summary.Transformed, run.Summary.Copied)
	}
	console.Infof("recorded %s", run.LastUpdated.Format(time.RFC3339))
}
