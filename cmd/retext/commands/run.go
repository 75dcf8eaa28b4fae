package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/config"
	"github.com/walteh/retext/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	input       string
	output      string
	prompt      string
	model       string
	baseURL     string
	workers     int
	rateLimit   string
	maxRetries  int
	retryDelay  string
	callTimeout string
	transform   []string
	ignore      []string
	failFast    bool
}

// apply lays the flags the user actually set over the file config, so
// a config file and flags can be mixed freely.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("input") {
		cfg.Input = f.input
	}
	if set("output") {
		cfg.Output = f.output
	}
	if set("prompt") {
		cfg.Prompt = f.prompt
	}
	if set("model") {
		cfg.Model = f.model
	}
	if set("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if set("workers") {
		cfg.Workers = f.workers
	}
	if set("rate-limit") {
		cfg.RateLimit = f.rateLimit
	}
	if set("max-retries") {
		retries := f.maxRetries
		cfg.MaxRetries = &retries
	}
	if set("retry-delay") {
		cfg.RetryDelay = f.retryDelay
	}
	if set("call-timeout") {
		cfg.CallTimeout = f.callTimeout
	}
	if set("transform") {
		cfg.Transform = f.transform
	}
	if set("ignore") {
		cfg.Ignore = f.ignore
	}
	if set("fail-fast") {
		cfg.FailFast = f.failFast
	}
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "input folder to mirror")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output folder for the mirrored tree")
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "prompt spec path or github://owner/repo/path@ref")
	cmd.Flags().StringVar(&f.model, "model", "", "model identifier, overrides RETEXT_MODEL")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "endpoint base URL, overrides RETEXT_BASE_URL")
	cmd.Flags().IntVar(&f.workers, "workers", config.DefaultWorkers, "maximum concurrent transforms")
	cmd.Flags().StringVar(&f.rateLimit, "rate-limit", "", "minimum interval between transform calls, 0s disables")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", config.DefaultMaxRetries, "retries after a failed transform attempt")
	cmd.Flags().StringVar(&f.retryDelay, "retry-delay", "", "wait between transform attempts")
	cmd.Flags().StringVar(&f.callTimeout, "call-timeout", "", "deadline for a single transform attempt")
	cmd.Flags().StringSliceVar(&f.transform, "transform", nil, "glob patterns of files to transform")
	cmd.Flags().StringSliceVar(&f.ignore, "ignore", nil, "glob patterns to skip entirely")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "abort the run on the first fatal transform error")
}

// NewRunCmd creates a new run command
func NewRunCmd(ro *opts.RootOpts) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror the input folder through the transform service",
		Long: `Run mirrors the input folder into the output folder.
It will:
1. Scan the input tree and classify every file
2. Recreate the directory skeleton under the output
3. Transform matching files and copy the rest, with bounded concurrency
4. Write a lock file recording what happened to each file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			flags.apply(cmd, ro.Config)

			report, err := operation.ProcessFolder(ctx, operation.Options{
				Config:     ro.Config,
				UserLogger: ro.UserLogger,
			})
			if err != nil {
				return errors.Errorf("processing folder: %w", err)
			}

			if report.Failed() {
				return errors.Errorf("%d of %d files failed", report.FailedCount, report.Total())
			}

			return nil
		},
	}

	bindRunFlags(cmd, flags)

	return cmd
}
