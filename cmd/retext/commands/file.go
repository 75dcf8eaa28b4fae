package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/config"
	"github.com/walteh/retext/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

// fileFlags holds the flag values for the file command.
type fileFlags struct {
	output      string
	prompt      string
	model       string
	baseURL     string
	maxRetries  int
	retryDelay  string
	callTimeout string
}

// apply lays the flags the user actually set over the file config.
// The output flag names the result file, not a tree root, so it never
// touches the config.
func (f *fileFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("prompt") {
		cfg.Prompt = f.prompt
	}
	if set("model") {
		cfg.Model = f.model
	}
	if set("base-url") {
		cfg.BaseURL = f.baseURL
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
}

func bindFileFlags(cmd *cobra.Command, f *fileFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "file to write the result to, - for stdout")
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "prompt spec path or github://owner/repo/path@ref")
	cmd.Flags().StringVar(&f.model, "model", "", "model identifier, overrides RETEXT_MODEL")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "endpoint base URL, overrides RETEXT_BASE_URL")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", config.DefaultMaxRetries, "retries after a failed transform attempt")
	cmd.Flags().StringVar(&f.retryDelay, "retry-delay", "", "wait between transform attempts")
	cmd.Flags().StringVar(&f.callTimeout, "call-timeout", "", "deadline for a single transform attempt")
}

// NewFileCmd creates a new file command
func NewFileCmd(ro *opts.RootOpts) *cobra.Command {
	flags := &fileFlags{}

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Transform a single file",
		Long: `File sends one file through the transform service and prints the
result to stdout, or writes it to --output when one is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			flags.apply(cmd, ro.Config)

			result, err := operation.ProcessFile(ctx, operation.Options{
				Config: ro.Config,
			}, args[0])
			if err != nil {
				return errors.Errorf("processing file: %w", err)
			}

			if flags.output == "" || flags.output == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), result)
				return nil
			}

			if err := os.WriteFile(flags.output, []byte(result), 0644); err != nil {
				return errors.Errorf("writing result: %w", err)
			}
			ro.UserLogger.LogStateChange(fmt.Sprintf("wrote %s", flags.output))

			return nil
		},
	}

	bindFileFlags(cmd, flags)

	return cmd
}
