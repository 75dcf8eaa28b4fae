package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/llm"
	"gitlab.com/tozd/go/errors"
)

// NewModelsCmd creates a new models command
func NewModelsCmd(ro *opts.RootOpts) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the endpoint advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			apiKey := os.Getenv(llm.EnvAPIKey)
			if apiKey == "" {
				return errors.Errorf("%s is not set", llm.EnvAPIKey)
			}

			// Flag wins over config file, config file over environment.
			endpoint := baseURL
			if endpoint == "" {
				endpoint = ro.Config.BaseURL
			}
			if endpoint == "" {
				endpoint = os.Getenv(llm.EnvBaseURL)
			}

			var clientOpts []llm.Option
			if endpoint != "" {
				clientOpts = append(clientOpts, llm.WithBaseURL(endpoint))
			}

			models, err := llm.ListModels(ctx, apiKey, clientOpts...)
			if err != nil {
				return errors.Errorf("listing models: %w", err)
			}

			for _, id := range models {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "endpoint base URL, overrides RETEXT_BASE_URL")

	return cmd
}
