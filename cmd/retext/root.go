package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/config"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile string
	debug      bool
)

// defaultConfigFiles are probed in order when --config is not set.
var defaultConfigFiles = []string{".retext", ".retext.yaml", ".retext.hcl"}

// loadRootConfig fills ro.Config once cobra has parsed the flags. A
// run is fully specifiable by flags alone, so a missing config file is
// only an error when --config named one.
func loadRootConfig(ctx context.Context, ro *opts.RootOpts) error {
	if configFile != "" {
		cfg, err := config.Load(ctx, configFile)
		if err != nil {
			return errors.Errorf("loading config: %w", err)
		}
		ro.Config = cfg
		return nil
	}

	for _, path := range defaultConfigFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.Load(ctx, path)
		if err != nil {
			return errors.Errorf("loading config: %w", err)
		}
		ro.Config = cfg
		return nil
	}

	ro.Config = &config.Config{}
	return nil
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: .retext, .retext.yaml, .retext.hcl)")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}
