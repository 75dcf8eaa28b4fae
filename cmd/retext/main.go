package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/retext/cmd/retext/commands"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/status"
)

func main() {
	// Interrupts cancel the context so in-flight work drains instead
	// of being killed mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)

	// Create user logger
	userLogger := status.NewUserLogger(ctx)

	ro := &opts.RootOpts{UserLogger: userLogger}

	// Create root command
	rootCmd := &cobra.Command{
		Use:   "retext",
		Short: "Mirror a folder through a text transform service",
		Long: `retext mirrors an input folder into an output folder, sending the files
that match the transform patterns through a text model and copying
everything else verbatim.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Config has to load after cobra parses the flags, so it
		// happens here rather than in main.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			return loadRootConfig(cmd.Context(), ro)
		},
	}

	// Add shared flags
	addRootFlags(rootCmd)

	runCmd := commands.NewRunCmd(ro)

	// A bare invocation behaves like run with the config file alone.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(runCmd, args)
	}

	// Add commands
	rootCmd.AddCommand(
		runCmd,
		commands.NewFileCmd(ro),
		commands.NewStatusCmd(ro),
		commands.NewCleanCmd(ro),
		commands.NewModelsCmd(ro),
		newVersionCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		userLogger.LogValidation(false, "Command failed", err)
		os.Exit(1)
	}
}
