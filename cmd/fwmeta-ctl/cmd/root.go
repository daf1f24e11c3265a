package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/service/ctl"
	"github.com/oshokin/fwmeta/internal/version"
)

var (
	// options shared by every subcommand.
	options ctl.Options

	// rootCmd represents the base command for talking to the metadata server.
	rootCmd = &cobra.Command{
		Use:   "fwmeta-ctl",
		Short: "Control a running fwmeta-server.",
		Long: `Queues metadata builds and inspects remotes on a running fwmeta-server.

Server address is loaded from configuration file unless --server is given.`,
	}

	// regenerateCmd queues builds.
	regenerateCmd = &cobra.Command{
		Use:   "regenerate [remote...]",
		Short: "Queue metadata builds.",
		Long: `Queues a build of each named remote, or of every remote when none is given.

A remote that is already queued is not queued twice.`,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return ctl.Regenerate(ctx, &options, args, os.Stdout)
		},
	}

	// listCmd prints remote states.
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List remotes with their build state.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return ctl.ListRemotes(ctx, &options, os.Stdout)
		},
	}
)

// Execute runs the fwmeta-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(regenerateCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&options.ServerAddress, "server", "s", "", "server address override")
}
