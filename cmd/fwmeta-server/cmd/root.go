package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/service/server"
	"github.com/oshokin/fwmeta/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// workers is the number of builds allowed to run at once.
	workers int

	// rootCmd represents the base command for running the metadata server.
	rootCmd = &cobra.Command{
		Use:   "fwmeta-server [listen-address]",
		Short: "Serve the metadata API and rebuild dirty remotes.",
		Long: `Starts the gRPC metadata server that queues and runs metadata builds.

Every remote is queued once at startup and again on each schedule interval.
Builds of remotes that are not dirty are skipped cheaply.
Only the port from ServerAddress config is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50051).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Workers:       workers,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the fwmeta-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 1, "number of concurrent builds")
}
