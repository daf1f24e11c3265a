package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/service/regen"
	"github.com/oshokin/fwmeta/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// exportOptions collects the flags of the export subcommand.
	exportOptions regen.ExportOptions
	// outputPath is where the exported document is written; empty means stdout.
	outputPath string

	// rootCmd represents the base command for building metadata once.
	rootCmd = &cobra.Command{
		Use:   "fwmeta-regen [remote...]",
		Short: "Build signed metadata for remotes and exit.",
		Long: `Builds, signs and publishes the metadata catalog of each named remote.

Remotes are built in order with the same retry policy as the server.
Without arguments every remote is built; remotes that are not dirty are skipped.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return regen.Run(ctx, &regen.Options{
				ConfigPath: configPath,
				Remotes:    args,
			})
		},
	}

	// exportCmd writes an unsigned catalog or metainfo document.
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write an unsigned catalog or metainfo document.",
		Long: `Generates a catalog without claiming a remote, signing or touching the build counter.

The catalog is gzip-compressed. With --metainfo a single component document
is written as plain XML instead.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var out io.Writer = os.Stdout

			if outputPath != "" {
				file, createErr := os.Create(filepath.Clean(outputPath))
				if createErr != nil {
					return fmt.Errorf("create output: %w", createErr)
				}

				defer func() {
					if closeErr := file.Close(); closeErr != nil && err == nil {
						err = fmt.Errorf("close output: %w", closeErr)
					}
				}()

				out = file
			}

			exportOptions.ConfigPath = configPath

			return regen.Export(ctx, &exportOptions, out)
		},
	}
)

// Execute runs the fwmeta-regen CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	exportCmd.Flags().StringVarP(&exportOptions.Remote, "remote", "r", "", "limit the catalog to one remote")
	exportCmd.Flags().BoolVarP(&exportOptions.Local, "local", "l", false, "write upload checksums for a local mirror")
	exportCmd.Flags().StringVarP(&exportOptions.Metainfo, "metainfo", "m", "", "write the metainfo of one component id")
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file, stdout when empty")
}
