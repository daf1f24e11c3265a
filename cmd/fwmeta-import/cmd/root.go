package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/service/importer"
	"github.com/oshokin/fwmeta/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// checkDFU enables payload validation of DFU firmware.
	checkDFU bool

	// rootCmd represents the base command for importing records.
	rootCmd = &cobra.Command{
		Use:   "fwmeta-import <seed.yaml>",
		Short: "Import remotes, vendors and firmware into the record store.",
		Long: `Reads a YAML seed document and upserts its remotes, vendors and firmware.

Every imported firmware marks its remote dirty so the next build picks it up.
With --check-dfu, firmware declaring the DFU protocol is rejected unless its
payload carries a valid DFU suffix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return importer.Run(ctx, &importer.Options{
				ConfigPath: configPath,
				SeedPath:   args[0],
				CheckDFU:   checkDFU,
			})
		},
	}
)

// Execute runs the fwmeta-import CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVar(&checkDFU, "check-dfu", false, "reject DFU firmware with an invalid suffix")
}
