package ctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/service/common"
)

// Options configures the client connection.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
}

// Regenerate asks the server to queue builds of remotes, or of every remote when none are given.
func Regenerate(ctx context.Context, opts *Options, remotes []string, out io.Writer) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		if len(remotes) == 0 {
			remotes = []string{""}
		}

		for _, remote := range remotes {
			queued, err := client.Regenerate(ctx, remote)
			if err != nil {
				return err
			}

			if err := writeResponse(out, map[string][]string{"queued": queued}); err != nil {
				return err
			}
		}

		return nil
	})
}

// ListRemotes prints the build state of every remote.
func ListRemotes(ctx context.Context, opts *Options, out io.Writer) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		remotes, err := client.ListRemotes(ctx)
		if err != nil {
			return err
		}

		return writeResponse(out, map[string][]common.RemoteStatus{"remotes": remotes})
	})
}

func withClient(ctx context.Context, opts *Options, fn func(ctx context.Context, client *common.Client) error) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Responses are printed on stdout.
	logger.ConfigureTo(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fwmeta-ctl")

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Connected to metadata server", "server_address", serverAddress)

	return fn(ctx, client)
}

// writeResponse prints one YAML document per response.
func writeResponse(out io.Writer, response any) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)

	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}
