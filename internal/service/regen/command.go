package regen

import (
	"context"
	"fmt"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/service/builder"
	"github.com/oshokin/fwmeta/internal/service/common"
	"github.com/oshokin/fwmeta/internal/service/tasks"
)

// Options controls a foreground build.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Remotes are built in order; empty builds every remote.
	Remotes []string
}

// Run builds the requested remotes with the retry policy of background tasks.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger.Configure(settings.Log.Level, settings.Log.Format)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fwmeta-regen")

	repository, err := common.OpenRepository(settings)
	if err != nil {
		return err
	}

	defer func() {
		_ = repository.Close()
	}()

	builds, err := common.NewBuilder(ctx, settings, repository)
	if err != nil {
		return fmt.Errorf("initialise builder: %w", err)
	}

	if len(opts.Remotes) == 0 {
		return tasks.Run(ctx, "regenerate-all", tasks.RegenerateAllPolicy, func(ctx context.Context) error {
			results, err := builds.RegenerateAll(ctx)
			for _, result := range results {
				report(ctx, result)
			}

			return err
		})
	}

	for _, name := range opts.Remotes {
		err := tasks.Run(ctx, "regenerate-remote", tasks.RegenerateRemotePolicy, func(ctx context.Context) error {
			result, err := builds.RegenerateRemote(ctx, name)
			if err != nil {
				return err
			}

			report(ctx, result)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func report(ctx context.Context, result *builder.Result) {
	if result.Outcome == builder.Built {
		logger.InfoKV(ctx, "Remote rebuilt", "remote", result.Remote, "build", result.BuildCounter, "files", result.Files)

		return
	}

	logger.InfoKV(ctx, "Remote skipped", "remote", result.Remote, "reason", result.SkipReason)
}
