package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	api "github.com/oshokin/fwmeta/internal/api/grpc/metadata"
	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/service/common"
	"github.com/oshokin/fwmeta/internal/service/tasks"
)

// Options controls the fwmeta-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// Workers is the number of concurrent builds.
	Workers int
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server, the build queue and the periodic scheduler and
// blocks until ctx is cancelled or the server stops.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger.Configure(settings.Log.Level, settings.Log.Format)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fwmeta-server")

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	repository, err := common.OpenRepository(settings)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := repository.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Closing record store failed", "error", closeErr)
		}
	}()

	builds, err := common.NewBuilder(ctx, settings, repository)
	if err != nil {
		return fmt.Errorf("initialise builder: %w", err)
	}

	queue := tasks.NewQueue(builds, tasks.QueueOptions{
		Workers:      opts.Workers,
		RemotePolicy: policyFromConfig(settings.Tasks, tasks.RegenerateRemotePolicy),
		AllPolicy:    policyFromConfig(settings.Tasks, tasks.RegenerateAllPolicy),
	})
	scheduler := &tasks.Scheduler{Queue: queue, Interval: settings.ScheduleInterval}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	api.RegisterMetadataServiceServer(grpcServer, api.NewServer(newService(repository, queue)))

	var background sync.WaitGroup

	background.Go(func() { queue.Run(ctx) })
	background.Go(func() { scheduler.Run(ctx) })

	// Catch up on anything left dirty while the server was down.
	queue.Enqueue(tasks.AllRemotes)

	logger.InfoKV(ctx, "Metadata server listening",
		"listen_address", listenAddress,
		"database", settings.Database,
		"download_dir", settings.DownloadDir,
	)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	background.Wait()
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// policyFromConfig returns the configured retry policy, or fallback when the
// tasks section is left empty.
func policyFromConfig(cfg config.Tasks, fallback tasks.Policy) tasks.Policy {
	if cfg == (config.Tasks{}) {
		return fallback
	}

	return tasks.Policy{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		TimeLimit:  cfg.TimeLimit,
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Port-only address binds on all interfaces.
	return ":" + port, nil
}
