package server

import (
	"context"
	"errors"
	"fmt"

	api "github.com/oshokin/fwmeta/internal/api/grpc/metadata"
	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/logger"
	repo "github.com/oshokin/fwmeta/internal/repository/metadata"
	"github.com/oshokin/fwmeta/internal/service/tasks"
)

// remoteReader is the part of the record store the service reads.
type remoteReader interface {
	GetRemote(ctx context.Context, name string) (*firmware.Remote, error)
	ListRemotes(ctx context.Context) ([]*firmware.Remote, error)
}

// enqueuer accepts build requests.
type enqueuer interface {
	Enqueue(name string) bool
}

// service connects the transport to the record store and the build queue.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// remotes resolves remote names.
	remotes remoteReader
	// queue runs the builds.
	queue enqueuer
}

// newService creates a service backed by the provided store and queue.
func newService(remotes remoteReader, queue enqueuer) *service {
	return &service{remotes: remotes, queue: queue}
}

// Regenerate queues a build of name, or of every remote when name is empty.
func (s *service) Regenerate(ctx context.Context, name string) ([]string, error) {
	target := name

	if name == "" {
		target = tasks.AllRemotes
	} else {
		_, err := s.remotes.GetRemote(ctx, name)

		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", api.ErrUnknownRemote, name)
		case err != nil:
			return nil, fmt.Errorf("get remote: %w", err)
		}
	}

	if !s.queue.Enqueue(target) {
		logger.DebugKV(ctx, "Build already pending", "remote", target)

		return []string{}, nil
	}

	logger.InfoKV(ctx, "Build queued", "remote", target)

	return []string{target}, nil
}

// ListRemotes returns every remote.
func (s *service) ListRemotes(ctx context.Context) ([]*firmware.Remote, error) {
	remotes, err := s.remotes.ListRemotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	return remotes, nil
}
