package metadata

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/logger"
)

// ErrUnknownRemote is returned by a Service for a remote that does not exist.
var ErrUnknownRemote = errors.New("unknown remote")

// Service abstracts the operations the transport layer depends on.
type Service interface {
	// Regenerate queues builds and returns the names that were newly queued.
	Regenerate(ctx context.Context, name string) ([]string, error)
	ListRemotes(ctx context.Context) ([]*firmware.Remote, error)
}

// Server implements MetadataServiceServer.
type Server struct {
	service Service
	now     func() time.Time
}

// NewServer wires the provided service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{service: service, now: time.Now}
}

// Regenerate queues a build. An empty name queues every remote.
func (s *Server) Regenerate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	queued, err := s.service.Regenerate(ctx, req.GetValue())

	switch {
	case errors.Is(err, ErrUnknownRemote):
		return nil, status.Errorf(codes.NotFound, "remote %q not found", req.GetValue())
	case err != nil:
		logger.ErrorKV(ctx, "Queueing build failed", "remote", req.GetValue(), "error", err)

		return nil, status.Error(codes.Internal, "unable to queue build")
	}

	names := make([]any, 0, len(queued))
	for _, name := range queued {
		names = append(names, name)
	}

	response, err := structpb.NewStruct(map[string]any{"queued": names})
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode response")
	}

	return response, nil
}

// ListRemotes reports every remote with its build state.
func (s *Server) ListRemotes(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	remotes, err := s.service.ListRemotes(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Listing remotes failed", "error", err)

		return nil, status.Error(codes.Internal, "unable to list remotes")
	}

	now := s.now()
	items := make([]any, 0, len(remotes))

	for _, remote := range remotes {
		items = append(items, map[string]any{
			"name":    remote.Name,
			"public":  remote.IsPublic,
			"signed":  remote.IsSigned,
			"dirty":   remote.IsDirty,
			"build":   remote.BuildCounter,
			"claimed": remote.IsClaimed(now),
		})
	}

	response, err := structpb.NewStruct(map[string]any{"remotes": items})
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode response")
	}

	return response, nil
}
