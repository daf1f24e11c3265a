//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	api "github.com/oshokin/fwmeta/internal/api/grpc/metadata"
	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_CloseNil ensures closing an unset client is harmless.
func TestClient_CloseNil(t *testing.T) {
	t.Parallel()

	var c *Client
	require.NoError(t, c.Close())
}

type stubService struct{}

func (stubService) Regenerate(_ context.Context, name string) ([]string, error) {
	if name == "missing" {
		return nil, api.ErrUnknownRemote
	}

	return []string{name}, nil
}

func (stubService) ListRemotes(context.Context) ([]*firmware.Remote, error) {
	return []*firmware.Remote{
		{Name: firmware.RemoteStable, IsPublic: true, IsSigned: true, BuildCounter: 12},
		{Name: firmware.RemoteTesting, IsPublic: true, IsDirty: true},
	}, nil
}

// dialBufconn serves stubService in memory and returns a client connected to it.
func dialBufconn(t *testing.T) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	api.RegisterMetadataServiceServer(server, api.NewServer(stubService{}))

	go func() { _ = server.Serve(listener) }()

	t.Cleanup(server.Stop)

	client, err := Dial(context.Background(), "passthrough:///bufnet",
		WithCallTimeout(3*time.Second),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		})),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// TestClient_DecodesResponses checks the Struct responses are turned into typed values.
func TestClient_DecodesResponses(t *testing.T) {
	t.Parallel()

	client := dialBufconn(t)
	ctx := context.Background()

	queued, err := client.Regenerate(ctx, firmware.RemoteStable)
	require.NoError(t, err)
	require.Equal(t, []string{firmware.RemoteStable}, queued)

	_, err = client.Regenerate(ctx, "missing")
	require.Equal(t, codes.NotFound, status.Code(err))

	remotes, err := client.ListRemotes(ctx)
	require.NoError(t, err)
	require.Equal(t, []RemoteStatus{
		{Name: firmware.RemoteStable, Public: true, Signed: true, Build: 12},
		{Name: firmware.RemoteTesting, Public: true, Dirty: true},
	}, remotes)
}
