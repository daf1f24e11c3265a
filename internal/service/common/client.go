//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/fwmeta/internal/api/grpc/metadata"
	"github.com/oshokin/fwmeta/internal/config"
)

// RemoteStatus is one entry of a ListRemotes response.
type RemoteStatus struct {
	Name    string `yaml:"name"`
	Public  bool   `yaml:"public"`
	Signed  bool   `yaml:"signed"`
	Dirty   bool   `yaml:"dirty"`
	Build   int    `yaml:"build"`
	Claimed bool   `yaml:"claimed"`
}

// Client talks to the metadata server and decodes its Struct responses.
type Client struct {
	conn *grpc.ClientConn
	api  api.MetadataServiceClient

	// callTimeout bounds every RPC; zero leaves the caller's deadline alone.
	callTimeout time.Duration
	// dialOptions are appended after the insecure transport credentials.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions passes extra options to grpc.NewClient, such as a custom dialer.
func WithDialOptions(options ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, options...)
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errMalformedResponse is returned when a response lacks the expected fields.
	errMalformedResponse = errors.New("malformed response")
)

// Dial prepares a connection to the metadata server. The connection is
// established lazily by the first call.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{callTimeout: config.DefaultTimeout}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial metadata server: %w", err)
	}

	client.conn = conn
	client.api = api.NewMetadataServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Regenerate asks the server to queue a build of remote, or of all remotes
// when empty, and returns the names that were newly queued.
func (c *Client) Regenerate(ctx context.Context, remote string) ([]string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Regenerate(callCtx, wrapperspb.String(remote))
	if err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}

	list := response.GetFields()["queued"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("regenerate: %w: no queued list", errMalformedResponse)
	}

	queued := make([]string, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		queued = append(queued, value.GetStringValue())
	}

	return queued, nil
}

// ListRemotes returns the build state of every remote.
func (c *Client) ListRemotes(ctx context.Context) ([]RemoteStatus, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ListRemotes(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	list := response.GetFields()["remotes"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("list remotes: %w: no remotes list", errMalformedResponse)
	}

	remotes := make([]RemoteStatus, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		remotes = append(remotes, decodeRemoteStatus(value.GetStructValue()))
	}

	return remotes, nil
}

func decodeRemoteStatus(s *structpb.Struct) RemoteStatus {
	fields := s.GetFields()

	return RemoteStatus{
		Name:    fields["name"].GetStringValue(),
		Public:  fields["public"].GetBoolValue(),
		Signed:  fields["signed"].GetBoolValue(),
		Dirty:   fields["dirty"].GetBoolValue(),
		Build:   int(fields["build"].GetNumberValue()),
		Claimed: fields["claimed"].GetBoolValue(),
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
