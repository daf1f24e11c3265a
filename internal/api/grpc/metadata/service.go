package metadata

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fwmeta.v1.MetadataService"

const (
	regenerateMethod  = "/" + ServiceName + "/Regenerate"
	listRemotesMethod = "/" + ServiceName + "/ListRemotes"
)

// MetadataServiceServer is the server API of the metadata service.
type MetadataServiceServer interface {
	// Regenerate queues a build of the named remote, or of every remote for an empty name.
	Regenerate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	// ListRemotes reports the build state of every remote.
	ListRemotes(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// MetadataServiceClient is the client API of the metadata service.
type MetadataServiceClient interface {
	Regenerate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListRemotes(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type metadataServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMetadataServiceClient returns a client bound to cc.
func NewMetadataServiceClient(cc grpc.ClientConnInterface) MetadataServiceClient {
	return &metadataServiceClient{cc: cc}
}

func (c *metadataServiceClient) Regenerate(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, regenerateMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *metadataServiceClient) ListRemotes(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listRemotesMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// RegisterMetadataServiceServer registers srv on s.
func RegisterMetadataServiceServer(s grpc.ServiceRegistrar, srv MetadataServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func regenerateHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(MetadataServiceServer).Regenerate(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: regenerateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MetadataServiceServer).Regenerate(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func listRemotesHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(MetadataServiceServer).ListRemotes(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listRemotesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MetadataServiceServer).ListRemotes(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes fwmeta.v1.MetadataService.
//
//nolint:gochecknoglobals // Registered once with the gRPC server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MetadataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Regenerate", Handler: regenerateHandler},
		{MethodName: "ListRemotes", Handler: listRemotesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fwmeta/v1/metadata.proto",
}
