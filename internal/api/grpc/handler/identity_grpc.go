package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// IdentityServiceName is the fully qualified name of the identity service.
	IdentityServiceName = "schoolms.identity.v1.IdentityService"
	// VerifyAccessTokenMethod is the full method name of VerifyAccessToken.
	VerifyAccessTokenMethod = "/" + IdentityServiceName + "/VerifyAccessToken"
)

// IdentityServer is the server API for the identity service.
type IdentityServer interface {
	VerifyAccessToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// IdentityServiceDesc describes the identity service. Messages are
// google.protobuf.Struct so sibling services need no generated stubs.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "VerifyAccessToken",
			Handler:    verifyAccessTokenHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "schoolms/identity/v1/identity.proto",
}

// RegisterIdentityServer registers srv on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func verifyAccessTokenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).VerifyAccessToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: VerifyAccessTokenMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityServer).VerifyAccessToken(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// IdentityClient is the client API for the identity service.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

// NewIdentityClient creates a client over cc.
func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

// VerifyAccessToken asks the identity service to authenticate an access token.
func (c *IdentityClient) VerifyAccessToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, VerifyAccessTokenMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
