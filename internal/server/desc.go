package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "sas.v1.TokenSigner"

	IssueDeviceTokenMethod  = "/" + ServiceName + "/IssueDeviceToken"
	IssueServiceTokenMethod = "/" + ServiceName + "/IssueServiceToken"
	MetadataMethod          = "/" + ServiceName + "/Metadata"
)

// TokenSignerServer is the server API for the TokenSigner service. Requests
// and responses are structpb.Struct values.
type TokenSignerServer interface {
	IssueDeviceToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueServiceToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Metadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterTokenSignerServer(s grpc.ServiceRegistrar, srv TokenSignerServer) {
	s.RegisterService(&TokenSignerServiceDesc, srv)
}

var TokenSignerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenSignerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IssueDeviceToken",
			Handler:    unaryHandler(IssueDeviceTokenMethod, TokenSignerServer.IssueDeviceToken),
		},
		{
			MethodName: "IssueServiceToken",
			Handler:    unaryHandler(IssueServiceTokenMethod, TokenSignerServer.IssueServiceToken),
		},
		{
			MethodName: "Metadata",
			Handler:    unaryHandler(MetadataMethod, TokenSignerServer.Metadata),
		},
	},
	Streams: []grpc.StreamDesc{},
}

type unaryMethod func(TokenSignerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TokenSignerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TokenSignerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls a TokenSigner service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) IssueDeviceToken(ctx context.Context, deviceID string, daysValid int) (*structpb.Struct, error) {
	return c.invoke(ctx, IssueDeviceTokenMethod, map[string]any{
		"device_id":  deviceID,
		"days_valid": daysValid,
	})
}

func (c *Client) IssueServiceToken(ctx context.Context, policy string, daysValid int) (*structpb.Struct, error) {
	return c.invoke(ctx, IssueServiceTokenMethod, map[string]any{
		"policy":     policy,
		"days_valid": daysValid,
	})
}

func (c *Client) Metadata(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, MetadataMethod, nil)
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
