package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "turnos.v1.TurnsService"

// TurnsRPC is the server side of turnos.v1.TurnsService. Requests and
// responses are google.protobuf.Struct documents.
type TurnsRPC interface {
	BookTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ConfirmTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type rpcMethod func(srv TurnsRPC, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

var TurnsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TurnsRPC)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BookTurn", Handler: unaryHandler("BookTurn", TurnsRPC.BookTurn)},
		{MethodName: "GetTurn", Handler: unaryHandler("GetTurn", TurnsRPC.GetTurn)},
		{MethodName: "ConfirmTurn", Handler: unaryHandler("ConfirmTurn", TurnsRPC.ConfirmTurn)},
		{MethodName: "CancelTurn", Handler: unaryHandler("CancelTurn", TurnsRPC.CancelTurn)},
		{MethodName: "AvailableSlots", Handler: unaryHandler("AvailableSlots", TurnsRPC.AvailableSlots)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "turnos/v1/turns.proto",
}

func RegisterTurnsServer(s grpc.ServiceRegistrar, srv TurnsRPC) {
	s.RegisterService(&TurnsServiceDesc, srv)
}

// methodHandler matches grpc.MethodDesc.Handler, whose named type is unexported.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(name string, call rpcMethod) methodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TurnsRPC), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TurnsRPC), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TurnsClient calls turnos.v1.TurnsService over a client connection.
type TurnsClient struct {
	cc grpc.ClientConnInterface
}

func NewTurnsClient(cc grpc.ClientConnInterface) *TurnsClient {
	return &TurnsClient{cc: cc}
}

func (c *TurnsClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
