package cppbv1

import (
	"context"

	"google.golang.org/grpc"
)

// Hand-maintained service surface. The descriptor mirrors what protoc
// would emit for the four operations; the messages travel through the
// cpjson codec.

const ServiceName = "cppbv1.ControlPlaneService"

type ControlPlaneServiceServer interface {
	EventStream(ControlPlaneService_EventStreamServer) error
	EventStreamUniDirect(*Event, ControlPlaneService_EventStreamUniDirectServer) error
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Shutdown(context.Context, *ShutdownRequest) (*ShutdownResponse, error)
}

type ControlPlaneService_EventStreamServer interface {
	Send(*Event) error
	Recv() (*Event, error)
	grpc.ServerStream
}

type eventStreamServer struct {
	grpc.ServerStream
}

func (x *eventStreamServer) Send(e *Event) error {
	return x.ServerStream.SendMsg(e)
}

func (x *eventStreamServer) Recv() (*Event, error) {
	e := new(Event)
	if err := x.ServerStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

type ControlPlaneService_EventStreamUniDirectServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type eventStreamUniDirectServer struct {
	grpc.ServerStream
}

func (x *eventStreamUniDirectServer) Send(e *Event) error {
	return x.ServerStream.SendMsg(e)
}

func _ControlPlaneService_EventStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ControlPlaneServiceServer).EventStream(&eventStreamServer{stream})
}

func _ControlPlaneService_EventStreamUniDirect_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(Event)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlPlaneServiceServer).EventStreamUniDirect(in, &eventStreamUniDirectServer{stream})
}

func _ControlPlaneService_Ping_Handler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Ping"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ControlPlaneService_Shutdown_Handler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(ShutdownRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Shutdown"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).Shutdown(ctx, req.(*ShutdownRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ControlPlaneService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlPlaneServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    _ControlPlaneService_Ping_Handler,
		},
		{
			MethodName: "Shutdown",
			Handler:    _ControlPlaneService_Shutdown_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "EventStream",
			Handler:       _ControlPlaneService_EventStream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "EventStreamUniDirect",
			Handler:       _ControlPlaneService_EventStreamUniDirect_Handler,
			ServerStreams: true,
		},
	},
}

func RegisterControlPlaneServiceServer(s grpc.ServiceRegistrar, srv ControlPlaneServiceServer) {
	s.RegisterService(&ControlPlaneService_ServiceDesc, srv)
}

type ControlPlaneServiceClient interface {
	EventStream(ctx context.Context, opts ...grpc.CallOption) (ControlPlaneService_EventStreamClient, error)
	EventStreamUniDirect(ctx context.Context, in *Event, opts ...grpc.CallOption) (ControlPlaneService_EventStreamUniDirectClient, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error)
}

type controlPlaneServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewControlPlaneServiceClient(cc grpc.ClientConnInterface) ControlPlaneServiceClient {
	return &controlPlaneServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

type ControlPlaneService_EventStreamClient interface {
	Send(*Event) error
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventStreamClient struct {
	grpc.ClientStream
}

func (x *eventStreamClient) Send(e *Event) error {
	return x.ClientStream.SendMsg(e)
}

func (x *eventStreamClient) Recv() (*Event, error) {
	e := new(Event)
	if err := x.ClientStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *controlPlaneServiceClient) EventStream(ctx context.Context, opts ...grpc.CallOption) (ControlPlaneService_EventStreamClient, error) {
	stream, err := c.cc.NewStream(
		ctx,
		&ControlPlaneService_ServiceDesc.Streams[0],
		"/"+ServiceName+"/EventStream",
		withCodec(opts)...,
	)
	if err != nil {
		return nil, err
	}
	return &eventStreamClient{stream}, nil
}

type ControlPlaneService_EventStreamUniDirectClient interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventStreamUniDirectClient struct {
	grpc.ClientStream
}

func (x *eventStreamUniDirectClient) Recv() (*Event, error) {
	e := new(Event)
	if err := x.ClientStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *controlPlaneServiceClient) EventStreamUniDirect(ctx context.Context, in *Event, opts ...grpc.CallOption) (ControlPlaneService_EventStreamUniDirectClient, error) {
	stream, err := c.cc.NewStream(
		ctx,
		&ControlPlaneService_ServiceDesc.Streams[1],
		"/"+ServiceName+"/EventStreamUniDirect",
		withCodec(opts)...,
	)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &eventStreamUniDirectClient{stream}, nil
}

func (c *controlPlaneServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/Ping", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlPlaneServiceClient) Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error) {
	out := new(ShutdownResponse)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/Shutdown", in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
