// Package kvsgrpc exposes kvs/service.Loop over gRPC: one rank's Get,
// Watch, Unwatch, Fence, Sync, GetRoot, DropCache, StatsGet and StatsClear
// operations, mirroring the request/response shapes of spec.md §4.6.
//
// This file is the service definition a protoc-gen-go-grpc run would
// otherwise produce from a .proto file (client stub, server interface,
// ServiceDesc, streaming helpers); server.go adapts it onto kvs/service.
package kvsgrpc

import (
	"context"

	"github.com/jrife/flock/transport/kvspb"
	"google.golang.org/grpc"
)

const serviceName = "flock.kvs.Kvs"

// KvsServer is the server-side interface of the Kvs service.
type KvsServer interface {
	Get(context.Context, *kvspb.GetRequest) (*kvspb.GetResponse, error)
	Watch(*kvspb.WatchRequest, Kvs_WatchServer) error
	Unwatch(context.Context, *kvspb.UnwatchRequest) (*kvspb.Empty, error)
	Fence(context.Context, *kvspb.FenceRequest) (*kvspb.FenceResponse, error)
	Sync(context.Context, *kvspb.SyncRequest) (*kvspb.SyncResponse, error)
	GetRoot(context.Context, *kvspb.Empty) (*kvspb.RootResponse, error)
	DropCache(context.Context, *kvspb.Empty) (*kvspb.RootResponse, error)
	StatsGet(context.Context, *kvspb.Empty) (*kvspb.StatsResponse, error)
	StatsClear(context.Context, *kvspb.Empty) (*kvspb.Empty, error)
}

// RegisterKvsServer registers srv with s.
func RegisterKvsServer(s *grpc.Server, srv KvsServer) {
	s.RegisterService(&kvsServiceDesc, srv)
}

// Kvs_WatchServer is the server-streaming half of Watch: one GetResponse
// per fired notification, for as long as the client stays connected or
// until an explicit Unwatch removes the registration.
type Kvs_WatchServer interface {
	Send(*kvspb.GetResponse) error
	grpc.ServerStream
}

type kvsWatchServer struct {
	grpc.ServerStream
}

func (s *kvsWatchServer) Send(m *kvspb.GetResponse) error {
	return s.ServerStream.SendMsg(m)
}

func _Kvs_Get_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).Get(ctx, req.(*kvspb.GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(kvspb.WatchRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(KvsServer).Watch(m, &kvsWatchServer{stream})
}

func _Kvs_Unwatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.UnwatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).Unwatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Unwatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).Unwatch(ctx, req.(*kvspb.UnwatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_Fence_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.FenceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).Fence(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Fence"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).Fence(ctx, req.(*kvspb.FenceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_Sync_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.SyncRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).Sync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Sync"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).Sync(ctx, req.(*kvspb.SyncRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_GetRoot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).GetRoot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetRoot"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).GetRoot(ctx, req.(*kvspb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_DropCache_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).DropCache(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/DropCache"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).DropCache(ctx, req.(*kvspb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_StatsGet_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).StatsGet(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/StatsGet"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).StatsGet(ctx, req.(*kvspb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kvs_StatsClear_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(kvspb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KvsServer).StatsClear(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/StatsClear"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KvsServer).StatsClear(ctx, req.(*kvspb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var kvsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*KvsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: _Kvs_Get_Handler},
		{MethodName: "Unwatch", Handler: _Kvs_Unwatch_Handler},
		{MethodName: "Fence", Handler: _Kvs_Fence_Handler},
		{MethodName: "Sync", Handler: _Kvs_Sync_Handler},
		{MethodName: "GetRoot", Handler: _Kvs_GetRoot_Handler},
		{MethodName: "DropCache", Handler: _Kvs_DropCache_Handler},
		{MethodName: "StatsGet", Handler: _Kvs_StatsGet_Handler},
		{MethodName: "StatsClear", Handler: _Kvs_StatsClear_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       _Kvs_Watch_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "kvs.proto",
}

// KvsClient is the client-side interface of the Kvs service.
type KvsClient interface {
	Get(ctx context.Context, in *kvspb.GetRequest, opts ...grpc.CallOption) (*kvspb.GetResponse, error)
	Watch(ctx context.Context, in *kvspb.WatchRequest, opts ...grpc.CallOption) (Kvs_WatchClient, error)
	Unwatch(ctx context.Context, in *kvspb.UnwatchRequest, opts ...grpc.CallOption) (*kvspb.Empty, error)
	Fence(ctx context.Context, in *kvspb.FenceRequest, opts ...grpc.CallOption) (*kvspb.FenceResponse, error)
	Sync(ctx context.Context, in *kvspb.SyncRequest, opts ...grpc.CallOption) (*kvspb.SyncResponse, error)
	GetRoot(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.RootResponse, error)
	DropCache(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.RootResponse, error)
	StatsGet(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.StatsResponse, error)
	StatsClear(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.Empty, error)
}

type kvsClient struct {
	cc *grpc.ClientConn
}

// NewKvsClient creates a client stub bound to cc.
func NewKvsClient(cc *grpc.ClientConn) KvsClient {
	return &kvsClient{cc}
}

func (c *kvsClient) Get(ctx context.Context, in *kvspb.GetRequest, opts ...grpc.CallOption) (*kvspb.GetResponse, error) {
	out := new(kvspb.GetResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Kvs_WatchClient is the client side of the server-streaming Watch.
type Kvs_WatchClient interface {
	Recv() (*kvspb.GetResponse, error)
	grpc.ClientStream
}

type kvsWatchClient struct {
	grpc.ClientStream
}

func (x *kvsWatchClient) Recv() (*kvspb.GetResponse, error) {
	m := new(kvspb.GetResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *kvsClient) Watch(ctx context.Context, in *kvspb.WatchRequest, opts ...grpc.CallOption) (Kvs_WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &kvsServiceDesc.Streams[0], "/"+serviceName+"/Watch", opts...)
	if err != nil {
		return nil, err
	}
	x := &kvsWatchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *kvsClient) Unwatch(ctx context.Context, in *kvspb.UnwatchRequest, opts ...grpc.CallOption) (*kvspb.Empty, error) {
	out := new(kvspb.Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Unwatch", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvsClient) Fence(ctx context.Context, in *kvspb.FenceRequest, opts ...grpc.CallOption) (*kvspb.FenceResponse, error) {
	out := new(kvspb.FenceResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Fence", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvsClient) Sync(ctx context.Context, in *kvspb.SyncRequest, opts ...grpc.CallOption) (*kvspb.SyncResponse, error) {
	out := new(kvspb.SyncResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Sync", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvsClient) GetRoot(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.RootResponse, error) {
	out := new(kvspb.RootResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetRoot", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvsClient) DropCache(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.RootResponse, error) {
	out := new(kvspb.RootResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/DropCache", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvsClient) StatsGet(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.StatsResponse, error) {
	out := new(kvspb.StatsResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/StatsGet", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvsClient) StatsClear(ctx context.Context, in *kvspb.Empty, opts ...grpc.CallOption) (*kvspb.Empty, error) {
	out := new(kvspb.Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/StatsClear", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
