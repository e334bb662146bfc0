package kvsgrpc

import (
	"context"

	"github.com/jrife/flock/kvs/service"
	"github.com/jrife/flock/kvserr"
	"github.com/jrife/flock/transport/kvspb"
)

// Server adapts one rank's kvs/service.Loop onto the Kvs gRPC service. A
// request's respond callback may fire synchronously (a cache hit) or later
// on another goroutine (a stalled lookup resolving once its content.load
// completes), so every unary method blocks on a buffered channel rather
// than assuming Loop's call returns only after respond has already run.
type Server struct {
	loop *service.Loop
}

// NewServer wraps loop for gRPC.
func NewServer(loop *service.Loop) *Server {
	return &Server{loop: loop}
}

var _ KvsServer = (*Server)(nil)

func (s *Server) Get(ctx context.Context, req *kvspb.GetRequest) (*kvspb.GetResponse, error) {
	ch := make(chan service.GetResponse, 1)

	s.loop.Get(service.GetRequest{
		Root:    req.Root,
		HasRoot: req.HasRoot,
		Key:     req.Key,
		Flags:   req.Flags,
	}, func(r service.GetResponse) { ch <- r })

	select {
	case r := <-ch:
		return &kvspb.GetResponse{Value: r.Value, RootRef: r.RootRef, Errno: r.Errno}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Watch streams GetResponse notifications until the client disconnects,
// at which point the underlying watchlist registration is purged.
func (s *Server) Watch(req *kvspb.WatchRequest, stream Kvs_WatchServer) error {
	respond := func(r service.GetResponse) {
		// Best-effort: a Send failure means the client is going away, which
		// stream.Context().Done() below will observe shortly.
		_ = stream.Send(&kvspb.GetResponse{Value: r.Value, RootRef: r.RootRef, Errno: r.Errno})
	}

	s.loop.Watch(service.WatchRequest{
		GetRequest: service.GetRequest{
			Root:    req.Root,
			HasRoot: req.HasRoot,
			Key:     req.Key,
			Flags:   req.Flags,
			Sender:  req.ID,
		},
		ID: req.ID,
	}, respond)

	<-stream.Context().Done()

	s.loop.Unwatch(service.UnwatchRequest{ID: req.ID, Sender: req.ID})

	return stream.Context().Err()
}

func (s *Server) Unwatch(ctx context.Context, req *kvspb.UnwatchRequest) (*kvspb.Empty, error) {
	s.loop.Unwatch(service.UnwatchRequest{ID: req.ID, Sender: req.ID})

	return &kvspb.Empty{}, nil
}

func (s *Server) Fence(ctx context.Context, req *kvspb.FenceRequest) (*kvspb.FenceResponse, error) {
	ch := make(chan kvserr.Errno, 1)

	s.loop.Fence(service.FenceRequest{
		Name:     req.Name,
		Expected: int(req.Expected),
		NoMerge:  req.NoMerge,
		Ops:      req.Ops,
	}, func(errno kvserr.Errno) { ch <- errno })

	select {
	case errno := <-ch:
		return &kvspb.FenceResponse{Errno: errno}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) Sync(ctx context.Context, req *kvspb.SyncRequest) (*kvspb.SyncResponse, error) {
	ch := make(chan service.SyncResponse, 1)

	s.loop.Sync(service.SyncRequest{RootSeq: req.RootSeq}, func(r service.SyncResponse) { ch <- r })

	select {
	case r := <-ch:
		return &kvspb.SyncResponse{RootSeq: r.RootSeq, RootDir: r.RootDir}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) GetRoot(ctx context.Context, _ *kvspb.Empty) (*kvspb.RootResponse, error) {
	r := s.loop.GetRoot()

	return &kvspb.RootResponse{RootSeq: r.RootSeq, RootDir: r.RootDir}, nil
}

func (s *Server) DropCache(ctx context.Context, _ *kvspb.Empty) (*kvspb.RootResponse, error) {
	s.loop.DropCache()
	r := s.loop.GetRoot()

	return &kvspb.RootResponse{RootSeq: r.RootSeq, RootDir: r.RootDir}, nil
}

func (s *Server) StatsGet(ctx context.Context, _ *kvspb.Empty) (*kvspb.StatsResponse, error) {
	stats := s.loop.StatsGet()

	return &kvspb.StatsResponse{
		CacheCount:      int32(stats.Cache.Count),
		CacheDirty:      int32(stats.Cache.Dirty),
		CacheIncomplete: int32(stats.Cache.Incomplete),
		CacheTotalSize:  int64(stats.Cache.TotalSize),
		ObjSizeCount:    int32(stats.Cache.ObjSize.Count()),
		ObjSizeMin:      stats.Cache.ObjSize.Min(),
		ObjSizeMax:      stats.Cache.ObjSize.Max(),
		ObjSizeMean:     stats.Cache.ObjSize.Mean(),
		ObjSizeStddev:   stats.Cache.ObjSize.Stddev(),
		Watchers:        int32(stats.Watchers),
		Faults:          stats.Faults,
		NoopStores:      int32(stats.NoopStores),
		RootSeq:         stats.RootSeq,
		Gets:            stats.Gets,
		Watches:         stats.Watches,
		Fences:          stats.Fences,
		Evictions:       stats.Evictions,
	}, nil
}

func (s *Server) StatsClear(ctx context.Context, _ *kvspb.Empty) (*kvspb.Empty, error) {
	s.loop.StatsClear()

	return &kvspb.Empty{}, nil
}
