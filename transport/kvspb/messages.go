// Package kvspb defines the wire messages the kvsgrpc service exchanges.
// A real deployment of this codebase would generate these from a .proto
// file with protoc-gen-gogo; absent that toolchain here, the messages are
// plain structs and jsonCodec (see codec.go) marshals them with encoding/json
// instead of the wire protobuf format. The RPC surface (service
// definition, streaming, status codes) is unchanged either way.
package kvspb

import (
	"github.com/jrife/flock/kvs/lookup"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvserr"
)

// GetRequest is the wire form of a kvs get, spec.md §4.6.
type GetRequest struct {
	Root    tree.Dirent
	HasRoot bool
	Key     string
	Flags   lookup.Flags
}

// GetResponse is the wire form of a kvs get/watch reply.
type GetResponse struct {
	Value   interface{}
	RootRef string
	Errno   kvserr.Errno
}

// WatchRequest opens a server-streaming watch, spec.md §4.6.
type WatchRequest struct {
	GetRequest
	ID string
}

// UnwatchRequest cancels a previously opened watch by ID.
type UnwatchRequest struct {
	ID string
}

// FenceRequest is one participant's contribution to a named commit,
// spec.md §4.4.
type FenceRequest struct {
	Name     string
	Expected int32
	NoMerge  bool
	Ops      []tree.Operation
}

// FenceResponse reports whether the commit the fence belonged to
// succeeded.
type FenceResponse struct {
	Errno kvserr.Errno
}

// SyncRequest asks to be notified once the root reaches RootSeq,
// spec.md §4.6.
type SyncRequest struct {
	RootSeq uint64
}

// SyncResponse reports the root once it has reached the requested seq.
type SyncResponse struct {
	RootSeq uint64
	RootDir string
}

// RootResponse is the reply to getroot and to dropcache (which returns the
// root unchanged, for the caller's convenience).
type RootResponse struct {
	RootSeq uint64
	RootDir string
}

// StatsResponse is the wire form of stats.get, flattening
// kvs/service.Stats and its embedded cache.Stats.
type StatsResponse struct {
	CacheCount      int32
	CacheDirty      int32
	CacheIncomplete int32
	CacheTotalSize  int64
	ObjSizeCount    int32
	ObjSizeMin      float64
	ObjSizeMax      float64
	ObjSizeMean     float64
	ObjSizeStddev   float64

	Watchers   int32
	Faults     uint64
	NoopStores int32
	RootSeq    uint64

	Gets      uint64
	Watches   uint64
	Fences    uint64
	Evictions uint64
}

// Empty is used for RPCs that carry no meaningful request or response
// payload (StatsClear, DropCache).
type Empty struct{}
