package service

import (
	"github.com/jrife/flock/kvs/lookup"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvserr"
)

// GetRequest is the decoded form of spec.md §4.6's get request.
type GetRequest struct {
	// Root optionally overrides the root dirent to resolve Key against;
	// the zero value resolves against the rank's current root.
	Root    tree.Dirent
	HasRoot bool
	Key     string
	Flags   lookup.Flags
	Sender  interface{}
}

// GetResponse is the reply to a get (or the first response to a watch).
type GetResponse struct {
	Value   interface{}
	RootRef string
	Errno   kvserr.Errno
}

// WatchRequest is the decoded form of a watch request: a GetRequest plus
// the caller's previously observed value, if any.
type WatchRequest struct {
	GetRequest
	ID      string
	PrevSet bool
	Prev    interface{}
}

// UnwatchRequest purges watchlist and cache entries matching ID and Sender.
type UnwatchRequest struct {
	ID     string
	Sender interface{}
}

// FenceRequest is one participant's contribution to a named commit.
type FenceRequest struct {
	Name     string
	Expected int
	NoMerge  bool
	Ops      []tree.Operation
	Sender   interface{}
}

// SyncRequest asks to be notified once the root reaches RootSeq.
type SyncRequest struct {
	RootSeq uint64
	ID      string
	Sender  interface{}
}

// SyncResponse reports the root once it has reached the requested seq.
type SyncResponse struct {
	RootSeq uint64
	RootDir string
}

// GetRootResponse is the reply to getroot.
type GetRootResponse struct {
	RootSeq uint64
	RootDir string
}

// DisconnectRequest purges every waiter (watchlist and cache) originating
// from Sender.
type DisconnectRequest struct {
	Sender interface{}
}
