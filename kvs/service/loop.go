// Package service implements the service loop of spec.md §4.6: the
// single-rank reactor that owns the epoch counter, root state, fence
// table, cache, and watchlist, and dispatches the get/watch/fence/... and
// hb/setroot/error/dropcache handlers described there.
//
// A single sync.Mutex gives it "one logical thread of control, no locking
// inside a handler" semantics: mu is held for the duration of any handler
// that doesn't cross an I/O boundary, and explicitly released and
// re-acquired around every content.load or content.store call. Every
// unexported method that performs such a release documents the
// convention: called with the lock held, always returns with it released.
package service

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/jrife/flock/content"
	"github.com/jrife/flock/kvs/cache"
	"github.com/jrife/flock/kvs/commit"
	"github.com/jrife/flock/kvs/fence"
	"github.com/jrife/flock/kvs/lookup"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvs/wait"
	"github.com/jrife/flock/kvs/watch"
	"github.com/jrife/flock/kvserr"
	"github.com/jrife/flock/utils/uuid"
)

// DefaultMaxLastuseAge is spec.md §6's max_lastuse_age constant: the
// number of heartbeats after which the watchlist is re-run and clean,
// unwaited cache entries become eligible for eviction.
const DefaultMaxLastuseAge = 5

// Config configures a new Loop.
type Config struct {
	// Store is the out-of-scope content-store collaborator.
	Store content.AsyncStore
	// IsRoot marks this rank as the one that aggregates fences into
	// commits and advances the root; non-root ranks forward fence
	// requests via RelayFence instead.
	IsRoot bool
	// RootDir/RootSeq is the initial root state.
	RootDir string
	RootSeq uint64
	// MergeCommits enables the commit-merge module option of spec.md §6.
	MergeCommits bool
	// MaxLastuseAge overrides DefaultMaxLastuseAge; zero uses the default.
	MaxLastuseAge uint64
	Logger        *zap.Logger

	// PublishSetroot/PublishError publish the two broker events of
	// spec.md §6. Both are optional; a nil publisher is a valid
	// configuration for tests that don't exercise a broker.
	PublishSetroot func(rootSeq uint64, rootDir string, inlineRoot interface{}, names []string)
	PublishError   func(names []string, errno kvserr.Errno)
	// RelayFence forwards a fence request from a non-root rank to the
	// root, per spec.md §4.6's fence handler.
	RelayFence func(req FenceRequest)
}

// Loop is a single rank's reactor: cache, fence table, watchlist, and root
// state, mutated only while mu is held.
type Loop struct {
	mu sync.Mutex

	store  content.AsyncStore
	cache  *cache.Cache
	fences *fence.Table
	watch  *watch.List
	logger *zap.Logger

	isRoot          bool
	rootDir         string
	rootSeq         uint64
	epoch           uint64
	hbSinceRunqueue uint64
	maxLastuseAge   uint64

	stats  Stats
	faults uint64

	publishSetroot func(rootSeq uint64, rootDir string, inlineRoot interface{}, names []string)
	publishError   func(names []string, errno kvserr.Errno)
	relayFence     func(req FenceRequest)

	syncWaiters []syncWaiter
}

type syncWaiter struct {
	rootSeq uint64
	sender  interface{}
	respond func(SyncResponse)
}

// fenceRequester is the Requester value fenced Fence entries carry: enough
// to respond a requester once its fence's commit finishes or errors.
type fenceRequester struct {
	respond func(errno kvserr.Errno)
}

// NewLoop creates a Loop from cfg.
func NewLoop(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxAge := cfg.MaxLastuseAge
	if maxAge == 0 {
		maxAge = DefaultMaxLastuseAge
	}

	return &Loop{
		store:          cfg.Store,
		cache:          cache.New(),
		fences:         fence.NewTable(cfg.MergeCommits),
		watch:          watch.New(),
		logger:         logger,
		isRoot:         cfg.IsRoot,
		rootDir:        cfg.RootDir,
		rootSeq:        cfg.RootSeq,
		maxLastuseAge:  maxAge,
		publishSetroot: cfg.PublishSetroot,
		publishError:   cfg.PublishError,
		relayFence:     cfg.RelayFence,
	}
}

// Get resolves req and invokes respond exactly once, synchronously if the
// lookup completes without a cache miss, or later once any missing blobs
// have loaded.
func (l *Loop) Get(req GetRequest, respond func(GetResponse)) {
	l.mu.Lock()

	l.stats.Gets++

	root := l.resolveRoot(req)
	h := lookup.New(l.cache, root, req.Key, req.Flags)

	l.runLookup(h, req.Sender, func(res lookup.Result) {
		respond(toGetResponse(res))
	})
}

// Watch behaves like Get, except that spec.md §4.6's FIRST/ONCE
// unchanged-value suppression applies, and the request is re-queued on
// the watchlist to fire again on the next root advance.
func (l *Loop) Watch(req WatchRequest, respond func(GetResponse)) {
	l.mu.Lock()

	l.stats.Watches++

	root := l.resolveRoot(req.GetRequest)
	h := lookup.New(l.cache, root, req.Key, req.Flags)

	l.runLookup(h, req.Sender, func(res lookup.Result) {
		value := lookupValue(res)
		changed := !req.PrevSet || !valuesEqual(value, req.Prev)
		force := req.Flags&lookup.First != 0

		if changed || force {
			respond(toGetResponse(res))
		}

		if req.Flags&lookup.Once != 0 {
			return
		}

		wreq := watch.Request{
			ID:      req.ID,
			Key:     req.Key,
			Flags:   req.Flags &^ lookup.First,
			PrevSet: true,
			Prev:    value,
			Sender:  req.Sender,
		}

		l.mu.Lock()
		l.registerWatch(wreq, respond)
		l.mu.Unlock()
	})
}

// registerWatch parks req on the watchlist; when it fires, its saved
// lookup is re-run and respond is invoked again if the value changed.
func (l *Loop) registerWatch(req watch.Request, respond func(GetResponse)) {
	l.watch.Register(req, func(r watch.Request) {
		l.fireWatch(r, respond)
	})
}

func (l *Loop) fireWatch(req watch.Request, respond func(GetResponse)) {
	l.mu.Lock()

	l.stats.Watches++

	root := tree.NewDirRef(l.rootDir)
	h := lookup.New(l.cache, root, req.Key, req.Flags)

	l.runLookup(h, req.Sender, func(res lookup.Result) {
		value := lookupValue(res)
		changed := !req.PrevSet || !valuesEqual(value, req.Prev)

		if changed {
			respond(toGetResponse(res))
		}

		if req.Flags&lookup.Once != 0 {
			return
		}

		next := req.Fire(value)

		l.mu.Lock()
		l.registerWatch(next, respond)
		l.mu.Unlock()
	})
}

// Unwatch purges watchlist entries matching req, per spec.md §4.6.
func (l *Loop) Unwatch(req UnwatchRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.watch.Purge(func(r watch.Request) bool {
		return r.ID == req.ID && r.Sender == req.Sender
	})
}

// Fence aggregates req into its named commit. On the root rank, a fence
// that becomes ready is drained immediately; on any other rank the
// request is forwarded via RelayFence, per spec.md §4.6.
func (l *Loop) Fence(req FenceRequest, respond func(errno kvserr.Errno)) {
	l.mu.Lock()

	l.stats.Fences++

	f := l.fences.Aggregate(req.Name, req.Expected, req.NoMerge, req.Ops, &fenceRequester{respond: respond})

	if !l.isRoot {
		l.mu.Unlock()

		if l.relayFence != nil {
			l.relayFence(req)
		}

		return
	}

	if !l.fences.ProcessFenceRequest(f) {
		l.mu.Unlock()
		return
	}

	l.drain()
}

// RelayFence is the root-only counterpart of a relayed fence: it
// aggregates without recording a requester and without responding.
func (l *Loop) RelayFence(req FenceRequest) {
	l.mu.Lock()

	f := l.fences.Aggregate(req.Name, req.Expected, req.NoMerge, req.Ops, nil)

	if !l.fences.ProcessFenceRequest(f) {
		l.mu.Unlock()
		return
	}

	l.drain()
}

// Sync responds immediately if the root has already reached req.RootSeq,
// else queues the request to be answered on a later root advance.
func (l *Loop) Sync(req SyncRequest, respond func(SyncResponse)) {
	l.mu.Lock()

	if l.rootSeq >= req.RootSeq {
		rootSeq, rootDir := l.rootSeq, l.rootDir
		l.mu.Unlock()
		respond(SyncResponse{RootSeq: rootSeq, RootDir: rootDir})
		return
	}

	l.syncWaiters = append(l.syncWaiters, syncWaiter{rootSeq: req.RootSeq, sender: req.Sender, respond: respond})
	l.mu.Unlock()
}

// GetRoot reports the current root state.
func (l *Loop) GetRoot() GetRootResponse {
	l.mu.Lock()
	defer l.mu.Unlock()

	return GetRootResponse{RootSeq: l.rootSeq, RootDir: l.rootDir}
}

// DropCache forces eviction of every unreferenced clean cache entry.
func (l *Loop) DropCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := l.cache.ExpireEntries(l.epoch, 0)
	l.stats.Evictions += uint64(dropped)
}

// Disconnect purges every watch, sync waiter, and stalled lookup wait
// originating from req.Sender, so none of them responds to a requester
// that has gone away. Commit waits and fence requesters carry no sender and
// are not purged.
func (l *Loop) Disconnect(req DisconnectRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.watch.Purge(func(r watch.Request) bool {
		return r.Sender == req.Sender
	})

	remaining := l.syncWaiters[:0]
	for _, w := range l.syncWaiters {
		if w.sender != req.Sender {
			remaining = append(remaining, w)
		}
	}
	l.syncWaiters = remaining

	l.cache.WaitDestroyMsg(func(data interface{}) bool {
		return data == req.Sender
	})
}

// StatsGet returns a snapshot of the running observability counters,
// spec.md §4.6's stats.get.
func (l *Loop) StatsGet() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Cache:      l.cache.GetStats(),
		Watchers:   l.watch.Len(),
		Faults:     l.faults,
		NoopStores: l.fences.NoopStores(),
		RootSeq:    l.rootSeq,
		Gets:       l.stats.Gets,
		Watches:    l.stats.Watches,
		Fences:     l.stats.Fences,
		Evictions:  l.stats.Evictions,
	}
}

// StatsClear resets the running counters, spec.md §4.6's stats.clear:
// faults and noop_stores, matching kvs.c's stats_clear, plus the request
// counters this Go rendition additionally tracks.
func (l *Loop) StatsClear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.faults = 0
	l.fences.ClearNoopStores()
	l.stats = Stats{}
}

// HandleHeartbeat processes an hb event: advances the epoch, periodically
// re-runs the watchlist, expires aged cache entries, and drains any
// commits that became ready while nothing else touched the reactor.
func (l *Loop) HandleHeartbeat() {
	l.mu.Lock()

	l.epoch++
	l.hbSinceRunqueue++

	runWatch := false
	if l.hbSinceRunqueue >= l.maxLastuseAge {
		l.hbSinceRunqueue = 0
		runWatch = true
	}

	dropped := l.cache.ExpireEntries(l.epoch, l.maxLastuseAge)
	l.stats.Evictions += uint64(dropped)

	l.mu.Unlock()

	if runWatch {
		l.watch.Runqueue()
	}

	l.mu.Lock()
	l.drain()
}

// HandleSetroot applies a replica's view of a root advance published by
// the root rank, responding to every requester of the fences it names.
func (l *Loop) HandleSetroot(rootSeq uint64, rootDir string, inlineRoot interface{}, hasInline bool, names []string) {
	l.mu.Lock()

	if rootSeq <= l.rootSeq {
		l.mu.Unlock()
		return
	}

	l.rootDir = rootDir
	l.rootSeq = rootSeq

	if hasInline {
		if _, exists := l.cache.Peek(rootDir); !exists {
			l.cache.Insert(rootDir, cache.NewValidEntry(l.epoch, inlineRoot))
		}
	}

	requesters := l.collectRequesters(names)

	l.mu.Unlock()

	for _, fr := range requesters {
		if fr.respond != nil {
			fr.respond(kvserr.Ok)
		}
	}

	l.watch.Runqueue()
	l.runSyncWaiters(rootSeq, rootDir)
}

// HandleError applies a replica's view of a kvs.error event: any fences
// named by it are abandoned without a root advance, and their requesters
// are responded to with errno.
func (l *Loop) HandleError(names []string, errno kvserr.Errno) {
	l.mu.Lock()
	requesters := l.collectRequesters(names)
	l.mu.Unlock()

	for _, fr := range requesters {
		if fr.respond != nil {
			fr.respond(errno)
		}
	}
}

// resolveRoot returns the dirent a request should resolve its key
// against: the caller-supplied override if present, else the rank's
// current root.
func (l *Loop) resolveRoot(req GetRequest) tree.Dirent {
	if req.HasRoot {
		return req.Root
	}

	return tree.NewDirRef(l.rootDir)
}

// runLookup drives h to completion, coalescing concurrent stalls on the
// same missing reference onto one content.load via the cache entry's
// validWait queue. sender tags the parked wait so Disconnect can purge it
// if the requester goes away before the load resolves. Must be called
// with l.mu held; always returns with it released.
func (l *Loop) runLookup(h *lookup.Handle, sender interface{}, onDone func(lookup.Result)) {
	res := h.Run(l.epoch)
	if res.Kind != lookup.Stall {
		l.mu.Unlock()
		onDone(res)
		return
	}

	ref := res.MissingRef

	entry, exists := l.cache.Peek(ref)
	if !exists {
		entry = cache.NewEntry(l.epoch)
		l.cache.Insert(ref, entry)
	}

	w := wait.New(uuid.MustUUID(), func(w *wait.Wait) {
		l.mu.Lock()
		l.runLookup(h, sender, onDone)
	}, sender)
	entry.WaitValid(w)

	l.mu.Unlock()

	if !exists {
		l.issueLoad(ref, entry)
	}
}

// issueLoad performs one content.load and resolves entry, releasing every
// waiter coalesced onto it. Must be called without l.mu held. The entry is
// resolved after l.mu is released, since every waiter it releases takes
// l.mu itself.
func (l *Loop) issueLoad(ref string, entry *cache.Entry) {
	l.store.LoadAsync(context.Background(), ref, func(data []byte, err error) {
		l.mu.Lock()

		if err != nil {
			l.faults++
			l.logger.Warn("content load failed", zap.String("ref", ref), zap.Error(err))
			// The store contract treats I/O failure as transient; resolve
			// with a nil value so waiters see NotFound rather than
			// blocking forever, matching kvserr.FromError's default.
			l.mu.Unlock()
			entry.SetValue(nil)
			return
		}

		l.mu.Unlock()
		entry.SetValue(decodeBlob(data))
	})
}

// issueStore flushes one dirty cache entry and clears its dirty flag on
// success. Must be called without l.mu held. The dirty flag is cleared
// after l.mu is released, since every waiter it releases takes l.mu itself.
func (l *Loop) issueStore(data []byte, entry *cache.Entry) {
	l.store.StoreAsync(context.Background(), data, func(ref string, err error) {
		l.mu.Lock()

		if err != nil {
			l.faults++
			l.logger.Warn("content store failed", zap.Error(err))
			l.mu.Unlock()
			return
		}

		l.mu.Unlock()
		entry.SetDirty(false)
	})
}

// drain pops one ready commit (merging first, if enabled) and processes
// it. Must be called with l.mu held; always returns with it released.
func (l *Loop) drain() {
	if !l.fences.CommitsReady() {
		l.mu.Unlock()
		return
	}

	l.fences.MergeReadyCommits()

	c, ok := l.fences.GetReadyCommit()
	if !ok {
		l.mu.Unlock()
		return
	}

	e := commit.NewEngine(l.cache, c, l.rootDir)
	l.runCommit(e, c)
}

// runCommit drives e through spec.md §4.5's steps, coalescing concurrent
// missing-ref and dirty-entry waits via the wait package exactly as the
// cache and commit engine were designed to support. Must be called with
// l.mu held; always returns with it released.
func (l *Loop) runCommit(e *commit.Engine, c *fence.Commit) {
	res := e.Process(l.epoch)

	switch res.Kind {
	case commit.ResultLoadMissingRefs:
		var newRefs []string
		var pending []*cache.Entry

		w := wait.New(uuid.MustUUID(), func(w *wait.Wait) {
			l.mu.Lock()
			l.runCommit(e, c)
		}, nil)

		e.IterMissingRefs(func(ref string) {
			entry, exists := l.cache.Peek(ref)
			if !exists {
				entry = cache.NewEntry(l.epoch)
				l.cache.Insert(ref, entry)
				newRefs = append(newRefs, ref)
				pending = append(pending, entry)
			}

			w.Increment()
			entry.WaitValid(w)
		})
		w.Decrement()

		l.mu.Unlock()

		for i, ref := range newRefs {
			l.issueLoad(ref, pending[i])
		}

	case commit.ResultDirtyEntries:
		var flushData [][]byte
		var flushEntries []*cache.Entry

		w := wait.New(uuid.MustUUID(), func(w *wait.Wait) {
			l.mu.Lock()
			l.runCommit(e, c)
		}, nil)

		e.IterDirtyCacheEntries(func(ref string, entry *cache.Entry) {
			if !entry.StoreRequested() {
				entry.SetStoreRequested(true)

				if raw, ok := entry.Encoded(); ok {
					flushData = append(flushData, raw)
					flushEntries = append(flushEntries, entry)
				}
			}

			w.Increment()
			entry.WaitNotDirty(w)
		})
		w.Decrement()

		l.mu.Unlock()

		for i, entry := range flushEntries {
			l.issueStore(flushData[i], entry)
		}

	case commit.ResultFinished:
		l.fences.AddNoopStores(e.NoopStores())

		var inlineRoot interface{}
		if entry, ok := l.cache.Peek(res.NewRootRef); ok {
			if v, valid := entry.Value(); valid {
				inlineRoot = v
			}
		}

		l.advanceRoot(res.NewRootRef, inlineRoot, c.Names)

	case commit.ResultError:
		l.failCommit(c, res.Errno)
	}
}

// advanceRoot commits a new root and settles every requester waiting on
// the fences it closes out. inlineRoot, if non-nil, is the new root's
// already-decoded directory value, published alongside the setroot event
// so a replica can adopt it without a content.load of its own. Must be
// called with l.mu held; always returns with it released.
func (l *Loop) advanceRoot(newRootRef string, inlineRoot interface{}, names []string) {
	l.rootDir = newRootRef
	l.rootSeq++
	rootSeq := l.rootSeq

	requesters := l.collectRequesters(names)

	publish := l.publishSetroot
	l.mu.Unlock()

	for _, fr := range requesters {
		if fr.respond != nil {
			fr.respond(kvserr.Ok)
		}
	}

	if publish != nil {
		publish(rootSeq, newRootRef, inlineRoot, names)
	}

	l.watch.Runqueue()
	l.runSyncWaiters(rootSeq, newRootRef)

	l.mu.Lock()
	l.drain()
}

// failCommit settles every requester of a commit that finished with
// ResultError. Must be called with l.mu held; always returns with it
// released.
func (l *Loop) failCommit(c *fence.Commit, errno kvserr.Errno) {
	requesters := l.collectRequesters(c.Names)
	names := c.Names
	publish := l.publishError

	l.mu.Unlock()

	for _, fr := range requesters {
		if fr.respond != nil {
			fr.respond(errno)
		}
	}

	if publish != nil {
		publish(names, errno)
	}

	l.mu.Lock()
	l.drain()
}

// collectRequesters gathers and removes the fences named, returning every
// requester recorded against them. Must be called with l.mu held.
func (l *Loop) collectRequesters(names []string) []*fenceRequester {
	var requesters []*fenceRequester

	for _, name := range names {
		if f, ok := l.fences.LookupFence(name); ok {
			for _, r := range f.Requesters {
				if fr, ok := r.(*fenceRequester); ok {
					requesters = append(requesters, fr)
				}
			}
		}

		l.fences.RemoveFence(name)
	}

	return requesters
}

// runSyncWaiters responds every sync waiter whose required rootSeq has now
// been reached. Must be called without l.mu held.
func (l *Loop) runSyncWaiters(rootSeq uint64, rootDir string) {
	l.mu.Lock()

	var ready, pending []syncWaiter
	for _, w := range l.syncWaiters {
		if rootSeq >= w.rootSeq {
			ready = append(ready, w)
		} else {
			pending = append(pending, w)
		}
	}
	l.syncWaiters = pending

	l.mu.Unlock()

	for _, w := range ready {
		w.respond(SyncResponse{RootSeq: rootSeq, RootDir: rootDir})
	}
}

func lookupValue(res lookup.Result) interface{} {
	if res.Kind == lookup.Found {
		return res.Value
	}

	return nil
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

func toGetResponse(res lookup.Result) GetResponse {
	switch res.Kind {
	case lookup.Error:
		return GetResponse{Errno: res.Errno, RootRef: res.RootRef}
	case lookup.NotFound:
		return GetResponse{Errno: kvserr.NotFound, RootRef: res.RootRef}
	default:
		return GetResponse{Value: res.Value, RootRef: res.RootRef}
	}
}

// decodeBlob decodes a raw content-store blob, trying the directory shape
// first since it's the only wire shape unambiguous enough to reject bad
// matches; a blob that doesn't parse as a directory is a bare value.
func decodeBlob(data []byte) interface{} {
	if dir, err := tree.DecodeDirectory(data); err == nil {
		return dir
	}

	if v, err := tree.DecodeValue(data); err == nil {
		return v
	}

	return nil
}
