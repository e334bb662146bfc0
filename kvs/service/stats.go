package service

import "github.com/jrife/flock/kvs/cache"

// Stats is the payload spec.md's supplemented stats.get/stats.clear pair
// reports, grounded on kvs.c's stats_get_cb: the cache's own composition
// (including its tstat_t-style object-size distribution), watcher and
// fault counts, the noop-store count, and the current store revision.
type Stats struct {
	Cache      cache.Stats
	Watchers   int
	Faults     uint64
	NoopStores int
	RootSeq    uint64

	Gets      uint64
	Watches   uint64
	Fences    uint64
	Evictions uint64
}
