// Package content implements the two concrete adapters SPEC_FULL.md gives
// the out-of-scope content-store collaborator: a bbolt-backed store for
// running the core against real persistence, and an in-memory store for
// synchronous unit tests. Both satisfy Store.
package content

import "context"

// Store is the contract spec.md §6 assumes of the content-store service:
// load a blob by reference, or store bytes and get back the reference the
// store computed for them. The store owns persistence and is authoritative
// for validity; the kvs core never second-guesses a reference it returns.
type Store interface {
	Load(ctx context.Context, ref string) ([]byte, error)
	Store(ctx context.Context, data []byte) (string, error)
	Close() error
}

// LoadFunc/StoreFunc are the shapes of the completion callbacks the kvs
// core registers with a Store's asynchronous variants, matching the
// original's flux_future continuation style (spec.md §9 "dual sync/async
// I/O paths"). Both Async methods below may invoke the callback
// synchronously, from within the call to LoadAsync/StoreAsync itself
// ("now"), or later ("deferred"); callers must tolerate either.
type LoadFunc func(data []byte, err error)
type StoreFunc func(ref string, err error)

// AsyncStore is implemented by adapters that can additionally deliver
// results via callback rather than by blocking the caller, matching
// spec.md §9's requirement that both I/O modes be supported.
type AsyncStore interface {
	Store
	LoadAsync(ctx context.Context, ref string, cb LoadFunc)
	StoreAsync(ctx context.Context, data []byte, cb StoreFunc)
}
