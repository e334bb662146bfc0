package content

import "context"

// syncAsyncStore adapts any synchronous Store into an AsyncStore by
// invoking Load/Store on the caller's goroutine and firing the callback
// immediately, matching the "now" delivery mode spec.md §9 permits. Used to
// drive kvs/service.Loop against BBoltStore, which has no native async
// path of its own.
type syncAsyncStore struct {
	store Store
}

// NewSyncAsyncStore wraps s so it satisfies AsyncStore, resolving every
// call synchronously.
func NewSyncAsyncStore(s Store) AsyncStore {
	return &syncAsyncStore{store: s}
}

func (s *syncAsyncStore) Load(ctx context.Context, ref string) ([]byte, error) {
	return s.store.Load(ctx, ref)
}

func (s *syncAsyncStore) Store(ctx context.Context, data []byte) (string, error) {
	return s.store.Store(ctx, data)
}

func (s *syncAsyncStore) Close() error {
	return s.store.Close()
}

func (s *syncAsyncStore) LoadAsync(ctx context.Context, ref string, cb LoadFunc) {
	data, err := s.store.Load(ctx, ref)
	cb(data, err)
}

func (s *syncAsyncStore) StoreAsync(ctx context.Context, data []byte, cb StoreFunc) {
	ref, err := s.store.Store(ctx, data)
	cb(ref, err)
}
