package content

import (
	"context"
	"errors"
	"sync"

	"github.com/jrife/flock/kvs/tree"
)

// ErrNotFound is returned by Load when no blob exists under the given
// reference.
var ErrNotFound = errors.New("content: no such blob")

// MemStore is a guarded in-memory blob store. It always resolves "now",
// synchronously, from within LoadAsync/StoreAsync, which makes it useful
// for unit tests that want to exercise the kvs core's synchronous I/O path
// without a goroutine or a disk.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ AsyncStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Load implements Store.
func (m *MemStore) Load(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[ref]
	if !ok {
		return nil, ErrNotFound
	}

	return b, nil
}

// Store implements Store. The reference is the sha256 content hash
// computed by kvs/tree.HashOf, matching what a real content-addressed
// store would compute over the same bytes.
func (m *MemStore) Store(ctx context.Context, data []byte) (string, error) {
	ref := tree.HashOf(data)

	m.mu.Lock()
	m.blobs[ref] = data
	m.mu.Unlock()

	return ref, nil
}

// LoadAsync implements AsyncStore, resolving synchronously.
func (m *MemStore) LoadAsync(ctx context.Context, ref string, cb LoadFunc) {
	data, err := m.Load(ctx, ref)
	cb(data, err)
}

// StoreAsync implements AsyncStore, resolving synchronously.
func (m *MemStore) StoreAsync(ctx context.Context, data []byte, cb StoreFunc) {
	ref, err := m.Store(ctx, data)
	cb(ref, err)
}

// Close implements Store.
func (m *MemStore) Close() error {
	return nil
}
