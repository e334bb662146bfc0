package content

import (
	"context"
	"fmt"

	"github.com/jrife/flock/kvs/tree"
	bolt "go.etcd.io/bbolt"
)

// blobsBucket is the single bucket a BBoltStore keeps all blobs in, keyed
// by blob reference. A well-known root bucket rather than a caller-supplied
// name keeps the on-disk layout fixed regardless of who opens the store.
var blobsBucket = []byte("blobs")

// BBoltStore persists blobs in a single bbolt database file, keyed by the
// sha256 reference kvs/tree.HashOf computes over their canonical bytes.
type BBoltStore struct {
	db *bolt.DB
}

var _ Store = (*BBoltStore)(nil)

// Open opens (creating if necessary) a bbolt-backed content store at path.
func Open(path string) (*BBoltStore, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt content store at %s: %s", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ensure blobs bucket exists: %s", err)
	}

	return &BBoltStore{db: db}, nil
}

// Load implements Store.
func (s *BBoltStore) Load(ctx context.Context, ref string) ([]byte, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(blobsBucket).Get([]byte(ref))
		if b == nil {
			return ErrNotFound
		}

		// Bucket.Get's return value is only valid for the life of the
		// transaction; copy it out before returning.
		data = append([]byte(nil), b...)

		return nil
	})

	if err != nil {
		return nil, err
	}

	return data, nil
}

// Store implements Store.
func (s *BBoltStore) Store(ctx context.Context, data []byte) (string, error) {
	ref := tree.HashOf(data)

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobsBucket).Put([]byte(ref), data)
	})

	if err != nil {
		return "", fmt.Errorf("could not store blob %s: %s", ref, err)
	}

	return ref, nil
}

// Close implements Store.
func (s *BBoltStore) Close() error {
	return s.db.Close()
}
