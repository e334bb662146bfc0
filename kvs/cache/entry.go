package cache

import "github.com/jrife/flock/kvs/wait"

// Entry is a single content cache slot: an optional value, valid/dirty/
// store-requested flags, per-transition wait-queues, and the epoch this
// entry was last touched at. Fields are unexported; the cache and its
// callers manipulate entries only through the methods below so the
// invariants in spec.md §3 (dirty ⇒ valid, !valid ⇒ not evictable) hold by
// construction.
type Entry struct {
	value          interface{}
	encoded        []byte
	valid          bool
	dirty          bool
	storeRequested bool
	validWait      *wait.Queue
	notDirtyWait   *wait.Queue
	lastUse        uint64
}

// NewEntry creates an incomplete (invalid) entry, ready to have waiters
// registered on it while its value is loaded.
func NewEntry(epoch uint64) *Entry {
	return &Entry{
		validWait:    wait.NewQueue(),
		notDirtyWait: wait.NewQueue(),
		lastUse:      epoch,
	}
}

// NewValidEntry creates an entry that is immediately valid, e.g. one
// materialized directly from a canonical encoding rather than loaded
// asynchronously.
func NewValidEntry(epoch uint64, value interface{}) *Entry {
	e := NewEntry(epoch)
	e.value = value
	e.valid = true

	return e
}

// Value returns the cached value and whether the entry is valid.
func (e *Entry) Value() (interface{}, bool) {
	return e.value, e.valid
}

// Valid reports whether this entry's value has been loaded.
func (e *Entry) Valid() bool {
	return e.valid
}

// SetValue populates the entry's value, marks it valid, and releases every
// waiter parked on WaitValid. It is a programming error to call this twice;
// the second call is a no-op other than updating the stored value, since a
// dirty finalize legitimately rewrites a value that was already valid.
func (e *Entry) SetValue(v interface{}) {
	e.value = v
	e.valid = true
	e.validWait.Runqueue()
}

// Dirty reports whether the entry has been modified locally since it was
// last flushed to the content store.
func (e *Entry) Dirty() bool {
	return e.dirty
}

// SetDirty transitions the dirty flag. Marking an entry dirty requires it
// already be valid (spec.md §3: dirty ⇒ valid). Clearing dirty releases
// every waiter parked on WaitNotDirty.
func (e *Entry) SetDirty(dirty bool) error {
	if dirty && !e.valid {
		return ErrNotValid
	}

	e.dirty = dirty

	if !dirty {
		e.notDirtyWait.Runqueue()
	}

	return nil
}

// Encoded returns the entry's canonical encoding and whether one has been
// set. A cache value need not be bytes (directories are cached decoded),
// so a dirty entry that still needs flushing carries its encoded form
// here, alongside the decoded value readers expect from Value.
func (e *Entry) Encoded() ([]byte, bool) {
	return e.encoded, e.encoded != nil
}

// SetEncoded records b as the entry's canonical encoding, used by the
// commit engine when it finalizes a directory so the flush path has bytes
// to store without disturbing the decoded value in Value.
func (e *Entry) SetEncoded(b []byte) {
	e.encoded = b
}

// StoreRequested reports whether a content.store call has already been
// issued for this entry, so callers don't double-submit while a flush is
// in flight.
func (e *Entry) StoreRequested() bool {
	return e.storeRequested
}

// SetStoreRequested sets the content-store-requested flag.
func (e *Entry) SetStoreRequested(requested bool) {
	e.storeRequested = requested
}

// WaitValid parks w until this entry becomes valid. If the entry is
// already valid, w is decremented immediately.
func (e *Entry) WaitValid(w *wait.Wait) {
	if e.valid {
		w.Decrement()
		return
	}

	e.validWait.Addqueue(w)
}

// WaitNotDirty parks w until this entry becomes clean. If the entry is
// already clean, w is decremented immediately.
func (e *Entry) WaitNotDirty(w *wait.Wait) {
	if !e.dirty {
		w.Decrement()
		return
	}

	e.notDirtyWait.Addqueue(w)
}

// Evictable reports whether spec.md §3's eviction preconditions hold:
// valid, clean, and no outstanding waiters on either queue.
func (e *Entry) Evictable() bool {
	return e.valid && !e.dirty && e.validWait.Empty() && e.notDirtyWait.Empty()
}

// LastUse returns the epoch this entry was last touched at.
func (e *Entry) LastUse() uint64 {
	return e.lastUse
}

// touch updates the entry's last-use epoch. Called by the cache on every
// successful Lookup.
func (e *Entry) touch(epoch uint64) {
	e.lastUse = epoch
}

// encodedSize returns the byte length of the entry's canonical encoding,
// used only for GetStats' size distribution; zero if the entry has never
// had an encoded form recorded.
func (e *Entry) encodedSize() int {
	return len(e.encoded)
}
