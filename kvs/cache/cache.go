// Package cache implements the content cache of spec.md §4.2: a map from
// blob reference (or, transiently, a placeholder key) to a cache entry with
// demand loading, dirty tracking, and age-based eviction.
package cache

// Cache is a single-rank, single-threaded content cache. It is not safe
// for concurrent use; the kvs core relies on the single-reactor-thread
// model described in spec.md §5.
type Cache struct {
	entries map[string]*Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Lookup returns the entry keyed by key, touching its last-use epoch on a
// hit, per spec.md §4.2.
func (c *Cache) Lookup(key string, epoch uint64) (*Entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	e.touch(epoch)

	return e, true
}

// Peek returns the entry keyed by key without touching its last-use epoch.
// Used by the commit engine, the service loop and tests where a lookup must
// not perturb eviction order.
func (c *Cache) Peek(key string) (*Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Insert places entry under key. It fails with ErrExists if key is already
// present, matching spec.md §4.2's "fails if ref already present".
func (c *Cache) Insert(key string, entry *Entry) error {
	if _, exists := c.entries[key]; exists {
		return ErrExists
	}

	c.entries[key] = entry

	return nil
}

// Rekey moves the entry at oldKey to newKey, used when a dirty entry's
// placeholder identity is replaced by its computed blob reference during
// commit finalize (spec.md §4.5 step 4, and the "Cache keying transition"
// design note in spec.md §9). If an entry already exists at newKey (the
// computed content was already cached, i.e. a noop store), Rekey removes
// the entry at oldKey and returns the existing one at newKey plus true for
// "already present" so the caller can record a noop_stores hit instead of
// flushing a duplicate blob.
func (c *Cache) Rekey(oldKey, newKey string) (existing *Entry, alreadyPresent bool, err error) {
	entry, ok := c.entries[oldKey]
	if !ok {
		return nil, false, ErrNoSuchEntry
	}

	if oldKey == newKey {
		return entry, false, nil
	}

	if existing, exists := c.entries[newKey]; exists {
		delete(c.entries, oldKey)
		return existing, true, nil
	}

	delete(c.entries, oldKey)
	c.entries[newKey] = entry

	return entry, false, nil
}

// Remove deletes the entry under key unconditionally.
func (c *Cache) Remove(key string) {
	delete(c.entries, key)
}

// CountEntries returns the total number of entries in the cache.
func (c *Cache) CountEntries() int {
	return len(c.entries)
}

// ExpireEntries drops every entry satisfying spec.md §4.2's eviction
// predicate: valid, clean, no waiters, and epoch-lastUse >= maxAge. It
// returns the number of entries dropped. maxAge == 0 forces eviction of
// every otherwise-evictable entry regardless of age, matching the
// dropcache request/event's "expire_entries(epoch, 0)".
func (c *Cache) ExpireEntries(epoch uint64, maxAge uint64) int {
	var dropped int

	for key, e := range c.entries {
		if !e.Evictable() {
			continue
		}

		if epoch-e.lastUse < maxAge {
			continue
		}

		delete(c.entries, key)
		dropped++
	}

	return dropped
}

// WaitDestroyMsg purges every waiter across every entry's wait-queues whose
// saved data matches predicate, per spec.md §4.2.
func (c *Cache) WaitDestroyMsg(predicate func(data interface{}) bool) int {
	var destroyed int

	for _, e := range c.entries {
		destroyed += e.validWait.DestroyMsg(predicate)
		destroyed += e.notDirtyWait.DestroyMsg(predicate)
	}

	return destroyed
}
