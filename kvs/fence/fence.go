// Package fence implements the fence aggregator and ready-commit manager of
// spec.md §4.4: it collects the N expected sub-requests of a named
// fence/transaction and hands complete ones to the commit engine.
package fence

import "github.com/jrife/flock/kvs/tree"

// Fence is an aggregation record: a unique name, expected participant
// count, accumulated operations, and copies of the requests that will need
// a response once the corresponding setroot or error event arrives.
type Fence struct {
	Name       string
	Expected   int
	Observed   int
	Ops        []tree.Operation
	NoMerge    bool
	Requesters []interface{}
	ready      bool
}

// Ready reports whether this fence has already been moved to the ready
// list; used to make ProcessFenceRequest idempotent under re-arrival.
func (f *Fence) Ready() bool {
	return f.ready
}

// Commit is a transient object bound to one ready fence (or, after
// merging, several), carrying the concatenated operation list a commit
// engine will apply to a snapshot root.
type Commit struct {
	Names      []string
	Ops        []tree.Operation
	NoMerge    bool
	Requesters []interface{}
}

// Table is the per-rank fence table: a map from fence name to *Fence, plus
// the queue of commits that have become ready to apply.
type Table struct {
	fences       map[string]*Fence
	ready        []*Commit
	mergeEnabled bool
	noopStores   int
}

// NewTable creates an empty fence table. mergeEnabled corresponds to the
// commit-merge module option of spec.md §6.
func NewTable(mergeEnabled bool) *Table {
	return &Table{
		fences:       make(map[string]*Fence),
		mergeEnabled: mergeEnabled,
	}
}

// AddFence registers a new fence under name if one does not already exist,
// returning the (possibly pre-existing) fence.
func (t *Table) AddFence(name string, expected int, noMerge bool) *Fence {
	if f, ok := t.fences[name]; ok {
		return f
	}

	f := &Fence{Name: name, Expected: expected, NoMerge: noMerge}
	t.fences[name] = f

	return f
}

// LookupFence returns the fence registered under name, if any.
func (t *Table) LookupFence(name string) (*Fence, bool) {
	f, ok := t.fences[name]
	return f, ok
}

// RemoveFence removes the fence registered under name. Called once the
// corresponding setroot or error event has been observed and every
// requester has been responded to.
func (t *Table) RemoveFence(name string) {
	delete(t.fences, name)
}

// Aggregate appends one participant's operations and requester to the
// named fence, creating it first if this is its first arrival.
func (t *Table) Aggregate(name string, expected int, noMerge bool, ops []tree.Operation, requester interface{}) *Fence {
	f := t.AddFence(name, expected, noMerge)

	f.Ops = append(f.Ops, ops...)
	f.Observed++

	if requester != nil {
		f.Requesters = append(f.Requesters, requester)
	}

	if noMerge {
		f.NoMerge = true
	}

	return f
}

// ProcessFenceRequest moves fence to the ready list once its observed
// count reaches its expected count. It is idempotent: re-arrival after the
// fence has already been made ready is a no-op, matching spec.md §4.4.
// Returns true if this call is what made the fence ready.
func (t *Table) ProcessFenceRequest(f *Fence) bool {
	if f.ready {
		return false
	}

	if f.Observed < f.Expected {
		return false
	}

	f.ready = true

	t.ready = append(t.ready, &Commit{
		Names:      []string{f.Name},
		Ops:        f.Ops,
		NoMerge:    f.NoMerge,
		Requesters: f.Requesters,
	})

	return true
}

// CommitsReady reports whether any commit is waiting to be processed.
func (t *Table) CommitsReady() bool {
	return len(t.ready) > 0
}

// GetReadyCommit pops one ready commit, in FIFO order.
func (t *Table) GetReadyCommit() (*Commit, bool) {
	if len(t.ready) == 0 {
		return nil, false
	}

	c := t.ready[0]
	t.ready = t.ready[1:]

	return c, true
}

// MergeReadyCommits combines every pair of ready commits that are
// compatible (neither carries NoMerge) into a single commit, concatenating
// their operation lists in the order the commits were queued and unioning
// their names. It is a pure optimization: skipped entirely unless merging
// is enabled, and never reorders operations within what was a single
// fence. Commits with NoMerge set are left untouched in the ready queue.
func (t *Table) MergeReadyCommits() {
	if !t.mergeEnabled || len(t.ready) < 2 {
		return
	}

	var merged *Commit
	var rest []*Commit

	for _, c := range t.ready {
		if c.NoMerge {
			rest = append(rest, c)
			continue
		}

		if merged == nil {
			merged = &Commit{
				Names:      append([]string(nil), c.Names...),
				Ops:        append([]tree.Operation(nil), c.Ops...),
				Requesters: append([]interface{}(nil), c.Requesters...),
			}
			continue
		}

		merged.Names = append(merged.Names, c.Names...)
		merged.Ops = append(merged.Ops, c.Ops...)
		merged.Requesters = append(merged.Requesters, c.Requesters...)
	}

	if merged == nil {
		return
	}

	t.ready = append([]*Commit{merged}, rest...)
}

// IncrNoopStores records that a produced blob was already valid in cache
// and its content.store call was elided, per spec.md §4.4's noop_stores
// counter.
func (t *Table) IncrNoopStores() {
	t.noopStores++
}

// AddNoopStores adds n to the running noop_stores count in one call, used
// by the commit engine to report every noop it detected while finalizing a
// single commit.
func (t *Table) AddNoopStores(n int) {
	t.noopStores += n
}

// NoopStores returns the running noop_stores count.
func (t *Table) NoopStores() int {
	return t.noopStores
}

// ClearNoopStores resets the running noop_stores count, matching kvs.c's
// commit_mgr_clear_noop_stores as invoked by stats.clear.
func (t *Table) ClearNoopStores() {
	t.noopStores = 0
}
