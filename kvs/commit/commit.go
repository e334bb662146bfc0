// Package commit implements the commit engine of spec.md §4.5: it applies
// a ready fence's operations to a snapshot root, re-entrantly, stalling
// whenever it needs a directory the cache doesn't have yet and again while
// its rewritten directories flush to the content store.
package commit

import (
	"github.com/jrife/flock/kvs/cache"
	"github.com/jrife/flock/kvs/fence"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvserr"
	"github.com/jrife/flock/utils/uuid"
)

// ResultKind identifies which of spec.md §4.5's four outcomes a Process
// call produced.
type ResultKind int

// The outcomes named in spec.md §4.5.
const (
	ResultFinished ResultKind = iota
	ResultLoadMissingRefs
	ResultDirtyEntries
	ResultError
)

// Result is the outcome of one Engine.Process call.
type Result struct {
	Kind ResultKind

	// NewRootRef is populated when Kind == ResultFinished.
	NewRootRef string
	// Errno is populated when Kind == ResultError.
	Errno kvserr.Errno
}

// node is one directory in the working copy of the tree being rewritten.
// Nodes for directories the commit's operations never touch are never
// created; the tree is materialized on demand, mirroring the "materializing
// any referenced directories encountered" wording of spec.md §4.5 step 2.
type node struct {
	dir            tree.Directory
	loaded         bool
	ref            string
	dirty          bool
	placeholderKey string
	children       map[string]*node
}

// Engine drives one commit through spec.md §4.5's steps. It is re-entrant:
// Process may be called repeatedly, returning ResultLoadMissingRefs or
// ResultDirtyEntries until the caller has satisfied the corresponding
// iterator, at which point the next call continues from where it left off.
type Engine struct {
	cache  *cache.Cache
	commit *fence.Commit
	epoch  uint64

	working    *node
	missing    []string
	dirtyRefs  []string
	finalized  bool
	newRootRef string
	errno      kvserr.Errno
	failed     bool
	noopStores int
}

// NewEngine creates a commit engine that will apply commit's operations
// starting from the directory cached under rootRef.
func NewEngine(c *cache.Cache, commit *fence.Commit, rootRef string) *Engine {
	return &Engine{
		cache:  c,
		commit: commit,
		working: &node{
			ref: rootRef,
		},
	}
}

// NoopStores returns the number of rewritten directories whose computed
// content was already present in the cache under its final key, elided
// from being flushed a second time.
func (e *Engine) NoopStores() int {
	return e.noopStores
}

// Process performs (or resumes) the algorithm of spec.md §4.5.
func (e *Engine) Process(epoch uint64) Result {
	e.epoch = epoch

	if e.failed {
		return Result{Kind: ResultError, Errno: e.errno}
	}

	if e.finalized {
		return e.checkFlush()
	}

	e.missing = e.missing[:0]

	if err := e.ensureLoaded(e.working); err != nil {
		return e.fail(err)
	}

	if len(e.missing) > 0 {
		return Result{Kind: ResultLoadMissingRefs}
	}

	for _, op := range e.commit.Ops {
		if err := e.applyOp(op); err != nil {
			return e.fail(err)
		}

		if len(e.missing) > 0 {
			return Result{Kind: ResultLoadMissingRefs}
		}
	}

	e.dirtyRefs = e.dirtyRefs[:0]

	newRef, err := e.finalizeNode(e.working)
	if err != nil {
		return e.fail(err)
	}

	e.newRootRef = newRef
	e.finalized = true

	return e.checkFlush()
}

// IterMissingRefs invokes cb once for every blob reference the last
// Process call needed but did not find valid in the cache. The caller is
// expected to issue content.load calls for each and re-invoke Process once
// they resolve.
func (e *Engine) IterMissingRefs(cb func(ref string)) {
	for _, ref := range e.missing {
		cb(ref)
	}
}

// IterDirtyCacheEntries invokes cb once for every cache entry this commit
// rewrote and still needs flushed. The caller is expected to issue
// content.store calls for each and register a wait on the entry's notdirty
// queue, matching spec.md §4.5 step 4.
func (e *Engine) IterDirtyCacheEntries(cb func(ref string, entry *cache.Entry)) {
	for _, ref := range e.dirtyRefs {
		entry, ok := e.cache.Peek(ref)
		if !ok {
			continue
		}

		cb(ref, entry)
	}
}

func (e *Engine) checkFlush() Result {
	for _, ref := range e.dirtyRefs {
		entry, ok := e.cache.Peek(ref)
		if ok && entry.Dirty() {
			return Result{Kind: ResultDirtyEntries}
		}
	}

	return Result{Kind: ResultFinished, NewRootRef: e.newRootRef}
}

func (e *Engine) fail(err error) Result {
	e.failed = true
	e.errno = kvserr.FromError(err)

	return Result{Kind: ResultError, Errno: e.errno}
}

// ensureLoaded materializes n.dir from the cache if it isn't already
// resolved. A cache miss is recorded in e.missing rather than treated as an
// error; the caller checks e.missing after each call.
func (e *Engine) ensureLoaded(n *node) error {
	if n.loaded {
		return nil
	}

	if n.ref == "" {
		n.dir = tree.Directory{}
		n.loaded = true

		return nil
	}

	entry, ok := e.cache.Lookup(n.ref, e.epoch)
	if !ok || !entry.Valid() {
		e.missing = append(e.missing, n.ref)
		return nil
	}

	value, _ := entry.Value()

	dir, ok := value.(tree.Directory)
	if !ok {
		return kvserr.New(kvserr.Invalid, "cached entry is not a directory: "+n.ref)
	}

	n.dir = dir
	n.loaded = true

	return nil
}

// applyOp walks from the working root to op's target key, auto-vivifying
// intermediate directories that don't yet exist, and applies the set or
// delete at the leaf. Every node on the path is marked dirty, since each
// ancestor's DIRREF entry for the next node down will need to be rewritten
// once that node's new blob reference is known.
func (e *Engine) applyOp(op tree.Operation) error {
	components := tree.SplitKey(op.Key)
	if len(components) == 0 {
		return kvserr.New(kvserr.Invalid, "empty key")
	}

	cur := e.working
	path := []*node{cur}

	for _, comp := range components[:len(components)-1] {
		if err := e.ensureLoaded(cur); err != nil {
			return err
		}

		if len(e.missing) > 0 {
			return nil
		}

		child, exists := cur.children[comp]
		if !exists {
			dirent, present := cur.dir[comp]

			switch {
			case !present:
				child = &node{dir: tree.Directory{}, loaded: true}
			case dirent.Tag == tree.DirRef:
				child = &node{ref: dirent.DirRef}
			case dirent.Tag == tree.DirVal:
				child = &node{dir: cloneDir(dirent.DirVal), loaded: true}
			default:
				return kvserr.New(kvserr.NotDirectory, "path component is not a directory: "+comp)
			}

			if cur.children == nil {
				cur.children = make(map[string]*node)
			}

			cur.children[comp] = child
		}

		cur = child
		path = append(path, cur)
	}

	if err := e.ensureLoaded(cur); err != nil {
		return err
	}

	if len(e.missing) > 0 {
		return nil
	}

	// Every node on the path gets its directory map cloned the first time
	// it becomes dirty, since ancestors' entries for the next node down
	// will be rewritten in finalizeNode once that node's new reference is
	// known, and their dir maps may otherwise still be the very map a
	// cache entry holds.
	for _, n := range path {
		if !n.dirty {
			n.dir = cloneDir(n.dir)
			n.dirty = true
		}
	}

	leaf := components[len(components)-1]

	if op.Delete {
		// Deletions of non-existent keys are silently successful.
		delete(cur.dir, leaf)
	} else {
		cur.dir[leaf] = op.Dirent
	}

	// A prior operation in this same commit may have materialized leaf as
	// a child subdirectory node; this operation just replaced or removed
	// it directly in cur.dir, so that node is stale and must not have its
	// finalized reference written back over what was just set here.
	delete(cur.children, leaf)

	return nil
}

// finalizeNode recursively encodes every dirty node bottom-up, computing
// its blob reference and reassigning its cache entry's key to that
// reference (spec.md §4.5 step 4). Clean nodes are left untouched: their
// entry in their parent's directory map was never mutated, so it already
// names the right reference or inline value.
func (e *Engine) finalizeNode(n *node) (string, error) {
	if !n.dirty {
		return n.ref, nil
	}

	for name, child := range n.children {
		if !child.dirty {
			continue
		}

		childRef, err := e.finalizeNode(child)
		if err != nil {
			return "", err
		}

		n.dir[name] = tree.NewDirRef(childRef)
	}

	encoded, err := tree.EncodeDirectory(n.dir)
	if err != nil {
		return "", kvserr.New(kvserr.Invalid, err.Error())
	}

	finalRef := tree.HashOf(encoded)

	if n.placeholderKey == "" {
		n.placeholderKey = "placeholder:" + uuid.MustUUID()

		entry := cache.NewValidEntry(e.epoch, n.dir)
		entry.SetEncoded(encoded)
		if err := e.cache.Insert(n.placeholderKey, entry); err != nil {
			return "", kvserr.New(kvserr.Invalid, err.Error())
		}

		if err := entry.SetDirty(true); err != nil {
			return "", kvserr.New(kvserr.Invalid, err.Error())
		}
	}

	existing, alreadyPresent, err := e.cache.Rekey(n.placeholderKey, finalRef)
	if err != nil {
		return "", kvserr.New(kvserr.Invalid, err.Error())
	}

	n.ref = finalRef
	n.placeholderKey = finalRef

	if alreadyPresent {
		e.noopStores++

		if !existing.Dirty() {
			return finalRef, nil
		}
	}

	e.dirtyRefs = append(e.dirtyRefs, finalRef)

	return finalRef, nil
}

func cloneDir(d tree.Directory) tree.Directory {
	clone := make(tree.Directory, len(d))

	for k, v := range d {
		clone[k] = v
	}

	return clone
}
