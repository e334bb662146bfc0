package commit_test

import (
	"testing"

	"github.com/jrife/flock/kvs/cache"
	"github.com/jrife/flock/kvs/commit"
	"github.com/jrife/flock/kvs/fence"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvserr"
)

func rootRef(t *testing.T, c *cache.Cache, dir tree.Directory) string {
	t.Helper()

	encoded, err := tree.EncodeDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}

	ref := tree.HashOf(encoded)
	if err := c.Insert(ref, cache.NewValidEntry(1, dir)); err != nil {
		t.Fatal(err)
	}

	return ref
}

func TestProcessSimpleSetFinishesAfterFlush(t *testing.T) {
	c := cache.New()
	root := rootRef(t, c, tree.Directory{})

	cm := &fence.Commit{
		Names: []string{"txn1"},
		Ops:   []tree.Operation{tree.NewSet("a", tree.NewFileVal(float64(1)))},
	}

	e := commit.NewEngine(c, cm, root)

	res := e.Process(1)
	if res.Kind != commit.ResultDirtyEntries {
		t.Fatalf("expected ResultDirtyEntries, got %v", res.Kind)
	}

	var flushed []string
	e.IterDirtyCacheEntries(func(ref string, entry *cache.Entry) {
		flushed = append(flushed, ref)
		if err := entry.SetDirty(false); err != nil {
			t.Fatal(err)
		}
	})

	if len(flushed) != 1 {
		t.Fatalf("expected exactly 1 dirty entry, got %d", len(flushed))
	}

	res = e.Process(2)
	if res.Kind != commit.ResultFinished {
		t.Fatalf("expected ResultFinished, got %v (errno %v)", res.Kind, res.Errno)
	}

	if res.NewRootRef == "" || res.NewRootRef == root {
		t.Fatalf("expected a new root ref distinct from the original, got %q", res.NewRootRef)
	}

	entry, ok := c.Peek(res.NewRootRef)
	if !ok {
		t.Fatal("expected new root to be cached")
	}

	value, _ := entry.Value()

	dir, ok := value.(tree.Directory)
	if !ok {
		t.Fatal("expected cached value to be a directory")
	}

	if dir["a"].Tag != tree.FileVal || dir["a"].FileVal.(float64) != 1 {
		t.Fatalf("expected a=1 in the new root, got %v", dir["a"])
	}
}

func TestProcessStallsOnMissingSubdirectory(t *testing.T) {
	c := cache.New()

	sub := tree.Directory{"x": tree.NewFileVal(float64(1))}
	subBytes, err := tree.EncodeDirectory(sub)
	if err != nil {
		t.Fatal(err)
	}
	subRef := tree.HashOf(subBytes)

	root := rootRef(t, c, tree.Directory{"a": tree.NewDirRef(subRef)})

	cm := &fence.Commit{Ops: []tree.Operation{tree.NewSet("a.y", tree.NewFileVal(float64(2)))}}
	e := commit.NewEngine(c, cm, root)

	res := e.Process(1)
	if res.Kind != commit.ResultLoadMissingRefs {
		t.Fatalf("expected ResultLoadMissingRefs, got %v", res.Kind)
	}

	var missing []string
	e.IterMissingRefs(func(ref string) { missing = append(missing, ref) })

	if len(missing) != 1 || missing[0] != subRef {
		t.Fatalf("expected missing ref %s, got %v", subRef, missing)
	}

	if err := c.Insert(subRef, cache.NewValidEntry(1, sub)); err != nil {
		t.Fatal(err)
	}

	res = e.Process(2)
	if res.Kind != commit.ResultDirtyEntries {
		t.Fatalf("expected ResultDirtyEntries after resolving the stall, got %v", res.Kind)
	}

	e.IterDirtyCacheEntries(func(ref string, entry *cache.Entry) {
		entry.SetDirty(false)
	})

	res = e.Process(3)
	if res.Kind != commit.ResultFinished {
		t.Fatalf("expected ResultFinished, got %v", res.Kind)
	}
}

func TestProcessDeleteOfMissingKeySucceeds(t *testing.T) {
	c := cache.New()
	root := rootRef(t, c, tree.Directory{"a": tree.NewFileVal(float64(1))})

	cm := &fence.Commit{Ops: []tree.Operation{tree.NewDelete("nosuchkey")}}
	e := commit.NewEngine(c, cm, root)

	// Deleting an absent key leaves the directory's content unchanged, so
	// it re-hashes to the very ref that's already cached and clean: no
	// flush is needed at all.
	res := e.Process(1)
	if res.Kind != commit.ResultFinished {
		t.Fatalf("expected ResultFinished immediately, got %v (errno %v)", res.Kind, res.Errno)
	}

	if res.NewRootRef != root {
		t.Fatalf("expected the root ref to be unchanged, got %s vs %s", res.NewRootRef, root)
	}

	entry, _ := c.Peek(res.NewRootRef)
	value, _ := entry.Value()
	dir := value.(tree.Directory)
	if _, ok := dir["a"]; !ok {
		t.Fatal("expected the pre-existing key to survive a no-op delete")
	}
}

func TestProcessDetectsNoopStore(t *testing.T) {
	c := cache.New()
	root := rootRef(t, c, tree.Directory{"a": tree.NewFileVal(float64(1))})

	// Precompute what the new root will hash to and seed the cache with it
	// already valid and clean, simulating a concurrent commit that already
	// produced identical content.
	newDir := tree.Directory{"a": tree.NewFileVal(float64(1)), "b": tree.NewFileVal(float64(2))}
	encoded, err := tree.EncodeDirectory(newDir)
	if err != nil {
		t.Fatal(err)
	}
	newRef := tree.HashOf(encoded)
	if err := c.Insert(newRef, cache.NewValidEntry(1, newDir)); err != nil {
		t.Fatal(err)
	}

	cm := &fence.Commit{Ops: []tree.Operation{tree.NewSet("b", tree.NewFileVal(float64(2)))}}
	e := commit.NewEngine(c, cm, root)

	res := e.Process(1)
	if res.Kind != commit.ResultFinished {
		t.Fatalf("expected ResultFinished immediately since the target content was already cached and clean, got %v", res.Kind)
	}

	if res.NewRootRef != newRef {
		t.Fatalf("expected new root ref %s, got %s", newRef, res.NewRootRef)
	}

	if e.NoopStores() != 1 {
		t.Fatalf("expected 1 noop store, got %d", e.NoopStores())
	}
}

func TestProcessErrorsOnNonDirectoryPathComponent(t *testing.T) {
	c := cache.New()
	root := rootRef(t, c, tree.Directory{"a": tree.NewFileVal(float64(1))})

	cm := &fence.Commit{Ops: []tree.Operation{tree.NewSet("a.b", tree.NewFileVal(float64(2)))}}
	e := commit.NewEngine(c, cm, root)

	res := e.Process(1)
	if res.Kind != commit.ResultError || res.Errno != kvserr.NotDirectory {
		t.Fatalf("expected NotDirectory error, got %v %v", res.Kind, res.Errno)
	}
}
