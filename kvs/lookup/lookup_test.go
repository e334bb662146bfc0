package lookup_test

import (
	"testing"

	"github.com/jrife/flock/kvs/cache"
	"github.com/jrife/flock/kvs/lookup"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvserr"
)

func TestFoundInlineValue(t *testing.T) {
	c := cache.New()

	root := tree.Directory{
		"a": tree.NewDirVal(tree.Directory{
			"b": tree.NewFileVal(float64(42)),
		}),
	}

	h := lookup.New(c, tree.NewDirVal(root), "a.b", 0)
	res := h.Run(1)

	if res.Kind != lookup.Found {
		t.Fatalf("expected Found, got %v (errno %v)", res.Kind, res.Errno)
	}

	if res.Value.(float64) != 42 {
		t.Fatalf("expected 42, got %v", res.Value)
	}
}

func TestStallThenResume(t *testing.T) {
	c := cache.New()

	sub := tree.Directory{"b": tree.NewFileVal(float64(7))}
	subBytes, err := tree.EncodeDirectory(sub)
	if err != nil {
		t.Fatal(err)
	}
	ref := tree.HashOf(subBytes)

	root := tree.Directory{"a": tree.NewDirRef(ref)}

	h := lookup.New(c, tree.NewDirVal(root), "a.b", 0)
	res := h.Run(1)

	if res.Kind != lookup.Stall {
		t.Fatalf("expected Stall, got %v", res.Kind)
	}

	if res.MissingRef != ref {
		t.Fatalf("expected missing ref %s, got %s", ref, res.MissingRef)
	}

	entry := cache.NewValidEntry(1, sub)
	if err := c.Insert(ref, entry); err != nil {
		t.Fatal(err)
	}

	res = h.Resume(2)

	if res.Kind != lookup.Found {
		t.Fatalf("expected Found after resume, got %v", res.Kind)
	}

	if res.Value.(float64) != 7 {
		t.Fatalf("expected 7, got %v", res.Value)
	}
}

func TestNotFound(t *testing.T) {
	c := cache.New()

	h := lookup.New(c, tree.NewDirVal(tree.Directory{}), "missing", 0)
	res := h.Run(1)

	if res.Kind != lookup.NotFound {
		t.Fatalf("expected NotFound, got %v", res.Kind)
	}
}

func TestSymlinkFollow(t *testing.T) {
	c := cache.New()

	root := tree.Directory{
		"link": tree.NewLinkVal("a.b"),
		"a":    tree.NewDirVal(tree.Directory{"b": tree.NewFileVal(float64(7))}),
	}

	h := lookup.New(c, tree.NewDirVal(root), "link", 0)
	res := h.Run(1)

	if res.Kind != lookup.Found || res.Value.(float64) != 7 {
		t.Fatalf("expected Found(7), got %v %v", res.Kind, res.Value)
	}
}

func TestSymlinkLoopDetected(t *testing.T) {
	c := cache.New()

	root := tree.Directory{
		"loop": tree.NewLinkVal("loop"),
	}

	h := lookup.New(c, tree.NewDirVal(root), "loop", 0)
	res := h.Run(1)

	if res.Kind != lookup.Error || res.Errno != kvserr.Loop {
		t.Fatalf("expected Loop error, got %v %v", res.Kind, res.Errno)
	}
}

func TestNotDirectoryOnExtraComponents(t *testing.T) {
	c := cache.New()

	root := tree.Directory{"a": tree.NewFileVal(float64(1))}

	h := lookup.New(c, tree.NewDirVal(root), "a.b", 0)
	res := h.Run(1)

	if res.Kind != lookup.Error || res.Errno != kvserr.NotDirectory {
		t.Fatalf("expected NotDirectory, got %v %v", res.Kind, res.Errno)
	}
}

func TestReadDirReturnsDirectory(t *testing.T) {
	c := cache.New()

	root := tree.Directory{
		"a": tree.NewDirVal(tree.Directory{"b": tree.NewFileVal(float64(42))}),
	}

	h := lookup.New(c, tree.NewDirVal(root), "a", lookup.ReadDir)
	res := h.Run(1)

	if res.Kind != lookup.Found {
		t.Fatalf("expected Found, got %v", res.Kind)
	}

	dir, ok := res.Value.(tree.Directory)
	if !ok {
		t.Fatalf("expected tree.Directory value, got %T", res.Value)
	}

	if _, ok := dir["b"]; !ok {
		t.Fatal("expected directory to contain key 'b'")
	}
}
