// Package lookup implements the re-entrant key resolution engine of
// spec.md §4.3: it walks a directory tree cached by kvs/cache, stalling on
// a missing blob rather than blocking, so a single-threaded reactor can
// resume it later with a refreshed epoch.
package lookup

import (
	"github.com/jrife/flock/kvs/cache"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/kvserr"
)

// Flags is the bit set spec.md §6 attaches to get/watch requests.
type Flags uint32

// The flag bits named in spec.md §6.
const (
	First Flags = 1 << iota
	Once
	ReadDir
	ReadLink
)

// MaxFollows bounds the number of symlinks a single lookup will follow
// before failing with Loop, per spec.md §4.3's "ELOOP at a fixed limit"
// (recommended value from spec.md §6).
var MaxFollows = 8

// Kind identifies which of spec.md §4.3's four result states a Result
// represents.
type Kind int

// The result states named in spec.md §4.3.
const (
	Found Kind = iota
	NotFound
	Error
	Stall
)

// Result is the outcome of a Handle.Run/Resume call.
type Result struct {
	Kind Kind

	// Value holds the resolved value, directory, or link-target string
	// when Kind == Found.
	Value interface{}
	// RootRef is the blob reference of the root directory actually used
	// to satisfy this lookup, echoed back per spec.md §4.6's get handler.
	RootRef string
	// Errno is populated when Kind == Error.
	Errno kvserr.Errno
	// MissingRef is populated when Kind == Stall: the caller must arrange
	// for this blob to be loaded into the cache and then call Resume.
	MissingRef string
}

// Handle resolves a single hierarchical key against a chosen root. It is
// re-entrant: Run returns a Stall result when it needs a blob that isn't
// yet cached, and Resume continues from the saved position once the
// caller has loaded it.
type Handle struct {
	cache   *cache.Cache
	key     string
	flags   Flags
	root    tree.Dirent
	rootRef string

	pos       tree.Dirent
	remaining []string
	follows   int
	done      bool
	result    Result
}

// New creates a lookup handle. root is the dirent to resolve key against:
// tree.NewDirRef(rootdir) for the authoritative root, or a caller-supplied
// override dirent (e.g. a get request's optional root-dirent) which may
// itself be inline (DIRVAL).
func New(c *cache.Cache, root tree.Dirent, key string, flags Flags) *Handle {
	rootRef := ""
	if root.Tag == tree.DirRef {
		rootRef = root.DirRef
	}

	return &Handle{
		cache:     c,
		key:       key,
		flags:     flags,
		root:      root,
		rootRef:   rootRef,
		pos:       root,
		remaining: tree.SplitKey(key),
	}
}

// Run performs (or resumes) the walk at the given epoch, returning as soon
// as it reaches a terminal result or must stall on a missing blob.
func (h *Handle) Run(epoch uint64) Result {
	if h.done {
		return h.result
	}

	for {
		var dir tree.Directory

		switch h.pos.Tag {
		case tree.DirRef:
			v, stalled := h.load(h.pos.DirRef, epoch)
			if stalled {
				return h.stall(h.pos.DirRef)
			}

			d, ok := v.(tree.Directory)
			if !ok {
				return h.finish(Result{Kind: Error, Errno: kvserr.Invalid})
			}

			dir = d
		case tree.DirVal:
			dir = h.pos.DirVal
		case tree.FileRef:
			v, stalled := h.load(h.pos.FileRef, epoch)
			if stalled {
				return h.stall(h.pos.FileRef)
			}

			return h.finish(Result{Kind: Found, Value: v, RootRef: h.rootRef})
		case tree.FileVal:
			return h.finish(Result{Kind: Found, Value: h.pos.FileVal, RootRef: h.rootRef})
		default:
			return h.finish(Result{Kind: Error, Errno: kvserr.Invalid})
		}

		res, cont := h.descend(dir)
		if cont {
			continue
		}

		return h.finish(res)
	}
}

// Resume is Run under the name spec.md §4.3 uses for re-entry after the
// caller has satisfied a stall; it refreshes the epoch as the spec
// requires ("re-entries must refresh the engine's current epoch").
func (h *Handle) Resume(epoch uint64) Result {
	return h.Run(epoch)
}

// descend resolves the next path component against dir. The bool return
// tells Run whether to loop again (true) or return the Result as final.
func (h *Handle) descend(dir tree.Directory) (Result, bool) {
	if len(h.remaining) == 0 {
		return h.finishAtDirectory(dir), false
	}

	name := h.remaining[0]
	rest := h.remaining[1:]

	entry, exists := dir[name]
	if !exists {
		return Result{Kind: NotFound}, false
	}

	if entry.Tag == tree.LinkVal {
		if len(rest) == 0 && h.flags&ReadLink != 0 {
			return Result{Kind: Found, Value: entry.LinkVal, RootRef: h.rootRef}, false
		}

		h.follows++
		if h.follows > MaxFollows {
			return Result{Kind: Error, Errno: kvserr.Loop}, false
		}

		h.pos = h.root
		h.remaining = tree.SplitKey(entry.LinkVal)

		return Result{}, true
	}

	if entry.Tag == tree.FileVal || entry.Tag == tree.FileRef {
		if len(rest) != 0 {
			return Result{Kind: Error, Errno: kvserr.NotDirectory}, false
		}

		if h.flags&ReadDir != 0 {
			return Result{Kind: Error, Errno: kvserr.NotDirectory}, false
		}

		if h.flags&ReadLink != 0 {
			return Result{Kind: Error, Errno: kvserr.Invalid}, false
		}

		h.pos = entry
		h.remaining = rest

		return Result{}, true
	}

	// DIRVAL / DIRREF: descend into it.
	h.pos = entry
	h.remaining = rest

	return Result{}, true
}

func (h *Handle) finishAtDirectory(dir tree.Directory) Result {
	if h.flags&ReadLink != 0 {
		return Result{Kind: Error, Errno: kvserr.Invalid}
	}

	if h.flags&ReadDir != 0 {
		return Result{Kind: Found, Value: dir, RootRef: h.rootRef}
	}

	return Result{Kind: Found, Value: directoryToValue(dir), RootRef: h.rootRef}
}

func (h *Handle) load(ref string, epoch uint64) (interface{}, bool) {
	e, ok := h.cache.Lookup(ref, epoch)
	if !ok || !e.Valid() {
		return nil, true
	}

	v, _ := e.Value()

	return v, false
}

func (h *Handle) stall(ref string) Result {
	return Result{Kind: Stall, MissingRef: ref}
}

func (h *Handle) finish(res Result) Result {
	if res.RootRef == "" {
		res.RootRef = h.rootRef
	}

	h.done = true
	h.result = res

	return res
}

// directoryToValue renders a directory as a generic JSON-like value for a
// plain (non-READDIR) get: inline entries resolve to their contents, while
// references are rendered as single-key objects mirroring the dirent wire
// shape, since resolving them would require additional loads a plain get
// does not perform.
func directoryToValue(dir tree.Directory) map[string]interface{} {
	out := make(map[string]interface{}, len(dir))

	for name, entry := range dir {
		switch entry.Tag {
		case tree.FileVal:
			out[name] = entry.FileVal
		case tree.FileRef:
			out[name] = map[string]interface{}{"FILEREF": entry.FileRef}
		case tree.DirVal:
			out[name] = directoryToValue(entry.DirVal)
		case tree.DirRef:
			out[name] = map[string]interface{}{"DIRREF": entry.DirRef}
		case tree.LinkVal:
			out[name] = map[string]interface{}{"LINKVAL": entry.LinkVal}
		}
	}

	return out
}
