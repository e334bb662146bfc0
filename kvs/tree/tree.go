// Package tree implements the in-memory directory tree model described in
// spec.md §3-4.3: directories, file values, symlinks, and references to
// content-addressed subtrees.
package tree

import (
	"errors"
	"strings"
)

// ErrInvalidDirent is returned when a Dirent has zero or more than one tag
// populated, violating the "exactly one tag" invariant.
var ErrInvalidDirent = errors.New("dirent must have exactly one tag populated")

// ErrInvalidName is returned when a directory name component contains a '.'
// separator, which is reserved for splitting keys.
var ErrInvalidName = errors.New("name must not contain '.'")

// Tag identifies which alternative of a Dirent is populated.
type Tag int

// The five dirent alternatives from spec.md §3. Exactly one is populated on
// any given Dirent.
const (
	FileVal Tag = iota
	FileRef
	DirVal
	DirRef
	LinkVal
)

func (t Tag) String() string {
	switch t {
	case FileVal:
		return "FILEVAL"
	case FileRef:
		return "FILEREF"
	case DirVal:
		return "DIRVAL"
	case DirRef:
		return "DIRREF"
	case LinkVal:
		return "LINKVAL"
	default:
		return "UNKNOWN"
	}
}

// Value is the JSON-like value stored inline by a FILEVAL dirent: nil,
// bool, float64, string, []interface{}, or map[string]interface{}, matching
// the shapes produced by encoding/json.
type Value = interface{}

// Directory is a mapping from name to directory entry. Names must not
// contain '.'; the '.' separator is reserved for splitting user-facing
// hierarchical keys into name components.
type Directory map[string]Dirent

// Dirent is a tagged directory entry. Exactly one field corresponding to
// Tag is meaningful; use the constructors below rather than building one by
// hand.
type Dirent struct {
	Tag     Tag
	FileVal Value
	FileRef string
	DirVal  Directory
	DirRef  string
	LinkVal string
}

// NewFileVal builds a FILEVAL dirent wrapping an inline value.
func NewFileVal(v Value) Dirent { return Dirent{Tag: FileVal, FileVal: v} }

// NewFileRef builds a FILEREF dirent pointing at a blob containing a value.
func NewFileRef(ref string) Dirent { return Dirent{Tag: FileRef, FileRef: ref} }

// NewDirVal builds a DIRVAL dirent wrapping an inline directory.
func NewDirVal(d Directory) Dirent { return Dirent{Tag: DirVal, DirVal: d} }

// NewDirRef builds a DIRREF dirent pointing at a blob containing a
// directory.
func NewDirRef(ref string) Dirent { return Dirent{Tag: DirRef, DirRef: ref} }

// NewLinkVal builds a LINKVAL dirent: a symbolic link to another key path,
// resolved relative to the current root when followed.
func NewLinkVal(key string) Dirent { return Dirent{Tag: LinkVal, LinkVal: key} }

// Validate checks the "exactly one tag populated" invariant. Constructors
// above always produce a valid Dirent; Validate exists for dirents decoded
// off the wire or out of the content store.
func (d Dirent) Validate() error {
	switch d.Tag {
	case FileVal, FileRef, DirVal, DirRef, LinkVal:
		return nil
	default:
		return ErrInvalidDirent
	}
}

// ValidateName reports whether a single directory name component is legal:
// non-empty and free of the '.' key separator.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, ".") {
		return ErrInvalidName
	}

	return nil
}

// SplitKey splits a user-facing hierarchical key on '.' into path
// components. An empty key splits to zero components (the root itself).
func SplitKey(key string) []string {
	if key == "" {
		return nil
	}

	return strings.Split(key, ".")
}

// JoinKey is the inverse of SplitKey.
func JoinKey(components []string) string {
	return strings.Join(components, ".")
}
