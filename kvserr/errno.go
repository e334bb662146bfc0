// Package kvserr defines the error kinds of spec.md §7 and the sentinel-
// wrapping idiom used throughout the kvs core, grounded on
// storage/mvcc/errors.go's wrapError helper.
package kvserr

import "errors"

// Errno identifies one of spec.md §7's error kinds. It is carried on
// kvs.error events and in the Errno field of the transport's response
// messages so a replica or client can
// distinguish protocol errors from resolution errors from transient I/O
// failures.
type Errno int

// The error kinds named in spec.md §7.
const (
	// Ok is the zero value: no error.
	Ok Errno = iota
	// Protocol indicates a malformed or undecodable message.
	Protocol
	// NotFound indicates the key is missing at the resolution terminal.
	NotFound
	// NotDirectory indicates the terminal entry is not a directory but
	// READDIR was requested, or more path components remained after it.
	NotDirectory
	// IsDirectory indicates the terminal entry is a directory but a plain
	// value or link target was requested.
	IsDirectory
	// Loop indicates the symlink follow limit was exceeded.
	Loop
	// Invalid indicates a bad dirent, bad reference string, or bad
	// arguments.
	Invalid
	// NoEntity indicates a commit operation referenced a blob that is
	// missing and that the content store also could not supply.
	NoEntity
	// Transient indicates a content-store I/O error.
	Transient
)

func (e Errno) String() string {
	switch e {
	case Ok:
		return "ok"
	case Protocol:
		return "protocol"
	case NotFound:
		return "not-found"
	case NotDirectory:
		return "not-directory"
	case IsDirectory:
		return "is-directory"
	case Loop:
		return "loop"
	case Invalid:
		return "invalid"
	case NoEntity:
		return "no-entity"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error adapts an Errno to the error interface so it can be returned and
// compared directly with errors.Is against the sentinels below.
type Error struct {
	Errno Errno
	msg   string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}

	return e.Errno.String()
}

// New builds an *Error carrying errno and an explanatory message.
func New(errno Errno, msg string) *Error {
	return &Error{Errno: errno, msg: msg}
}

// Sentinels for the common no-message case, usable directly with
// errors.Is.
var (
	ErrNotFound     = New(NotFound, "")
	ErrNotDirectory = New(NotDirectory, "")
	ErrIsDirectory  = New(IsDirectory, "")
	ErrLoop         = New(Loop, "")
	ErrInvalid      = New(Invalid, "")
	ErrNoEntity     = New(NoEntity, "")
	ErrTransient    = New(Transient, "")
	ErrProtocol     = New(Protocol, "")
)

// Is implements errors.Is comparison by Errno, so a wrapped *Error with a
// custom message still matches its sentinel via errors.Is(err,
// kvserr.ErrNotFound).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Errno == other.Errno
}

// FromError extracts the Errno carried by err, or Transient if err is a
// plain, unclassified error (e.g. from the content store), matching
// spec.md §7's rule that content-store I/O errors surface as transient.
func FromError(err error) Errno {
	if err == nil {
		return Ok
	}

	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Errno
	}

	return Transient
}
