// Package fserr provides the structured error kinds used across cosfs
// filesystem operations and their mapping helpers.
package fserr

import (
	"errors"
	"fmt"
)

// Kind classifies a filesystem-facing failure. The set is closed: every
// error that crosses the operation-handler boundary carries exactly one of
// these kinds, and the FUSE adapter translates kinds to errnos.
type Kind int

const (
	// KindUnknown is the zero value; errors without an explicit kind are
	// treated as internal failures.
	KindUnknown Kind = iota

	// KindNotFound covers unknown inode ids, unknown paths, and objects
	// absent from the backing store.
	KindNotFound

	// KindNotADirectory is returned when a directory operation targets a
	// file.
	KindNotADirectory

	// KindPermissionDenied covers write access on the read-only
	// filesystem and open/read on a directory.
	KindPermissionDenied

	// KindNoAttributeData is returned for extended-attribute queries on
	// unsupported attribute names.
	KindNoAttributeData

	// KindIOFailure covers local cache read/write failures and network
	// transport failures. These are not retried by the core.
	KindIOFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNotADirectory:
		return "not a directory"
	case KindPermissionDenied:
		return "permission denied"
	case KindNoAttributeData:
		return "no attribute data"
	case KindIOFailure:
		return "i/o failure"
	default:
		return "unknown"
	}
}

// Error is a structured filesystem error. Op names the operation that
// failed ("lookup", "read", ...), Path is the filesystem path or object key
// involved, and Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so that
// errors.Is(err, &Error{Kind: KindNotFound}) works across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// E constructs an *Error. The variadic tail accepts, in any order, a path
// string and a cause error; this mirrors how call sites naturally have one,
// both, or neither at hand.
func E(kind Kind, op string, args ...interface{}) *Error {
	e := &Error{Kind: kind, Op: op}
	for _, a := range args {
		switch v := a.(type) {
		case string:
			e.Path = v
		case error:
			e.Err = v
		}
	}
	return e
}

// KindOf extracts the kind from an error chain. Errors that carry no
// *Error anywhere in the chain report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err represents a missing id, path, or object.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsIOFailure reports whether err represents a transport or local storage
// failure.
func IsIOFailure(err error) bool {
	return KindOf(err) == KindIOFailure
}
