// Package errkind provides kind-tagged, wrapped errors for the partitioned
// table core. It mirrors the handful of Status codes the original C++
// implementation raised (eIOError, kRuntimeError, kIllegalStateError):
// callers branch on Kind rather than on error string contents.
package errkind

import (
	"github.com/getlantern/errors"
)

// Kind classifies an error the way the original Status codes did.
type Kind string

const (
	// IO is raised for metadata decode truncation, bad version, or any
	// other failure reading on-disk data (metadata files, CSTables).
	// metadata.File.Encode returns write errors as they are, without a
	// Kind.
	IO Kind = "IO_ERROR"
	// Runtime is raised for transient, retryable failures: a non-201
	// replication response or a transport error. common.EncodePartitionKey
	// returns its parse error for a malformed key without a Kind.
	Runtime Kind = "RUNTIME_ERROR"
	// IllegalState is raised for programmer errors that should never
	// happen in a correct caller, e.g. replicating a partition to itself.
	IllegalState Kind = "ILLEGAL_STATE"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

// New builds a Kind-tagged error with a printf-style message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, err: errors.New(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving its message.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ke, ok := err.(*Error); ok {
			if ke.Kind == kind {
				return true
			}
			err = ke.err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IOErrorf is a convenience constructor for Kind IO.
func IOErrorf(format string, args ...interface{}) error {
	return New(IO, format, args...)
}

// RuntimeErrorf is a convenience constructor for Kind Runtime.
func RuntimeErrorf(format string, args ...interface{}) error {
	return New(Runtime, format, args...)
}

// IllegalStatef is a convenience constructor for Kind IllegalState, and
// panics immediately since illegal state is a programmer error that
// should fail fast rather than propagate.
func IllegalStatef(format string, args ...interface{}) error {
	err := New(IllegalState, format, args...)
	panic(err)
}
