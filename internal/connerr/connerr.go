// Package connerr defines the two-variant error classification used across
// the connection lifecycle's receive paths: a transient "try again" that
// callers should loop past without tearing anything down, versus every
// other failure, which ends the current connection attempt.
package connerr

import "errors"

// Kind distinguishes a transient receive timeout from a terminal failure.
type Kind int

const (
	KindOther Kind = iota
	KindTryAgain
)

// Error wraps an underlying cause with a Kind a caller can switch on without
// string-matching or sentinel comparison against a timeout type.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		if e.Kind == KindTryAgain {
			return "try again"
		}
		return "connection error"
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// TryAgain wraps cause as a transient error (e.g. a read timeout on a
// socket that is otherwise healthy).
func TryAgain(cause error) error {
	return &Error{Kind: KindTryAgain, Cause: cause}
}

// Other wraps cause as a terminal error.
func Other(cause error) error {
	return &Error{Kind: KindOther, Cause: cause}
}

// IsTryAgain reports whether err (or anything it wraps) is a transient
// connerr.Error.
func IsTryAgain(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTryAgain
	}
	return false
}
