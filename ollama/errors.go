package ollama

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed generate call for logging and retry decisions.
type ErrorKind int

const (
	// KindUnavailable indicates the server could not be reached or returned a
	// server-side error. Safe to retry once when the retry policy allows it.
	KindUnavailable ErrorKind = iota
	// KindTimeout indicates the per-call deadline elapsed. Never retried: the
	// model may still be generating and a retry would double the cost.
	KindTimeout
	// KindRejected indicates the request or the completion itself was bad
	// (4xx, malformed body, empty output). Retrying would repeat the failure.
	KindRejected
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error wraps a generate failure with its classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ollama: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from err, defaulting to unavailable for
// errors that did not originate in this package.
func KindOf(err error) ErrorKind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnavailable
}

// IsRetryable reports whether a single bounded retry is permitted for err:
// only connection-class failures qualify, never timeouts or rejected output.
func IsRetryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
