package retrieval

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classifications used across the
// retrieval pipeline. Every error that crosses a component boundary is
// tagged with exactly one Kind.
type Kind uint8

// Failure classifications, ordered roughly by severity.
const (
	// KindUnknown marks errors that have not been classified yet.
	KindUnknown Kind = iota
	// KindInvalidQuery is a malformed query; surfaced immediately, never retried.
	KindInvalidQuery
	// KindChallengeDetected is an anti-automation interstitial; retried like
	// KindRetryable but logged on a distinct channel.
	KindChallengeDetected
	// KindRetryable covers transient failures: empty result pages, network
	// hiccups, timeouts.
	KindRetryable
	// KindFatal terminates the run: retry budget exhausted or an
	// unrecoverable failure.
	KindFatal
)

// String implements fmt.Stringer for log fields.
func (k Kind) String() string {
	switch k {
	case KindInvalidQuery:
		return "invalid_query"
	case KindChallengeDetected:
		return "challenge_detected"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the tagged failure type produced by the pipeline. Reason is a
// short human-readable description; Err optionally wraps the underlying
// cause for errors.Is/As chains.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a tagged error without an underlying cause.
func NewError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// WrapError tags an underlying error with a classification and reason.
func WrapError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// InvalidQueryf builds a KindInvalidQuery error from a format string.
func InvalidQueryf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidQuery, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from err, or KindUnknown when err is
// not tagged.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnknown
}
