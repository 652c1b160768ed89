// Package domainerrors defines coded domain errors for callers of the core
// services. Codes classify who is at fault and whether a retry makes sense;
// the HTTP layer maps them to status codes in one place (pkg/platform/httputil).
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	// CodeBadRequest marks caller mistakes: empty product type, quantity <= 0,
	// unknown batch referenced by a shipment. Not retryable.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks lookups for identifiers that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks unique-constraint style collisions, e.g. a batch
	// number already registered.
	CodeConflict Code = "conflict"

	// CodeIllegalTransition marks custody state machine violations. The
	// entity's status is unchanged when this is returned.
	CodeIllegalTransition Code = "illegal_transition"

	// CodeMalformedCode marks scan input that does not match the code grammar.
	// User-visible, not retryable.
	CodeMalformedCode Code = "malformed_code"

	// CodeAnchorUnavailable marks a failure to reach the external hash anchor
	// store. Retryable with backoff; issuance never partially commits on it.
	CodeAnchorUnavailable Code = "anchor_unavailable"

	// CodeUnavailable marks a feature the deployment is not configured for,
	// e.g. background jobs without a queue.
	CodeUnavailable Code = "unavailable"

	// CodeInternal is the fallback for unexpected infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Services return it so transports and callers
// can branch on Code without string matching.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for anything
// that is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
