// Package apperr defines the core's error taxonomy (spec.md §7).
//
// Service methods never use exceptional control flow to report a rule
// violation; they return a typed error (or a structured failure result)
// that handlers map to an HTTP status with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the taxonomy spec'd in §7.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvariant    Kind = "invariant"
	KindUnauthorized Kind = "unauthorized"
	KindTimeout      Kind = "timeout"
	KindTransient    Kind = "transient"
	KindInternal     Kind = "internal"
)

// Error is the core's structured error type. Wrap a cause with New so
// handlers can recover both the kind and the original error via errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, apperr.NotFound) style sentinel comparisons by
// kind rather than by identity.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFound(message string) *Error     { return New(KindNotFound, message, nil) }
func Conflict(message string) *Error     { return New(KindConflict, message, nil) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message, nil) }
func Timeout(message string) *Error      { return New(KindTimeout, message, nil) }
func Transient(message string, cause error) *Error {
	return New(KindTransient, message, cause)
}
func Internal(message string, cause error) *Error {
	return New(KindInternal, message, cause)
}

// Sentinel values for errors.Is comparisons against a bare kind.
var (
	NotFoundKind     = &Error{Kind: KindNotFound}
	ConflictKind     = &Error{Kind: KindConflict}
	InvariantKind    = &Error{Kind: KindInvariant}
	UnauthorizedKind = &Error{Kind: KindUnauthorized}
	TimeoutKind      = &Error{Kind: KindTimeout}
	TransientKind    = &Error{Kind: KindTransient}
	InternalKind     = &Error{Kind: KindInternal}
)

// KindOf extracts the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
