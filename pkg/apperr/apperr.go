// Package apperr defines the small closed set of error kinds the engine uses
// to translate internal failures into the HTTP status taxonomy and into the
// user-visible messages the ReAct loop feeds back to the model.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds from the design's error taxonomy.
type Kind string

const (
	Unauthenticated     Kind = "unauthenticated"
	Forbidden           Kind = "forbidden"
	NotFound            Kind = "not_found"
	InvalidInput        Kind = "invalid_input"
	Conflict            Kind = "conflict"
	Locked              Kind = "locked"
	RateLimited         Kind = "rate_limited"
	ProviderErrorKind    Kind = "provider_error"
	InsufficientCredits Kind = "insufficient_credits"
	Misconfigured       Kind = "misconfigured"
	Internal            Kind = "internal"
)

// Error wraps an underlying cause with a Kind and a user-safe message.
// Unknown-entity lookups always use NotFound regardless of the real reason,
// per the ownership invariant in the data model (never leak existence via
// a distinct Forbidden).
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind, so errors.Is
// matches two *Error values by kind and ignores their messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func New(kind Kind, format string, args ...any) *Error { return newf(kind, nil, format, args...) }

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return newf(kind, cause, format, args...)
}

// NotFoundf builds a NotFound error. Use this for every ownership failure
// as well as genuine absence — callers must not distinguish the two.
func NotFoundf(format string, args ...any) *Error { return New(NotFound, format, args...) }

func Forbiddenf(format string, args ...any) *Error { return New(Forbidden, format, args...) }

func InvalidInputf(format string, args ...any) *Error { return New(InvalidInput, format, args...) }

func Conflictf(format string, args ...any) *Error { return New(Conflict, format, args...) }

// Lockedf builds a Locked error for a resource held by a competing
// operation — distinct from Conflict so the HTTP layer can surface 423
// instead of a blanket 409.
func Lockedf(format string, args ...any) *Error { return New(Locked, format, args...) }

func Unauthenticatedf(format string, args ...any) *Error { return New(Unauthenticated, format, args...) }

func Misconfiguredf(format string, args ...any) *Error { return New(Misconfigured, format, args...) }

func Internalf(format string, args ...any) *Error { return New(Internal, format, args...) }

// ProviderError builds a ProviderError with its retryability flag, per
// the model router's contract: network errors and 5xx are retryable, 4xx
// other than rate-limit are not.
func ProviderError(retryable bool, cause error, format string, args ...any) *Error {
	e := newf(ProviderErrorKind, cause, format, args...)
	e.Retryable = retryable
	return e
}

func InsufficientCreditsf(format string, args ...any) *Error {
	return New(InsufficientCredits, format, args...)
}

// KindOf extracts the Kind from err, defaulting to Internal for unwrapped
// errors so that handler-boundary translation always has a status to map.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsRetryable reports whether a ProviderError is retryable; non-ProviderError
// kinds are never retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ProviderErrorKind && e.Retryable
	}
	return false
}
