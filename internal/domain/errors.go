package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure for the protocol layer.
type Kind string

const (
	KindUnknownModel  Kind = "UnknownModel"
	KindInvalidFilter Kind = "InvalidFilter"
	KindInvalidField  Kind = "InvalidField"
	KindMissingModel  Kind = "MissingModel"
	KindValidation    Kind = "ValidationError"
	KindForbidden     Kind = "Forbidden"
	KindNotFound      Kind = "NotFound"
	KindUnavailable   Kind = "Unavailable"
	KindConflict      Kind = "Conflict"
	KindInternal      Kind = "Internal"
)

// Retryable reports whether a caller may retry the request unchanged.
func (k Kind) Retryable() bool {
	return k == KindUnavailable
}

// Error is a classified failure. Message is safe to show to clients;
// Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a classified error with a formatted client message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it as the cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err. Deadline and cancellation errors are
// reported as Unavailable; anything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnavailable
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if KindOf(err) == KindUnavailable {
		return "storage unavailable, try again"
	}
	return "internal error"
}
