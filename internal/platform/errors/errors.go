package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind string

const (
	KindConfig       Kind = "config"
	KindBootstrap    Kind = "bootstrap"
	KindStorage      Kind = "storage"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindCostExceeded Kind = "cost_exceeded"
	KindRateLimit    Kind = "rate_limit"
	KindProvider     Kind = "provider"
	KindCacheMiss    Kind = "cache_miss"
	KindUnknown      Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error

	// RetryAfter is populated for rate_limit errors so transports can emit
	// a Retry-After header. Zero means unknown.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// RateLimited builds a rate_limit error carrying the time until the current
// window resets.
func RateLimited(op, message string, retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Op:         op,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf returns the kind of the outermost typed error, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the HTTP surface responds with.
// Cache misses only escape the domain layer after read-through fallback has
// already failed, so they surface as not-found.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindCostExceeded:
		return http.StatusBadRequest
	case KindNotFound, KindCacheMiss:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
