// Package apperr defines the error kinds shared by the order, payment and OTP flows.
// Callers wrap a kind with context using fmt.Errorf("%w: ...") and the HTTP layer maps
// the kind back to a status code once, at the edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation signals bad or missing input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an unknown order or challenge.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate or ambiguous payment application.
	ErrConflict = errors.New("conflict")
	// ErrExpired signals the target passed its deadline.
	ErrExpired = errors.New("expired")
	// ErrSignature signals a webhook body whose signature does not verify.
	ErrSignature = errors.New("invalid signature")
	// ErrUnavailable signals a gateway or notifier failure.
	ErrUnavailable = errors.New("upstream unavailable")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Expired(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExpired, fmt.Sprintf(format, args...))
}

// Unavailable wraps an upstream failure so both the kind and the cause stay inspectable.
func Unavailable(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, fmt.Sprintf(format, args...), cause)
}

// Status maps an error to its HTTP status and a stable machine-readable code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
