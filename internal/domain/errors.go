package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure as a label, not a type hierarchy.
// Handlers map a Kind to an HTTP status once, in one place, instead of
// re-deriving a status per call site.
type ErrorKind string

const (
	KindClientInput ErrorKind = "client_input"
	KindAuth        ErrorKind = "auth"
	KindPolicy      ErrorKind = "policy"
	KindUpstream    ErrorKind = "upstream"
	KindConflict    ErrorKind = "conflict"
	KindInternal    ErrorKind = "internal"
)

// AppError is the only error type that ever reaches a response writer.
// Message is always safe to serialize verbatim; Cause is for logs only.
type AppError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	// StatusOverride, when non-zero, wins over Kind's default status.
	// Used for the handful of cases pinned to a specific code regardless
	// of kind: 502 vs 504 upstream outcomes, 404 for missing templates,
	// 429 for rate limiting.
	StatusOverride int
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func NewAppError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func ClientInputErr(format string, args ...any) *AppError {
	return &AppError{Kind: KindClientInput, Message: fmt.Sprintf(format, args...)}
}

func AuthErr(format string, args ...any) *AppError {
	return &AppError{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

func PolicyErr(format string, args ...any) *AppError {
	return &AppError{Kind: KindPolicy, Message: fmt.Sprintf(format, args...)}
}

func UpstreamErr(status int, format string, args ...any) *AppError {
	return &AppError{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), StatusOverride: status}
}

func NotFoundErr(format string, args ...any) *AppError {
	return &AppError{Kind: KindClientInput, Message: fmt.Sprintf(format, args...), StatusOverride: http.StatusNotFound}
}

func RateLimitedErr(format string, args ...any) *AppError {
	return &AppError{Kind: KindPolicy, Message: fmt.Sprintf(format, args...), StatusOverride: http.StatusTooManyRequests}
}

func ConflictErr(format string, args ...any) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InternalErr(cause error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// StatusCode maps a Kind to its HTTP status. PolicyError is ambiguous
// by design, 403 or 400 depending on the specific cause, so callers
// that need the 400 variant construct the AppError with StatusOverride set.
func (e *AppError) StatusCode() int {
	if e.StatusOverride != 0 {
		return e.StatusOverride
	}
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindPolicy:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError unwraps err into an *AppError, synthesizing an InternalError
// for anything that wasn't already classified.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return InternalErr(err)
}
