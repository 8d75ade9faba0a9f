// Package errors provides structured HTTP errors and the echo middleware
// that renders them.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorises an error for metrics and response formatting.
type ErrorType string

const (
	// TypeValidation is a malformed request (HTTP 400).
	TypeValidation ErrorType = "validation"
	// TypeNotFound is an unknown resource (HTTP 404).
	TypeNotFound ErrorType = "not_found"
	// TypeRateLimited is a client exceeding an admission limit (HTTP 429).
	TypeRateLimited ErrorType = "rate_limited"
	// TypeUnavailable means a relay component is shut down (HTTP 503).
	TypeUnavailable ErrorType = "unavailable"
	// TypeInternal is a server-side failure (HTTP 500).
	TypeInternal ErrorType = "internal"
)

// Error is a structured error with a type, a client-facing message and an
// optional cause that is logged but never sent to the client.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error type to a status code.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// ValidationError reports a malformed request. cause may be nil.
func ValidationError(message string, cause error) *Error {
	return newError(TypeValidation, message, cause)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

func RateLimitedError(message string) *Error {
	return newError(TypeRateLimited, message, nil)
}

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithField attaches a key/value pair that is both logged and returned to the client.
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError returns err as an *Error, wrapping anything
// unstructured as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
