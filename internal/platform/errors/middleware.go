package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Middleware converts errors returned by handlers into JSON responses.
// Echo's own HTTPErrors pass through untouched so its default handler keeps
// their status code. errorsTotal may be nil; when set it is incremented with
// the error type as its only label.
func Middleware(errorsTotal *prometheus.CounterVec) echo.MiddlewareFunc {
	record := func(t ErrorType) {
		if errorsTotal != nil {
			errorsTotal.WithLabelValues(string(t)).Inc()
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				record(FromHTTPError(httpErr).Type)
				return err
			}

			structuredErr := AsStructuredError(err)
			record(structuredErr.Type)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
		"remote_ip", c.RealIP(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	switch err.Type {
	case TypeValidation, TypeNotFound:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case TypeRateLimited, TypeUnavailable:
		slog.WarnContext(ctx, "Request refused", attrs...)
	default:
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

// FromHTTPError maps an echo.HTTPError onto the structured error types.
func FromHTTPError(httpErr *echo.HTTPError) *Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}

	var structured *Error
	switch httpErr.Code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		structured = ValidationError(message, httpErr.Internal)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		structured = NotFoundError(message)
	case http.StatusTooManyRequests:
		structured = RateLimitedError(message)
	case http.StatusServiceUnavailable:
		structured = UnavailableError(message, httpErr.Internal)
	default:
		structured = InternalError(message, httpErr.Internal)
	}
	if structured.Cause == nil {
		structured.Cause = httpErr.Internal
	}
	return structured
}
