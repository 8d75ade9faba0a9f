package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_http_errors_total"}, []string{"type"})
}

func run(t *testing.T, counter *prometheus.CounterVec, h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/mock-ingest", nil)
	rec := httptest.NewRecorder()
	err := Middleware(counter)(h)(e.NewContext(req, rec))
	return rec, err
}

func TestMiddleware_StructuredError(t *testing.T) {
	counter := newCounter()

	rec, err := run(t, counter, func(echo.Context) error {
		return ValidationError("malformed telemetry", errors.New("unexpected EOF"))
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "malformed telemetry", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.NotContains(t, rec.Body.String(), "unexpected EOF")
	assert.InDelta(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("validation")), 0)
}

func TestMiddleware_PlainErrorBecomesInternal(t *testing.T) {
	counter := newCounter()

	rec, err := run(t, counter, func(echo.Context) error {
		return errors.New("something broke")
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "something broke")
	assert.InDelta(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("internal")), 0)
}

func TestMiddleware_EchoHTTPErrorPassesThrough(t *testing.T) {
	counter := newCounter()
	httpErr := echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")

	rec, err := run(t, counter, func(echo.Context) error { return httpErr })

	assert.Same(t, httpErr, err)
	assert.Equal(t, 0, rec.Body.Len())
	assert.InDelta(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("rate_limited")), 0)
}

func TestMiddleware_NilCounterAndSuccess(t *testing.T) {
	rec, err := run(t, nil, func(c echo.Context) error {
		return c.String(http.StatusOK, "Data Received")
	})
	require.NoError(t, err)
	assert.Equal(t, "Data Received", rec.Body.String())

	rec, err = run(t, nil, func(echo.Context) error { return UnavailableError("hub closed", nil) })
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFromHTTPError(t *testing.T) {
	tests := []struct {
		code     int
		message  any
		wantType ErrorType
		wantMsg  string
	}{
		{http.StatusBadRequest, "bad", TypeValidation, "bad"},
		{http.StatusUnsupportedMediaType, nil, TypeValidation, "Unsupported Media Type"},
		{http.StatusNotFound, "Not Found", TypeNotFound, "Not Found"},
		{http.StatusMethodNotAllowed, nil, TypeNotFound, "Method Not Allowed"},
		{http.StatusTooManyRequests, "slow", TypeRateLimited, "slow"},
		{http.StatusServiceUnavailable, nil, TypeUnavailable, "Service Unavailable"},
		{http.StatusTeapot, 42, TypeInternal, "I'm a teapot"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			got := FromHTTPError(&echo.HTTPError{Code: tt.code, Message: tt.message})
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestFromHTTPError_KeepsInternalCause(t *testing.T) {
	cause := errors.New("route table miss")
	got := FromHTTPError(&echo.HTTPError{Code: http.StatusNotFound, Message: "Not Found", Internal: cause})
	assert.Equal(t, TypeNotFound, got.Type)
	assert.ErrorIs(t, got, cause)
}
