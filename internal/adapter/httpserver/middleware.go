package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/correlation"
)

const requestIDHeader = echo.HeaderXRequestID

// correlationMiddleware tags the request context with the caller's request id,
// or a fresh one, and echoes it back in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = correlation.NewID()
		}

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(requestIDHeader, id)
		return next(c)
	}
}
