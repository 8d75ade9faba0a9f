package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleDashboard(c echo.Context) error {
	if err := c.HTMLBlob(http.StatusOK, s.indexPage); err != nil {
		return fmt.Errorf("failed to send dashboard page: %w", err)
	}
	return nil
}
