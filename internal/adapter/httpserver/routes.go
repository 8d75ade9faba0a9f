package httpserver

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	apperrors "github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/errors"
)

const (
	pageRatePerSecond = 5
	pageBurst         = 20
	maxIngestBody     = "64K"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
		s.echo.Use(apperrors.Middleware(s.httpMetrics.Errors))
	} else {
		s.echo.Use(apperrors.Middleware(nil))
	}
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	s.echo.GET("/", s.handleDashboard, newRateLimiter(pageRatePerSecond, pageBurst))
	s.echo.GET("/ws", echo.WrapHandler(s.viewerHandler))
	s.echo.POST("/mock-ingest", s.handleIngest, middleware.BodyLimit(maxIngestBody))

	s.registerHealthRoutes()

	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
}

// setupRequestLoggerMiddleware logs one line per request. Probes, scrapes
// and ingest are high-frequency and only logged at debug.
func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}

			ctx := c.Request().Context()
			if isNoisyPath(c.Path()) {
				slog.DebugContext(ctx, "Request", attrs...)
				return nil
			}
			slog.InfoContext(ctx, "Request", attrs...)
			return nil
		},
	})
}

func isNoisyPath(path string) bool {
	return path == "/metrics" || path == "/mock-ingest" || strings.HasPrefix(path, "/health/")
}
