// Package httpserver serves the dashboard, the viewer upgrade, telemetry
// ingest and the operational endpoints.
package httpserver

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/config"
	"github.com/sofiavldd2005/gs-dashboard-experiment/web"
)

// telemetrySink is the ingest side of the broadcast hub.
type telemetrySink interface {
	domain.TelemetryPublisher
	Closed() bool
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	telemetry     telemetrySink
	viewerHandler http.Handler
	registry      *prometheus.Registry
	httpMetrics   *metrics.HTTPMetrics

	indexPage    []byte
	healthChecks []HealthCheck
	startTime    time.Time
}

type Option func(*Server)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

// WithMetrics serves reg on /metrics and records request metrics on it.
func WithMetrics(reg *prometheus.Registry, httpMetrics *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = httpMetrics
	}
}

func NewServer(cfg *config.Config, telemetry telemetrySink, viewerHandler http.Handler, opts ...Option) (*Server, error) {
	indexPage, err := fs.ReadFile(web.StaticFiles, "static/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard page: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:          e,
		config:        cfg,
		clock:         clockwork.NewRealClock(),
		telemetry:     telemetry,
		viewerHandler: viewerHandler,
		indexPage:     indexPage,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Upgraded
// viewer connections are hijacked and must be ended by the viewer handler.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
