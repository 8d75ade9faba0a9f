package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/broadcast"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/session"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 4096
	// commands are short words; anything bigger is not a dashboard
	maxMessageSize   = 4096
	handshakeTimeout = 10 * time.Second
)

// ErrShuttingDown is returned to upgrades that arrive after Shutdown.
var ErrShuttingDown = errors.New("viewer handler shutting down")

type HandlerConfig struct {
	AppURL        string
	IsDevelopment bool
	Session       session.Config
}

type HandlerOption func(*Handler)

func WithMetrics(ws *metrics.WebSocketMetrics, telemetry *metrics.TelemetryMetrics) HandlerOption {
	return func(h *Handler) {
		h.wsMetrics = ws
		h.telemetryMetrics = telemetry
	}
}

// WithSessionOptions appends options applied to every session, after the defaults.
func WithSessionOptions(opts ...session.Option) HandlerOption {
	return func(h *Handler) { h.sessionOpts = append(h.sessionOpts, opts...) }
}

// Handler upgrades viewer requests and runs a session for each. Sessions
// outlive the request goroutine's HTTP lifecycle, so Shutdown is the only way
// to stop them short of the viewer leaving or the hub closing.
type Handler struct {
	hub      *broadcast.Hub
	commands domain.CommandSink
	limits   *Limits
	upgrader websocket.Upgrader
	cfg      HandlerConfig

	wsMetrics        *metrics.WebSocketMetrics
	telemetryMetrics *metrics.TelemetryMetrics
	sessionOpts      []session.Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewHandler(hub *broadcast.Hub, commands domain.CommandSink, limits *Limits, cfg HandlerConfig, opts ...HandlerOption) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		hub:      hub,
		commands: commands,
		limits:   limits,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   readBufferSize,
		WriteBufferSize:  writeBufferSize,
		HandshakeTimeout: handshakeTimeout,
		CheckOrigin:      NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !h.track() {
		http.Error(w, ErrShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	if h.limits != nil {
		reason, ok := h.limits.Acquire(ip)
		if !ok {
			if h.wsMetrics != nil {
				h.wsMetrics.RejectedUpgrades.WithLabelValues(string(reason)).Inc()
			}
			slog.WarnContext(r.Context(), "Viewer rejected", "remote_ip", ip, "limit", reason)
			http.Error(w, fmt.Sprintf("viewer limit reached (%s)", reason), http.StatusTooManyRequests)
			return
		}
		defer h.limits.Release(ip)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		if h.wsMetrics != nil {
			h.wsMetrics.RejectedUpgrades.WithLabelValues("handshake").Inc()
		}
		slog.DebugContext(r.Context(), "Viewer upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	opts := []session.Option{
		session.WithConfig(h.cfg.Session),
		session.WithMetrics(h.wsMetrics, h.telemetryMetrics),
	}
	opts = append(opts, h.sessionOpts...)
	s := session.New(conn, h.hub, h.commands, opts...)

	slog.InfoContext(r.Context(), "Viewer connected", "remote_ip", ip, "session_id", s.ID(), "viewers", h.hub.Subscribers())
	if err := s.Run(h.ctx); err != nil {
		slog.DebugContext(r.Context(), "Viewer session failed", "session_id", s.ID(), "error", err)
	}
	slog.InfoContext(r.Context(), "Viewer disconnected", "remote_ip", ip, "session_id", s.ID())
}

func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

// Shutdown refuses new viewers, ends every running session and waits for
// them to finish or for ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for viewer sessions: %w", ctx.Err())
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
