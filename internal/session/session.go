package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/broadcast"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/correlation"
	"golang.org/x/sync/errgroup"
)

const closeGracePeriod = time.Second

var (
	ErrTransportSend = errors.New("transport send failed")
	ErrTransportRecv = errors.New("transport receive failed")
	ErrNonTextFrame  = errors.New("non-text frame received")
	ErrAlreadyRun    = errors.New("session already run")

	errViewerClosed = errors.New("viewer closed connection")
)

// Config controls keepalive and write timeouts.
type Config struct {
	// PingInterval between keepalive pings. Zero disables pings and read deadlines.
	PingInterval time.Duration
	// PongWait is how long the connection may stay silent before reads fail.
	PongWait time.Duration
	// WriteWait bounds every write. Zero means no write deadline.
	WriteWait time.Duration
}

// DefaultConfig returns the keepalive settings used in production.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    5 * time.Second,
	}
}

// Option configures a Session.
type Option func(*Session)

func WithClock(clock clockwork.Clock) Option { return func(s *Session) { s.clock = clock } }

func WithConfig(cfg Config) Option { return func(s *Session) { s.cfg = cfg } }

func WithEncoder(enc Encoder) Option { return func(s *Session) { s.encode = enc } }

// WithMetrics records connection and delivery figures. Either argument may be nil.
func WithMetrics(ws *metrics.WebSocketMetrics, telemetry *metrics.TelemetryMetrics) Option {
	return func(s *Session) {
		s.wsMetrics = ws
		s.telemetryMetrics = telemetry
	}
}

// Session is the per-viewer loop. Create it with New and call Run exactly once.
type Session struct {
	id       string
	conn     Transport
	sub      *broadcast.Subscription
	commands domain.CommandSink
	encode   Encoder
	clock    clockwork.Clock
	cfg      Config

	wsMetrics        *metrics.WebSocketMetrics
	telemetryMetrics *metrics.TelemetryMetrics

	started atomic.Bool
	state   atomic.Int32
}

// New subscribes to hub immediately, so the viewer sees every sample published from this point on.
func New(conn Transport, hub *broadcast.Hub, commands domain.CommandSink, opts ...Option) *Session {
	s := &Session{
		id:       correlation.NewID(),
		conn:     conn,
		sub:      hub.Subscribe(),
		commands: commands,
		encode:   JSONEncoder,
		clock:    clockwork.NewRealClock(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the session in logs only.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Run serves the viewer until the connection ends, the hub closes or ctx is cancelled.
// It always leaves the connection closed and the subscription released.
// A nil error means the viewer or the caller ended the session.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer s.sub.Close()

	ctx = correlation.WithID(ctx, s.id)
	slog.DebugContext(ctx, "Viewer session started")
	if s.wsMetrics != nil {
		s.wsMetrics.ActiveConnections.Inc()
		defer s.wsMetrics.ActiveConnections.Dec()
	}

	s.configureKeepalive()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writePump(gctx) })
	g.Go(func() error { return s.readPump(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
		s.closeTransport()
		return nil
	})

	err := g.Wait()
	s.state.Store(int32(StateClosed))

	reason := closeReason(err)
	if s.wsMetrics != nil {
		s.wsMetrics.Disconnects.WithLabelValues(reason).Inc()
	}

	if err == nil || errors.Is(err, errViewerClosed) {
		slog.DebugContext(ctx, "Viewer session ended", "reason", reason)
		return nil
	}
	slog.InfoContext(ctx, "Viewer session ended", "reason", reason, "error", err)
	return err
}

func (s *Session) writePump(ctx context.Context) error {
	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := s.clock.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.Chan()
	}

	for {
		if res, ok := s.sub.TryRecv(); ok {
			if err := s.deliver(ctx, res); err != nil {
				return err
			}
			// Keep pings flowing while a backlog is being drained.
			select {
			case <-ctx.Done():
				return nil
			case <-ping:
				if err := s.ping(ctx); err != nil {
					return err
				}
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ping:
			if err := s.ping(ctx); err != nil {
				return err
			}
		case <-s.sub.Ready():
		}
	}
}

func (s *Session) deliver(ctx context.Context, res broadcast.Result) error {
	switch res.Kind {
	case broadcast.KindSample:
		data, err := s.encode(res.Sample)
		if err != nil {
			slog.DebugContext(ctx, "Skipping sample that failed to serialize", "error", err)
			return nil
		}
		s.setWriteDeadline()
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrTransportSend, err)
		}
		if s.telemetryMetrics != nil {
			s.telemetryMetrics.SamplesDelivered.Inc()
		}
		return nil
	case broadcast.KindLagged:
		slog.DebugContext(ctx, "Viewer lagging, skipped samples", "missed", res.Missed)
		return nil
	case broadcast.KindClosed:
		return domain.ErrHubClosed
	default:
		return nil
	}
}

func (s *Session) ping(ctx context.Context) error {
	s.setWriteDeadline()
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if s.wsMetrics != nil {
			s.wsMetrics.PingFailures.Inc()
		}
		return fmt.Errorf("%w: ping: %w", ErrTransportSend, err)
	}
	return nil
}

func (s *Session) readPump(ctx context.Context) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return errViewerClosed
			}
			return fmt.Errorf("%w: %w", ErrTransportRecv, err)
		}
		if messageType != websocket.TextMessage {
			return ErrNonTextFrame
		}

		// Time parked on a full funnel is not charged against the viewer.
		s.clearReadDeadline()
		s.forward(ctx, domain.Command(data))
		s.extendReadDeadline()
	}
}

// forward hands cmd to the funnel. Failures only drop the command; the session stays up.
func (s *Session) forward(ctx context.Context, cmd domain.Command) {
	err := s.commands.Send(ctx, cmd)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "Command queued", "command", string(cmd))
	case errors.Is(err, domain.ErrFunnelClosed):
		slog.DebugContext(ctx, "Radio link unavailable, command dropped", "command", string(cmd))
	case ctx.Err() != nil:
	default:
		slog.WarnContext(ctx, "Command not queued", "command", string(cmd), "error", err)
	}
}

func (s *Session) configureKeepalive() {
	if s.cfg.PingInterval <= 0 {
		return
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
}

func (s *Session) extendReadDeadline() {
	if s.cfg.PingInterval <= 0 || s.cfg.PongWait <= 0 {
		return
	}
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(s.cfg.PongWait))
}

func (s *Session) clearReadDeadline() {
	if s.cfg.PingInterval <= 0 || s.cfg.PongWait <= 0 {
		return
	}
	_ = s.conn.SetReadDeadline(time.Time{})
}

func (s *Session) setWriteDeadline() {
	if s.cfg.WriteWait <= 0 {
		return
	}
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(s.cfg.WriteWait))
}

// closeTransport sends a best-effort close frame and closes the connection.
// Both calls are safe alongside a pump that is still blocked on the connection.
func (s *Session) closeTransport() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(closeGracePeriod))
	_ = s.conn.Close()
}

func closeReason(err error) string {
	switch {
	case err == nil:
		return "cancelled"
	case errors.Is(err, errViewerClosed):
		return "viewer_closed"
	case errors.Is(err, domain.ErrHubClosed):
		return "hub_closed"
	case errors.Is(err, ErrNonTextFrame):
		return "non_text_frame"
	case errors.Is(err, ErrTransportSend):
		return "transport_send"
	case errors.Is(err, ErrTransportRecv):
		return "transport_recv"
	default:
		return "unknown"
	}
}
