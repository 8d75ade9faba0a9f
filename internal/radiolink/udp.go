package radiolink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/retry"
)

const (
	breakerFailureThreshold = 5
	breakerDelay            = 10 * time.Second
)

var ErrBreakerOpen = errors.New("radio link circuit breaker open")

// DefaultRetryPolicy retries a failed datagram twice with a short backoff.
// Commands are operator actions; anything slower than this is better reported as failed.
func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
	}
}

type UDPOption func(*UDPTransmitter)

func WithRetryPolicy(p retry.Policy) UDPOption {
	return func(t *UDPTransmitter) { t.policy = p }
}

func WithBreakerDelay(d time.Duration) UDPOption {
	return func(t *UDPTransmitter) { t.breakerDelay = d }
}

// WithClock drives the waits between retries.
func WithClock(clock clockwork.Clock) UDPOption {
	return func(t *UDPTransmitter) { t.clock = clock }
}

func WithBreakerMetrics(m *metrics.CommandMetrics) UDPOption {
	return func(t *UDPTransmitter) { t.metrics = m }
}

// UDPTransmitter sends each command as one datagram to the radio modem.
// After breakerFailureThreshold consecutive failures the circuit opens and
// commands are rejected with circuitbreaker.ErrOpen until breakerDelay has passed.
type UDPTransmitter struct {
	conn         net.Conn
	timeout      time.Duration
	policy       retry.Policy
	breaker      circuitbreaker.CircuitBreaker[any]
	breakerDelay time.Duration
	clock        clockwork.Clock
	metrics      *metrics.CommandMetrics

	// serialises writes so a retry cannot overtake the next command
	mu sync.Mutex
}

// DialUDP connects to addr. UDP dialing does not contact the peer, so an
// unreachable modem only shows up as write errors later.
func DialUDP(ctx context.Context, addr string, timeout time.Duration, opts ...UDPOption) (*UDPTransmitter, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial radio link %s: %w", addr, err)
	}

	t := &UDPTransmitter{
		conn:         conn,
		timeout:      timeout,
		policy:       DefaultRetryPolicy(),
		breakerDelay: breakerDelay,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy.Clock == nil {
		t.policy.Clock = t.clock
	}
	t.breaker = t.newBreaker()
	return t, nil
}

func (t *UDPTransmitter) newBreaker() circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(breakerFailureThreshold).
		WithDelay(t.breakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "radio_link",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if t.metrics != nil {
				t.metrics.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (t *UDPTransmitter) Transmit(ctx context.Context, cmd domain.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return retry.DoVoid(ctx, t.policy, classify, func(_ context.Context, attempt int) error {
		if !t.breaker.TryAcquirePermit() {
			return fmt.Errorf("radio link circuit breaker open: %w", circuitbreaker.ErrOpen)
		}

		if err := t.write(cmd); err != nil {
			t.breaker.RecordError(err)
			slog.DebugContext(ctx, "Radio link write failed", "command", cmd, "attempt", attempt, "error", err)
			return err
		}
		t.breaker.RecordSuccess()
		return nil
	})
}

func (t *UDPTransmitter) write(cmd domain.Command) error {
	if t.timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := t.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("write datagram: %w", err)
	}
	return nil
}

// classify gives up on a closed socket or an open breaker; everything else
// (timeouts, ICMP refusals) is worth another attempt.
func classify(err error) retry.Action {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, circuitbreaker.ErrOpen) {
		return retry.Stop
	}
	return retry.Retry
}

// BreakerState reports the circuit breaker state.
func (t *UDPTransmitter) BreakerState() circuitbreaker.State {
	return t.breaker.State()
}

// Ready fails while the breaker is open and commands are being rejected.
func (t *UDPTransmitter) Ready(context.Context) error {
	if t.breaker.IsOpen() {
		return ErrBreakerOpen
	}
	return nil
}

func (t *UDPTransmitter) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func (t *UDPTransmitter) Close() error {
	return t.conn.Close()
}
