// Package radiolink is the single consumer of the command funnel. It hands
// every queued viewer command, oldest first, to a Transmitter.
package radiolink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
)

// Source is the consumer side of the command funnel.
type Source interface {
	Receive(ctx context.Context) (domain.Command, error)
	Close()
}

// Transmitter delivers one command to the vehicle.
type Transmitter interface {
	Transmit(ctx context.Context, cmd domain.Command) error
}

type Option func(*Link)

func WithMetrics(m *metrics.CommandMetrics) Option {
	return func(l *Link) { l.metrics = m }
}

type Link struct {
	source  Source
	tx      Transmitter
	metrics *metrics.CommandMetrics
}

func New(source Source, tx Transmitter, opts ...Option) *Link {
	l := &Link{source: source, tx: tx}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drains the source until ctx is cancelled or the source is closed.
// It closes the source on return so senders stop waiting for a consumer that is gone.
// Transmission failures are logged and counted; they never stop the loop.
func (l *Link) Run(ctx context.Context) error {
	defer l.source.Close()

	slog.InfoContext(ctx, "Radio link started")
	for {
		cmd, err := l.source.Receive(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrFunnelClosed) || ctx.Err() != nil {
				slog.InfoContext(ctx, "Radio link stopped")
				return nil
			}
			return fmt.Errorf("receive command: %w", err)
		}
		l.transmit(ctx, cmd)
	}
}

func (l *Link) transmit(ctx context.Context, cmd domain.Command) {
	err := l.tx.Transmit(ctx, cmd)

	result := "sent"
	switch {
	case err == nil:
	case errors.Is(err, circuitbreaker.ErrOpen):
		result = "rejected"
		slog.WarnContext(ctx, "Radio link unavailable, command not sent", "command", cmd)
	default:
		result = "failed"
		slog.ErrorContext(ctx, "Command transmission failed", "command", cmd, "error", err)
	}

	if l.metrics != nil {
		l.metrics.Transmitted.WithLabelValues(result).Inc()
	}
}
