// Package funnel implements the command funnel: a bounded many-to-one FIFO
// between viewer sessions and the radio link.
//
// Unlike telemetry, commands are never dropped while the consumer is alive.
// A full queue makes senders wait, which pushes back on viewers that type faster than the link drains.
package funnel

import (
	"context"
	"sync"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
)

// DefaultCapacity is the queue depth used when none is configured.
const DefaultCapacity = 32

// Funnel is safe for concurrent Send from any number of goroutines.
// Receive is meant for a single consumer.
type Funnel struct {
	queue     chan domain.Command
	done      chan struct{}
	closeOnce sync.Once
	metrics   *metrics.CommandMetrics
}

// Option configures a Funnel.
type Option func(*Funnel)

// WithMetrics records enqueue, drop and depth figures on m.
func WithMetrics(m *metrics.CommandMetrics) Option {
	return func(f *Funnel) { f.metrics = m }
}

// New creates a funnel holding at most capacity queued commands.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int, opts ...Option) *Funnel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	f := &Funnel{
		queue: make(chan domain.Command, capacity),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Send enqueues cmd, waiting while the queue is full.
// It returns domain.ErrFunnelClosed once the consumer is gone and ctx's error if the caller gives up first.
func (f *Funnel) Send(ctx context.Context, cmd domain.Command) error {
	select {
	case <-f.done:
		f.recordDrop()
		return domain.ErrFunnelClosed
	default:
	}

	select {
	case f.queue <- cmd:
		if f.metrics != nil {
			f.metrics.Enqueued.Inc()
			f.metrics.QueueDepth.Set(float64(len(f.queue)))
		}
		return nil
	case <-f.done:
		f.recordDrop()
		return domain.ErrFunnelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the oldest command, waiting until one is available.
// After Close it drains what is still queued and then returns domain.ErrFunnelClosed.
func (f *Funnel) Receive(ctx context.Context) (domain.Command, error) {
	select {
	case cmd := <-f.queue:
		f.observeDepth()
		return cmd, nil
	default:
	}

	select {
	case cmd := <-f.queue:
		f.observeDepth()
		return cmd, nil
	case <-f.done:
		select {
		case cmd := <-f.queue:
			f.observeDepth()
			return cmd, nil
		default:
			return "", domain.ErrFunnelClosed
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close marks the consumer as gone. Blocked and future senders fail with domain.ErrFunnelClosed.
// Safe to call more than once.
func (f *Funnel) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Closed reports whether Close has been called.
func (f *Funnel) Closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Len returns the number of queued commands.
func (f *Funnel) Len() int { return len(f.queue) }

// Cap returns the queue capacity.
func (f *Funnel) Cap() int { return cap(f.queue) }

func (f *Funnel) observeDepth() {
	if f.metrics != nil {
		f.metrics.QueueDepth.Set(float64(len(f.queue)))
	}
}

func (f *Funnel) recordDrop() {
	if f.metrics != nil {
		f.metrics.Dropped.Inc()
	}
}
