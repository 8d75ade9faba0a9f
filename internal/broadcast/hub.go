package broadcast

import (
	"sync"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
)

// DefaultCapacity is the per-subscriber backlog used when none is configured.
const DefaultCapacity = 100

// Hub is the process-wide telemetry distribution point.
// It is safe for concurrent use by any number of publishers and subscribers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
	metrics  *metrics.TelemetryMetrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics records publish and lag counters on m.
func WithMetrics(m *metrics.TelemetryMetrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub whose subscriptions each buffer up to capacity samples.
// A non-positive capacity falls back to DefaultCapacity.
func NewHub(capacity int, opts ...Option) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h := &Hub{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish copies sample into every live subscription and returns how many received it.
// It never waits on a subscriber; a full backlog loses its oldest sample instead.
// Publishing with no subscribers, or after Close, is a no-op.
func (h *Hub) Publish(sample domain.Telemetry) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}

	dropped := 0
	for sub := range h.subs {
		if sub.push(sample) {
			dropped++
		}
	}

	if h.metrics != nil {
		h.metrics.SamplesPublished.Inc()
		h.metrics.SamplesDropped.Add(float64(dropped))
	}
	return len(h.subs)
}

// Subscribe returns a subscription that observes every sample published after this call.
// Subscribing to a closed hub yields a subscription that reports Closed immediately.
func (h *Hub) Subscribe() *Subscription {
	sub := newSubscription(h, h.capacity)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.markClosed()
		return sub
	}
	h.subs[sub] = struct{}{}
	h.setSubscriberGauge()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close permanently shuts the hub. Subscribers drain what they already hold and then observe Closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.markClosed()
		delete(h.subs, sub)
	}
	h.setSubscriberGauge()
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	h.setSubscriberGauge()
}

// caller must hold h.mu
func (h *Hub) setSubscriberGauge() {
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.subs)))
	}
}
