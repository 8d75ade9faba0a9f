package broadcast

import (
	"context"
	"sync"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
)

// Subscription is one receiver's cursor into the hub's stream.
// It is owned by a single consumer; Recv and TryRecv must not be called concurrently.
type Subscription struct {
	hub *Hub

	mu     sync.Mutex
	ring   []domain.Telemetry
	head   int
	size   int
	missed uint64
	closed bool

	// ready holds at most one pending wake-up for the consumer.
	ready chan struct{}
}

func newSubscription(hub *Hub, capacity int) *Subscription {
	return &Subscription{
		hub:   hub,
		ring:  make([]domain.Telemetry, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Ready is signalled whenever a sample, lag notice or close may be waiting.
// Wake-ups can be spurious; follow each one with TryRecv until it reports nothing.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Recv blocks until a sample, a lag notice or the closed signal is available.
// The only error is ctx's when it is cancelled first.
func (s *Subscription) Recv(ctx context.Context) (Result, error) {
	for {
		if res, ok := s.TryRecv(); ok {
			return res, nil
		}
		select {
		case <-s.ready:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// TryRecv returns the next result without blocking. ok is false when nothing is pending.
// A lag notice is always reported before the samples that survived the overflow.
func (s *Subscription) TryRecv() (res Result, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missed > 0 {
		res = Result{Kind: KindLagged, Missed: s.missed}
		s.missed = 0
		return res, true
	}
	if s.size > 0 {
		res = Result{Kind: KindSample, Sample: s.ring[s.head]}
		s.ring[s.head] = domain.Telemetry{}
		s.head = (s.head + 1) % len(s.ring)
		s.size--
		return res, true
	}
	if s.closed {
		return Result{Kind: KindClosed}, true
	}
	return Result{}, false
}

// Len returns the number of buffered samples.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close releases the subscription. Buffered samples are discarded and Recv reports Closed.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)

	s.mu.Lock()
	s.closed = true
	s.size = 0
	s.missed = 0
	s.mu.Unlock()
	s.wake()
}

// push appends sample, evicting the oldest one if the ring is full.
// It reports whether an eviction happened.
func (s *Subscription) push(sample domain.Telemetry) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	evicted := false
	if s.size == len(s.ring) {
		s.head = (s.head + 1) % len(s.ring)
		s.size--
		s.missed++
		evicted = true
	}
	s.ring[(s.head+s.size)%len(s.ring)] = sample
	s.size++
	s.mu.Unlock()

	s.wake()
	return evicted
}

// markClosed stops further deliveries but keeps the backlog so the consumer can drain it.
func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
