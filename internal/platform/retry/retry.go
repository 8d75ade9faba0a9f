// Package retry runs an operation until it succeeds, fails permanently or
// runs out of attempts, sleeping with capped exponential backoff in between.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, back off and try again
)

// ErrInvalidPolicy is returned when MaxAttempts is below one.
var ErrInvalidPolicy = errors.New("retry policy needs at least one attempt")

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// MaxBackoff caps the doubled backoff. Zero means uncapped.
	MaxBackoff time.Duration
	OnRetry    func(attempt int, err error, backoff time.Duration)
	// Clock drives the waits between attempts. Nil means the real clock.
	Clock clockwork.Clock
}

type Classify func(err error) Action

// Operation receives the 1-based attempt number.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, ErrInvalidPolicy
	}

	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	backoff := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := op(ctx, attempt)
		if err == nil {
			return val, nil
		}

		if classify(err) == Stop {
			return zero, &PermanentError{Err: err}
		}
		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		timer := clock.NewTimer(backoff)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

func DoVoid(ctx context.Context, p Policy, classify Classify, op func(ctx context.Context, attempt int) error) error {
	_, err := Do(ctx, p, classify, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}

// PermanentError marks an error the classifier refused to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
