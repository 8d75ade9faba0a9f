package broadcast

import "github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"

// Kind tags what a receive produced.
type Kind int

const (
	// KindSample carries the next sample in publish order.
	KindSample Kind = iota
	// KindLagged reports that the backlog overflowed and Missed samples were discarded.
	// It is a control signal, not an error: receive again to get the oldest retained sample.
	KindLagged
	// KindClosed is terminal: the hub is gone or the subscription was released.
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindSample:
		return "sample"
	case KindLagged:
		return "lagged"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one receive on a Subscription.
type Result struct {
	Kind   Kind
	Sample domain.Telemetry
	Missed uint64
}
