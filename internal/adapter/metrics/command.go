package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommandMetrics holds Prometheus metrics for the command funnel and radio link.
type CommandMetrics struct {
	Enqueued    prometheus.Counter
	Dropped     prometheus.Counter
	QueueDepth  prometheus.Gauge
	Transmitted *prometheus.CounterVec
	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState prometheus.Gauge
}

// NewCommandMetrics creates and registers command path metrics on the given registry.
func NewCommandMetrics(reg prometheus.Registerer) *CommandMetrics {
	m := &CommandMetrics{
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "enqueued_total",
			Help:      "Total number of viewer commands accepted by the funnel.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "dropped_total",
			Help:      "Total number of viewer commands dropped because the radio link was gone.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "queue_depth",
			Help:      "Number of commands waiting for the radio link.",
		}),
		Transmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio_link",
			Name:      "transmissions_total",
			Help:      "Total number of command transmissions, by result.",
		}, []string{"result"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "radio_link",
			Name:      "circuit_breaker_state",
			Help:      "Radio link circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Enqueued, m.Dropped, m.QueueDepth, m.Transmitted, m.BreakerState)
	return m
}
