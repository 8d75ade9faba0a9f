package metrics

import "github.com/prometheus/client_golang/prometheus"

// TelemetryMetrics holds Prometheus metrics for the broadcast hub.
type TelemetryMetrics struct {
	SamplesPublished prometheus.Counter
	SamplesDelivered prometheus.Counter
	SamplesDropped   prometheus.Counter
	Subscribers      prometheus.Gauge
}

// NewTelemetryMetrics creates and registers telemetry fan-out metrics on the given registry.
func NewTelemetryMetrics(reg prometheus.Registerer) *TelemetryMetrics {
	m := &TelemetryMetrics{
		SamplesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "samples_published_total",
			Help:      "Total number of telemetry samples published to the hub.",
		}),
		SamplesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "samples_delivered_total",
			Help:      "Total number of telemetry samples written to viewers.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "samples_lagged_total",
			Help:      "Total number of telemetry samples skipped by lagging viewers.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "subscribers",
			Help:      "Number of live hub subscriptions.",
		}),
	}

	reg.MustRegister(m.SamplesPublished, m.SamplesDelivered, m.SamplesDropped, m.Subscribers)
	return m
}
