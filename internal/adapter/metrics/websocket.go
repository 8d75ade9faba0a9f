package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for viewer connections.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	Disconnects       *prometheus.CounterVec
	RejectedUpgrades  *prometheus.CounterVec
	PingFailures      prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active viewer sessions.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "disconnects_total",
			Help:      "Total number of viewer sessions closed, by reason.",
		}, []string{"reason"}),
		RejectedUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_upgrades_total",
			Help:      "Total number of viewer upgrades refused, by limit.",
		}, []string{"limit"}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "ping_failures_total",
			Help:      "Total number of keepalive pings that could not be written.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.Disconnects, m.RejectedUpgrades, m.PingFailures)
	return m
}
