package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	waitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terneo_rate_guard_waits_total",
			Help: "Requests delayed by the inter-request interval guard",
		},
		[]string{"device"},
	)
	waitSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terneo_rate_guard_wait_seconds_total",
			Help: "Total seconds spent waiting on the interval guard",
		},
		[]string{"device"},
	)
	lastRequestGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "terneo_rate_guard_last_request_timestamp_seconds",
			Help: "Completion time of the most recent device request (epoch seconds)",
		},
		[]string{"device"},
	)
)

// MetricsCollectors exposes shared interval-guard collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		waitsTotal,
		waitSeconds,
		lastRequestGauge,
	}
}
