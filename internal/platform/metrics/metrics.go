// Package metrics holds HTTP-level Prometheus collectors shared across the
// transport layer. Module-specific collectors live next to their modules.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	AuthFailures    prometheus.Counter
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flock_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_auth_failures_total",
			Help: "Total number of rejected requests at the token gate",
		}),
	}
}

// ObserveEndpointLatency records the latency of an endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
}

// IncAuthFailures counts a rejected request.
func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}
