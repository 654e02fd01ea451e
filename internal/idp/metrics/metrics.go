package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CallDuration *prometheus.HistogramVec
	CallFailures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		CallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flock_idp_call_duration_seconds",
			Help:    "Duration of calls to the identity provider",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		CallFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flock_idp_call_failures_total",
			Help: "Total number of failed identity provider calls",
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveCall(operation string, d time.Duration, failed bool) {
	m.CallDuration.WithLabelValues(operation).Observe(d.Seconds())
	if failed {
		m.CallFailures.WithLabelValues(operation).Inc()
	}
}
