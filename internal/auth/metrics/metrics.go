package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TokensAccepted prometheus.Counter
	TokensRejected prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TokensAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_tokens_accepted_total",
			Help: "Total number of bearer tokens that passed verification",
		}),
		TokensRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_tokens_rejected_total",
			Help: "Total number of bearer tokens rejected by the verification pipeline",
		}),
	}
}

func (m *Metrics) IncTokenAccepted() {
	m.TokensAccepted.Inc()
}

func (m *Metrics) IncTokenRejected() {
	m.TokensRejected.Inc()
}
