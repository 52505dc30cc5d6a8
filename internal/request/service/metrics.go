package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the request lifecycle.
type Metrics struct {
	CreatedTotal   prometheus.Counter
	DecisionsTotal *prometheus.CounterVec
	DeniedTotal    *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all request metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		CreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accessops_requests_created_total",
			Help: "Total number of access requests created",
		}),
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accessops_request_decisions_total",
			Help: "Total number of terminal request transitions by outcome",
		}, []string{"outcome"}),
		DeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accessops_policy_denials_total",
			Help: "Total number of policy denials by operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncCreated() {
	if m == nil {
		return
	}
	m.CreatedTotal.Inc()
}

func (m *Metrics) IncDecision(outcome string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncDenied(operation string) {
	if m == nil {
		return
	}
	m.DeniedTotal.WithLabelValues(operation).Inc()
}
