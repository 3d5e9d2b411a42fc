package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts gateway traffic. A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	RetriesTotal  *prometheus.CounterVec
	RemovalsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
//
// Pass a fresh [prometheus.NewRegistry] per run; registering twice on the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dzdedupe_api_requests_total",
				Help: "Total number of gateway requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dzdedupe_api_retries_total",
				Help: "Total number of retried gateway requests",
			},
			[]string{"method"},
		),
		RemovalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dzdedupe_removals_total",
				Help: "Total number of scheduled track removals by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.RetriesTotal, m.RemovalsTotal)
	}
	return m
}

func (m *Metrics) request(method, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) retry(method string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(method).Inc()
}

// Removal records the outcome of one scheduled removal.
func (m *Metrics) Removal(outcome string) {
	if m == nil {
		return
	}
	m.RemovalsTotal.WithLabelValues(outcome).Inc()
}
