package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quarrylabs/regimeguard/internal/protection"
)

// Metrics holds the Prometheus collectors for the decision engine.
type Metrics struct {
	decisionsTotal  *prometheus.CounterVec
	blocksTotal     *prometheus.CounterVec
	overridesTotal  prometheus.Counter
	decisionLatency prometheus.Histogram
}

// NewMetrics registers the decision collectors on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regimeguard_decisions_total",
			Help: "Protection decisions by outcome",
		}, []string{"outcome"}),
		blocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regimeguard_blocks_total",
			Help: "Blocking votes by protection system",
		}, []string{"system"}),
		overridesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regimeguard_regime_overrides_total",
			Help: "Decisions approved via regime transition override",
		}),
		decisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "regimeguard_decision_duration_ms",
			Help:    "End-to-end decision evaluation time in milliseconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}
	reg.MustRegister(m.decisionsTotal, m.blocksTotal, m.overridesTotal, m.decisionLatency)
	return m
}

// Observe records one decision.
func (m *Metrics) Observe(d *protection.Decision) {
	outcome := "blocked"
	if d.Approved {
		outcome = "approved"
	}
	m.decisionsTotal.WithLabelValues(outcome).Inc()

	for _, res := range d.DecisionHierarchy {
		if res.BlocksAction {
			m.blocksTotal.WithLabelValues(res.SystemName).Inc()
		}
	}
	if d.OverrideApplied {
		m.overridesTotal.Inc()
	}
	m.decisionLatency.Observe(d.DecisionTimeMs)
}
