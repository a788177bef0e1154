package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/regimeguard/internal/protection"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not registered", name)
	return nil
}

func counterValue(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(&protection.Decision{
		Approved:       true,
		DecisionTimeMs: 0.3,
	})
	m.Observe(&protection.Decision{
		Approved:        false,
		BlockingSystems: []string{"whipsaw_protection"},
		DecisionHierarchy: []protection.Result{
			{SystemName: "core_asset_immunity", BlocksAction: false},
			{SystemName: "whipsaw_protection", BlocksAction: true},
		},
		DecisionTimeMs: 0.8,
	})
	m.Observe(&protection.Decision{
		Approved:        true,
		OverrideApplied: true,
		DecisionHierarchy: []protection.Result{
			{SystemName: "holding_period", BlocksAction: true},
		},
		DecisionTimeMs: 0.5,
	})

	decisions := gatherFamily(t, reg, "regimeguard_decisions_total")
	assert.Equal(t, 2.0, counterValue(decisions, "outcome", "approved"))
	assert.Equal(t, 1.0, counterValue(decisions, "outcome", "blocked"))

	// Blocking votes count even when the decision was override-approved
	blocks := gatherFamily(t, reg, "regimeguard_blocks_total")
	assert.Equal(t, 1.0, counterValue(blocks, "system", "whipsaw_protection"))
	assert.Equal(t, 1.0, counterValue(blocks, "system", "holding_period"))
	assert.Equal(t, 0.0, counterValue(blocks, "system", "core_asset_immunity"))

	overrides := gatherFamily(t, reg, "regimeguard_regime_overrides_total")
	require.Len(t, overrides.GetMetric(), 1)
	assert.Equal(t, 1.0, overrides.GetMetric()[0].GetCounter().GetValue())

	latency := gatherFamily(t, reg, "regimeguard_decision_duration_ms")
	require.Len(t, latency.GetMetric(), 1)
	assert.Equal(t, uint64(3), latency.GetMetric()[0].GetHistogram().GetSampleCount())
}
