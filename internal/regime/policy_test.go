package regime

import (
	"testing"
	"time"
)

func TestCanOverrideTable(t *testing.T) {
	testCases := []struct {
		severity Severity
		system   string
		expected bool
	}{
		{SeverityLow, SystemWhipsaw, false},
		{SeverityLow, SystemGracePeriod, false},
		{SeverityLow, SystemHoldingPeriod, false},
		{SeverityLow, SystemCoreAssetImmunity, false},
		{SeverityModerate, SystemWhipsaw, false},
		{SeverityModerate, SystemGracePeriod, false},
		{SeverityModerate, SystemHoldingPeriod, false},
		{SeverityModerate, SystemCoreAssetImmunity, false},
		{SeverityHigh, SystemWhipsaw, false},
		{SeverityHigh, SystemGracePeriod, true},
		{SeverityHigh, SystemHoldingPeriod, true},
		{SeverityHigh, SystemCoreAssetImmunity, false},
		{SeverityCritical, SystemWhipsaw, true},
		{SeverityCritical, SystemGracePeriod, true},
		{SeverityCritical, SystemHoldingPeriod, true},
		{SeverityCritical, SystemCoreAssetImmunity, true},
	}

	for _, tc := range testCases {
		got := CanOverride(tc.severity, tc.system)
		if got != tc.expected {
			t.Errorf("CanOverride(%s, %s) = %v, want %v", tc.severity, tc.system, got, tc.expected)
		}
	}
}

func TestCanOverrideUnknownSystem(t *testing.T) {
	if CanOverride(SeverityCritical, "not_a_system") {
		t.Error("unknown systems must never be overridable")
	}
}

func TestTransitionImpactHelpers(t *testing.T) {
	high := &Transition{Severity: SeverityHigh}
	critical := &Transition{Severity: SeverityCritical}
	moderate := &Transition{Severity: SeverityModerate}

	if !high.IsHighImpact() || !critical.IsHighImpact() {
		t.Error("HIGH and CRITICAL must be high impact")
	}
	if moderate.IsHighImpact() {
		t.Error("MODERATE must not be high impact")
	}
	if high.IsCritical() {
		t.Error("HIGH must not be critical")
	}
	if !critical.IsCritical() {
		t.Error("CRITICAL must be critical")
	}
}

func TestClassifySeverity(t *testing.T) {
	cfg := DefaultClassifierConfig()

	testCases := []struct {
		name       string
		to         string
		confidence float64
		momentum   float64
		expected   Severity
	}{
		{"LowReadings", Goldilocks, 0.3, 0.2, SeverityLow},
		{"ConfidenceOnly", Goldilocks, 0.75, 0.2, SeverityModerate},
		{"MomentumOnly", Goldilocks, 0.4, 0.6, SeverityModerate},
		{"BothHigh", Goldilocks, 0.75, 0.6, SeverityHigh},
		{"BothCritical", Goldilocks, 0.9, 0.8, SeverityCritical},
		{"DeflationBumpsLow", Deflation, 0.3, 0.2, SeverityModerate},
		{"DeflationBumpsHigh", Deflation, 0.75, 0.6, SeverityCritical},
		{"DeflationAlreadyCritical", Deflation, 0.9, 0.8, SeverityCritical},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifySeverity(cfg, Inflation, tc.to, tc.confidence, tc.momentum)
			if got != tc.expected {
				t.Errorf("ClassifySeverity(%s, conf=%.2f, mom=%.2f) = %s, want %s",
					tc.to, tc.confidence, tc.momentum, got, tc.expected)
			}
		})
	}
}

func TestClassifySeverityDeterministic(t *testing.T) {
	cfg := DefaultClassifierConfig()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := NewTransition(cfg, Goldilocks, Deflation, date, 0.8, 0.6, nil)
	second := NewTransition(cfg, Goldilocks, Deflation, date, 0.8, 0.6, nil)

	if first.Severity != second.Severity {
		t.Errorf("classification must be deterministic: %s != %s", first.Severity, second.Severity)
	}
}
