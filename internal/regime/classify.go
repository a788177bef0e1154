package regime

import (
	"time"
)

// ClassifierConfig holds the severity classification thresholds.
type ClassifierConfig struct {
	HighConfidence     float64 `yaml:"high_confidence"`     // Default: 0.70
	CriticalConfidence float64 `yaml:"critical_confidence"` // Default: 0.85
	HighMomentum       float64 `yaml:"high_momentum"`       // Default: 0.50
	CriticalMomentum   float64 `yaml:"critical_momentum"`   // Default: 0.75
}

// DefaultClassifierConfig returns the baseline classification thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		HighConfidence:     0.70,
		CriticalConfidence: 0.85,
		HighMomentum:       0.50,
		CriticalMomentum:   0.75,
	}
}

// deflationary shifts are the most disruptive to a risk-on book, so they
// bump the base severity one notch
var disruptiveTargets = map[string]bool{
	Deflation: true,
}

// ClassifySeverity derives a transition severity from the detector's
// confidence and momentum readings. Pure and deterministic: the same inputs
// always yield the same severity.
func ClassifySeverity(cfg ClassifierConfig, from, to string, confidence, momentum float64) Severity {
	severity := SeverityLow

	switch {
	case confidence >= cfg.CriticalConfidence && momentum >= cfg.CriticalMomentum:
		severity = SeverityCritical
	case confidence >= cfg.HighConfidence && momentum >= cfg.HighMomentum:
		severity = SeverityHigh
	case confidence >= cfg.HighConfidence || momentum >= cfg.HighMomentum:
		severity = SeverityModerate
	}

	if disruptiveTargets[to] && severity < SeverityCritical {
		severity++
	}

	return severity
}

// NewTransition builds a Transition for a detected regime change,
// classifying its severity from the detector readings.
func NewTransition(cfg ClassifierConfig, from, to string, date time.Time, confidence, momentum float64, indicators []string) *Transition {
	return &Transition{
		FromRegime:        from,
		ToRegime:          to,
		TransitionDate:    date,
		Severity:          ClassifySeverity(cfg, from, to, confidence, momentum),
		Confidence:        confidence,
		Momentum:          momentum,
		TriggerIndicators: indicators,
	}
}
