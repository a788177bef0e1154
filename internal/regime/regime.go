package regime

import (
	"time"
)

// Macro regime labels driving asset-bucket selection
const (
	Goldilocks = "goldilocks"
	Inflation  = "inflation"
	Deflation  = "deflation"
	Reflation  = "reflation"
	Unknown    = "unknown"
)

// Severity classifies how disruptive a regime transition is. Higher
// severities may bypass more protection systems.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityModerate:
		return "moderate"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity label back to its enum value.
// Unrecognized labels map to SeverityLow (conservative: overrides nothing).
func ParseSeverity(label string) Severity {
	switch label {
	case "moderate":
		return SeverityModerate
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// Transition describes a detected regime change. It is consumed read-only
// for a single protection decision and is not persisted.
type Transition struct {
	FromRegime        string    `json:"from_regime"`
	ToRegime          string    `json:"to_regime"`
	TransitionDate    time.Time `json:"transition_date"`
	Severity          Severity  `json:"severity"`
	Confidence        float64   `json:"confidence"`
	Momentum          float64   `json:"momentum"`
	TriggerIndicators []string  `json:"trigger_indicators"`
}

// IsHighImpact reports whether the transition is HIGH or CRITICAL.
func (t *Transition) IsHighImpact() bool {
	return t.Severity >= SeverityHigh
}

// IsCritical reports whether the transition is CRITICAL.
func (t *Transition) IsCritical() bool {
	return t.Severity == SeverityCritical
}

// CanOverrideProtection reports whether this transition's severity may
// bypass the named protection system.
func (t *Transition) CanOverrideProtection(system string) bool {
	return CanOverride(t.Severity, system)
}
