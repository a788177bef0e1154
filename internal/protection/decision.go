package protection

import (
	"strings"
	"time"
)

// Decision is the combined verdict for one request: the final approve/block
// outcome plus the full audit trail of every guard consulted. Produced
// exactly once per evaluation and never mutated afterwards.
type Decision struct {
	Approved          bool      `json:"approved"`
	Reason            string    `json:"reason"`
	BlockingSystems   []string  `json:"blocking_systems"`
	OverrideApplied   bool      `json:"override_applied"`
	OverrideReason    string    `json:"override_reason,omitempty"`
	DecisionHierarchy []Result  `json:"decision_hierarchy"`
	DecisionTimeMs    float64   `json:"decision_time_ms"`
	Asset             string    `json:"asset"`
	Action            Action    `json:"action"`
	EvaluatedAt       time.Time `json:"evaluated_at"`
}

// ToMap flattens the decision into a payload ready to hand to an event
// sink. Keys are stable so downstream analysis can rely on them.
func (d *Decision) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"asset":             d.Asset,
		"action":            string(d.Action),
		"approved":          d.Approved,
		"reason":            d.Reason,
		"blocking_systems":  strings.Join(d.BlockingSystems, ","),
		"override_applied":  d.OverrideApplied,
		"override_reason":   d.OverrideReason,
		"protection_checks": len(d.DecisionHierarchy),
		"decision_time_ms":  d.DecisionTimeMs,
		"evaluated_at":      d.EvaluatedAt.UTC().Format(time.RFC3339),
	}
}
