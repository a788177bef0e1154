package protection

import (
	"fmt"
	"time"
)

// Action is the kind of position change being proposed.
type Action string

const (
	ActionOpen   Action = "open"
	ActionClose  Action = "close"
	ActionResize Action = "resize"
)

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionOpen, ActionClose, ActionResize:
		return true
	}
	return false
}

// Request describes one proposed position change for one asset on one
// simulated date. Constructed fresh per proposal per rebalance period and
// never persisted.
type Request struct {
	Asset       string    `json:"asset"`
	Action      Action    `json:"action"`
	CurrentDate time.Time `json:"current_date"`

	CurrentSize float64 `json:"current_size"` // Fraction of portfolio, 0..1
	TargetSize  float64 `json:"target_size"`  // Fraction of portfolio, 0..1

	CurrentScore *float64 `json:"current_score,omitempty"` // Combined strategy score, 0..1
	TargetScore  *float64 `json:"target_score,omitempty"`

	Reason string `json:"reason"`

	PositionEntryDate  *time.Time `json:"position_entry_date,omitempty"`
	PositionEntryScore *float64   `json:"position_entry_score,omitempty"`

	PortfolioAllocation *float64 `json:"portfolio_allocation,omitempty"` // Total invested fraction
	ActivePositions     *int     `json:"active_positions,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the required fields. An invalid request must fail fast
// and never enter the guard pipeline.
func (r *Request) Validate() error {
	if r.Asset == "" {
		return fmt.Errorf("protection request missing asset")
	}
	if !r.Action.Valid() {
		return fmt.Errorf("protection request has invalid action %q", r.Action)
	}
	if r.CurrentDate.IsZero() {
		return fmt.Errorf("protection request missing current date")
	}
	return nil
}

// IsReduction reports whether the proposal shrinks or closes the position.
// Closure immunity and dwell-time guards only apply to reductions.
func (r *Request) IsReduction() bool {
	if r.Action == ActionClose {
		return true
	}
	return r.Action == ActionResize && r.TargetSize < r.CurrentSize
}
