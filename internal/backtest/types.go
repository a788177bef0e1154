// Package backtest drives the protection decision engine along a simulated
// calendar: scoring assets, proposing rebalance actions, routing them
// through the orchestrator, and performing the explicit record calls for
// approved actions. Evaluation is strictly sequential along the timeline;
// the rolling-window and decay invariants assume a monotonically advancing
// clock.
package backtest

import (
	"fmt"
	"time"

	"github.com/quarrylabs/regimeguard/internal/protection"
)

// Scorer supplies the combined strategy score for an asset on a date.
// Implemented by the host's technical/fundamental analysis layer.
type Scorer interface {
	Score(asset string, date time.Time, regimeLabel string) (float64, error)
}

// Observation is one regime reading from the detection layer.
type Observation struct {
	Label      string
	Confidence float64
	Momentum   float64
}

// RegimeSource supplies the detected macro regime per simulated date.
type RegimeSource interface {
	RegimeAt(date time.Time) (Observation, error)
}

// Observer receives each decision as it is made. Implemented by the
// monitor server; nil observers are skipped.
type Observer interface {
	Observe(d *protection.Decision)
}

// Config controls one backtest run.
type Config struct {
	// RunID tags the run's decisions and result. Generated when empty.
	RunID string `yaml:"run_id"`

	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	StepDays int       `yaml:"step_days"` // Default: 1

	Assets []string `yaml:"assets"`

	OpenThreshold        float64 `yaml:"open_threshold"`         // Default: 0.7, score to open
	CoreDesignationScore float64 `yaml:"core_designation_score"` // Default: 0.9
	PositionSize         float64 `yaml:"position_size"`          // Default: 0.1, fraction per position
	MaxPositions         int     `yaml:"max_positions"`          // Default: 8
}

// DefaultConfig returns baseline run settings; start/end/assets must still
// be supplied.
func DefaultConfig() Config {
	return Config{
		StepDays:             1,
		OpenThreshold:        0.7,
		CoreDesignationScore: 0.9,
		PositionSize:         0.1,
		MaxPositions:         8,
	}
}

// Validate checks the run settings.
func (c Config) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("backtest: start and end dates are required")
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("backtest: end %s before start %s", c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	if c.StepDays < 1 {
		return fmt.Errorf("backtest: step_days %d must be >= 1", c.StepDays)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("backtest: no assets configured")
	}
	if c.PositionSize <= 0 || c.PositionSize > 1 {
		return fmt.Errorf("backtest: position_size %.3f must be in (0, 1]", c.PositionSize)
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("backtest: max_positions %d must be >= 1", c.MaxPositions)
	}
	return nil
}

// Position is one open holding during the run.
type Position struct {
	Size       float64   `json:"size"`
	EntryDate  time.Time `json:"entry_date"`
	EntryScore float64   `json:"entry_score"`
}

// RunMetrics aggregates decision statistics across a run.
type RunMetrics struct {
	Evaluations      int            `json:"evaluations"`
	Approved         int            `json:"approved"`
	Blocked          int            `json:"blocked"`
	Overrides        int            `json:"overrides"`
	BlocksBySystem   map[string]int `json:"blocks_by_system"`
	Opens            int            `json:"opens"`
	Closes           int            `json:"closes"`
	GraceStarts      int            `json:"grace_starts"`
	CoreDesignations int            `json:"core_designations"`
	RegimeChanges    int            `json:"regime_changes"`
}

// RunResult is the outcome of one backtest run.
type RunResult struct {
	RunID          string               `json:"run_id"`
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
	Metrics        RunMetrics           `json:"metrics"`
	FinalPositions map[string]*Position `json:"final_positions"`
	Elapsed        time.Duration        `json:"elapsed"`
}
