// Package grace lets a position whose score has dropped below threshold
// decay its size gradually instead of closing immediately. Decay is
// monotonic and deterministic for a given start date and elapsed day count.
package grace

import (
	"fmt"
	"math"
	"time"

	"github.com/quarrylabs/regimeguard/internal/protection"
	"github.com/quarrylabs/regimeguard/internal/regime"
)

// DecayModel selects how size decays over the grace window.
type DecayModel string

const (
	DecayExponential DecayModel = "exponential" // size * rate^days
	DecayLinear      DecayModel = "linear"      // size * (1 - (1-rate)*days), floored at 0
)

// Config holds the grace period thresholds.
type Config struct {
	GracePeriodDays int        `yaml:"grace_period_days"` // Default: 5
	DecayRate       float64    `yaml:"decay_rate"`        // Default: 0.8, per-day factor
	MinSizeRatio    float64    `yaml:"min_size_ratio"`    // Default: 0.01, floor vs initial
	Model           DecayModel `yaml:"decay_model"`       // Default: exponential
}

// DefaultConfig returns the baseline grace thresholds.
func DefaultConfig() Config {
	return Config{
		GracePeriodDays: 5,
		DecayRate:       0.8,
		MinSizeRatio:    0.01,
		Model:           DecayExponential,
	}
}

// Validate checks the configuration at construction time.
func (c Config) Validate() error {
	if c.GracePeriodDays < 1 {
		return fmt.Errorf("grace: grace_period_days %d must be >= 1", c.GracePeriodDays)
	}
	if c.DecayRate <= 0 || c.DecayRate >= 1 {
		return fmt.Errorf("grace: decay_rate %.3f must be in (0, 1)", c.DecayRate)
	}
	if c.MinSizeRatio < 0 || c.MinSizeRatio >= 1 {
		return fmt.Errorf("grace: min_size_ratio %.3f must be in [0, 1)", c.MinSizeRatio)
	}
	switch c.Model {
	case DecayExponential, DecayLinear:
	default:
		return fmt.Errorf("grace: unknown decay model %q", c.Model)
	}
	return nil
}

// State is the active grace window for one asset. Created by
// StartGracePeriod, mutated only by ApplyDecay, destroyed when grace ends.
type State struct {
	StartDate     time.Time
	InitialSize   float64
	InitialScore  float64
	DecayRate     float64
	LastDecayDate time.Time
	CurrentSize   float64
	Reason        string
}

// Manager owns per-asset grace state plus the last observed score per
// asset, used to detect fresh threshold crossings.
type Manager struct {
	cfg        Config
	states     map[string]*State
	lastScores map[string]float64
}

// NewManager creates a grace period manager, validating eagerly.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:        cfg,
		states:     make(map[string]*State),
		lastScores: make(map[string]float64),
	}, nil
}

func (m *Manager) Name() string  { return regime.SystemGracePeriod }
func (m *Manager) Priority() int { return protection.PriorityGracePeriod }

// ShouldApplyGracePeriod reports whether a grace window should be offered.
// Grace is offered only on a fresh crossing below threshold, never while
// the score was already below on the previous observation, and never while
// a grace window is already active. The observation is recorded either way.
func (m *Manager) ShouldApplyGracePeriod(asset string, currentScore, threshold float64, date time.Time) (bool, string) {
	prev, seen := m.lastScores[asset]
	m.lastScores[asset] = currentScore

	m.expire(asset, date)
	if _, active := m.states[asset]; active {
		return false, "grace: window already active"
	}
	if currentScore >= threshold {
		return false, fmt.Sprintf("grace: score %.3f >= threshold %.3f", currentScore, threshold)
	}
	if seen && prev < threshold {
		return false, fmt.Sprintf("grace: score already below threshold (%.3f -> %.3f)", prev, currentScore)
	}
	return true, fmt.Sprintf("grace: score crossed below threshold (%.3f < %.3f)", currentScore, threshold)
}

// StartGracePeriod opens a grace window for the asset.
func (m *Manager) StartGracePeriod(asset string, score, size float64, date time.Time, reason string) {
	m.states[asset] = &State{
		StartDate:     date,
		InitialSize:   size,
		InitialScore:  score,
		DecayRate:     m.cfg.DecayRate,
		LastDecayDate: date,
		CurrentSize:   size,
		Reason:        reason,
	}
}

// ApplyDecay computes the decayed size for the asset at date. When the
// window has run its course (days elapsed, or size under the floor) the
// state is destroyed and the returned size is the floor value: the caller
// should fully close the position.
func (m *Manager) ApplyDecay(asset string, date time.Time) (float64, string) {
	st, ok := m.states[asset]
	if !ok {
		return 0, "grace: no active window"
	}

	elapsed := wholeDays(st.StartDate, date)
	size := m.decayedSize(st.InitialSize, st.DecayRate, elapsed)

	if elapsed >= m.cfg.GracePeriodDays || size < st.InitialSize*m.cfg.MinSizeRatio {
		delete(m.states, asset)
		return size, fmt.Sprintf("grace: window ended after %d day(s), close position", elapsed)
	}

	// Size is monotone non-increasing until the window ends
	if size < st.CurrentSize {
		st.CurrentSize = size
	}
	st.LastDecayDate = date
	return st.CurrentSize, fmt.Sprintf("grace: day %d of %d, size %.4f", elapsed, m.cfg.GracePeriodDays, st.CurrentSize)
}

// HandleRecovery clears the grace window when the score has recovered above
// threshold, returning the original size with no residual decay. The second
// return is false when no window was active or the score has not recovered.
// The observation is recorded so a later drop counts as a fresh crossing.
func (m *Manager) HandleRecovery(asset string, currentScore, threshold float64, date time.Time) (float64, bool) {
	m.lastScores[asset] = currentScore
	m.expire(asset, date)

	st, ok := m.states[asset]
	if !ok || currentScore < threshold {
		return 0, false
	}
	delete(m.states, asset)
	return st.InitialSize, true
}

// IsInGracePeriod reports whether the asset has an active grace window at
// date. A window past its span is pruned on read; state never outlives the
// grace period.
func (m *Manager) IsInGracePeriod(asset string, date time.Time) bool {
	m.expire(asset, date)
	_, ok := m.states[asset]
	return ok
}

// ActiveState returns a copy of the asset's grace state, if any.
func (m *Manager) ActiveState(asset string) (State, bool) {
	st, ok := m.states[asset]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Evaluate implements the protection guard capability: while a grace window
// is active the position decays instead of closing, so outright closes are
// blocked (overridable by HIGH severity regime transitions).
func (m *Manager) Evaluate(req *protection.Request) protection.Result {
	blocks := false
	reason := "grace: no active window"

	if req.IsReduction() && m.IsInGracePeriod(req.Asset, req.CurrentDate) {
		st := m.states[req.Asset]
		blocks = true
		reason = fmt.Sprintf("grace: position decaying since %s, close deferred",
			st.StartDate.Format("2006-01-02"))
	}

	return protection.Result{
		SystemName:   m.Name(),
		BlocksAction: blocks,
		Reason:       reason,
		Priority:     m.Priority(),
	}
}

// expire destroys a window whose span has elapsed, whichever reader
// touches it first.
func (m *Manager) expire(asset string, date time.Time) {
	st, ok := m.states[asset]
	if !ok {
		return
	}
	if wholeDays(st.StartDate, date) >= m.cfg.GracePeriodDays {
		delete(m.states, asset)
	}
}

func (m *Manager) decayedSize(initial, rate float64, days int) float64 {
	var size float64
	switch m.cfg.Model {
	case DecayLinear:
		size = initial * (1 - (1-rate)*float64(days))
	default:
		size = initial * math.Pow(rate, float64(days))
	}
	if size < 0 {
		return 0
	}
	return size
}

// wholeDays returns the count of complete 24h periods between from and to.
func wholeDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
