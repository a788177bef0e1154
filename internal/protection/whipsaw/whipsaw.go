// Package whipsaw blocks rapid open/close cycling on a single asset within
// a rolling window. Cycling, not direction, is what is protected against:
// at the cycle limit both opens and closes are denied until the window
// advances past the offending cycle's close.
package whipsaw

import (
	"fmt"
	"time"

	"github.com/quarrylabs/regimeguard/internal/protection"
	"github.com/quarrylabs/regimeguard/internal/regime"
)

// Config holds the whipsaw protection thresholds.
type Config struct {
	MaxCyclesPerPeriod       int `yaml:"max_cycles_per_period"`       // Default: 1
	ProtectionPeriodDays     int `yaml:"protection_period_days"`      // Default: 7
	MinPositionDurationHours int `yaml:"min_position_duration_hours"` // Default: 4
}

// DefaultConfig returns the baseline whipsaw thresholds.
func DefaultConfig() Config {
	return Config{
		MaxCyclesPerPeriod:       1,
		ProtectionPeriodDays:     7,
		MinPositionDurationHours: 4,
	}
}

// Validate checks the configuration at construction time.
func (c Config) Validate() error {
	if c.MaxCyclesPerPeriod < 1 {
		return fmt.Errorf("whipsaw: max_cycles_per_period %d must be >= 1", c.MaxCyclesPerPeriod)
	}
	if c.ProtectionPeriodDays < 1 {
		return fmt.Errorf("whipsaw: protection_period_days %d must be >= 1", c.ProtectionPeriodDays)
	}
	if c.MinPositionDurationHours < 0 {
		return fmt.Errorf("whipsaw: min_position_duration_hours %d must be >= 0", c.MinPositionDurationHours)
	}
	return nil
}

// cycle is one completed open->close round trip. A cycle is only countable
// once its close is recorded.
type cycle struct {
	openTime  time.Time
	closeTime time.Time
}

// assetHistory tracks completed cycles and the currently open position for
// one asset.
type assetHistory struct {
	cycles   []cycle
	openTime *time.Time
}

// Manager owns per-asset whipsaw state. Each backtest run constructs a
// fresh instance; state is in-memory only and mutated solely through
// RecordPositionEvent.
type Manager struct {
	cfg     Config
	history map[string]*assetHistory
}

// NewManager creates a whipsaw manager, validating the configuration
// eagerly.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:     cfg,
		history: make(map[string]*assetHistory),
	}, nil
}

func (m *Manager) Name() string  { return regime.SystemWhipsaw }
func (m *Manager) Priority() int { return protection.PriorityWhipsaw }

// CanOpenPosition reports whether a new position may be opened. A malformed
// date fails closed.
func (m *Manager) CanOpenPosition(asset string, date time.Time) (bool, string) {
	if date.IsZero() {
		return false, "whipsaw: malformed date, failing closed"
	}
	count := m.cyclesWithinWindow(asset, date)
	if count >= m.cfg.MaxCyclesPerPeriod {
		return false, fmt.Sprintf("whipsaw: %d cycle(s) within %dd window (max %d)",
			count, m.cfg.ProtectionPeriodDays, m.cfg.MaxCyclesPerPeriod)
	}
	return true, fmt.Sprintf("whipsaw: %d cycle(s) within window, under limit", count)
}

// CanClosePosition reports whether the open position may be closed. Blocks
// both at the cycle limit and while the position is younger than the
// minimum duration (short-horizon anti-churn, distinct from the
// longer-horizon holding period guard).
func (m *Manager) CanClosePosition(asset string, date time.Time) (bool, string) {
	if date.IsZero() {
		return false, "whipsaw: malformed date, failing closed"
	}
	count := m.cyclesWithinWindow(asset, date)
	if count >= m.cfg.MaxCyclesPerPeriod {
		return false, fmt.Sprintf("whipsaw: %d cycle(s) within %dd window (max %d)",
			count, m.cfg.ProtectionPeriodDays, m.cfg.MaxCyclesPerPeriod)
	}

	if h, ok := m.history[asset]; ok && h.openTime != nil {
		minDuration := time.Duration(m.cfg.MinPositionDurationHours) * time.Hour
		held := date.Sub(*h.openTime)
		if held < minDuration {
			return false, fmt.Sprintf("whipsaw: position held %.1fh < %dh minimum",
				held.Hours(), m.cfg.MinPositionDurationHours)
		}
	}
	return true, "whipsaw: close permitted"
}

// Evaluate implements the protection guard capability.
func (m *Manager) Evaluate(req *protection.Request) protection.Result {
	var allowed bool
	var reason string

	switch {
	case req.Action == protection.ActionOpen:
		allowed, reason = m.CanOpenPosition(req.Asset, req.CurrentDate)
	case req.IsReduction():
		allowed, reason = m.CanClosePosition(req.Asset, req.CurrentDate)
	default:
		allowed, reason = true, "whipsaw: not applicable to resize-up"
	}

	return protection.Result{
		SystemName:   m.Name(),
		BlocksAction: !allowed,
		Reason:       reason,
		Priority:     m.Priority(),
		Metadata: map[string]interface{}{
			"cycles_in_window": m.cyclesWithinWindow(req.Asset, req.CurrentDate),
			"max_cycles":       m.cfg.MaxCyclesPerPeriod,
		},
	}
}

// RecordPositionEvent appends to the asset's history. Called only after the
// orchestrator approves the action and the caller executes it.
func (m *Manager) RecordPositionEvent(asset string, action protection.Action, date time.Time, size float64, reason string) {
	h, ok := m.history[asset]
	if !ok {
		h = &assetHistory{}
		m.history[asset] = h
	}

	switch action {
	case protection.ActionOpen:
		opened := date
		h.openTime = &opened
	case protection.ActionClose:
		if h.openTime != nil {
			h.cycles = append(h.cycles, cycle{openTime: *h.openTime, closeTime: date})
			h.openTime = nil
		}
	}
}

// cyclesWithinWindow counts completed cycles whose close falls within
// [date - protection_period_days, date]. Inclusive at the near boundary,
// exclusive at the far edge: a close exactly protection_period_days old
// still counts.
func (m *Manager) cyclesWithinWindow(asset string, date time.Time) int {
	h, ok := m.history[asset]
	if !ok {
		return 0
	}
	cutoff := date.AddDate(0, 0, -m.cfg.ProtectionPeriodDays)
	count := 0
	for _, c := range h.cycles {
		if !c.closeTime.Before(cutoff) && !c.closeTime.After(date) {
			count++
		}
	}
	return count
}
