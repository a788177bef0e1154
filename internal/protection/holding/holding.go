// Package holding enforces a minimum dwell time before a position may be
// closed. Unlike whipsaw there is no rolling-window memory, just one active
// clock per asset.
package holding

import (
	"fmt"
	"time"

	"github.com/quarrylabs/regimeguard/internal/protection"
	"github.com/quarrylabs/regimeguard/internal/regime"
)

// Config holds the holding period threshold.
type Config struct {
	MinimumHoldingDays int `yaml:"minimum_holding_days"` // Default: 3
}

// DefaultConfig returns the baseline holding period.
func DefaultConfig() Config {
	return Config{MinimumHoldingDays: 3}
}

// Validate checks the configuration at construction time.
func (c Config) Validate() error {
	if c.MinimumHoldingDays < 0 {
		return fmt.Errorf("holding: minimum_holding_days %d must be >= 0", c.MinimumHoldingDays)
	}
	return nil
}

// Manager owns one entry clock per asset. Created on RecordOpen, destroyed
// on RecordClose.
type Manager struct {
	cfg     Config
	entries map[string]time.Time
}

// NewManager creates a holding period manager, validating eagerly.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:     cfg,
		entries: make(map[string]time.Time),
	}, nil
}

func (m *Manager) Name() string  { return regime.SystemHoldingPeriod }
func (m *Manager) Priority() int { return protection.PriorityHoldingPeriod }

// CanClosePosition reports whether the minimum dwell time has elapsed.
// An asset with no recorded entry is not constrained by this guard.
func (m *Manager) CanClosePosition(asset string, date time.Time) (bool, string) {
	entry, ok := m.entries[asset]
	if !ok {
		return true, "holding: no entry recorded"
	}
	minimum := time.Duration(m.cfg.MinimumHoldingDays) * 24 * time.Hour
	held := date.Sub(entry)
	if held < minimum {
		return false, fmt.Sprintf("holding: held %.1fd < %dd minimum",
			held.Hours()/24, m.cfg.MinimumHoldingDays)
	}
	return true, fmt.Sprintf("holding: held %.1fd >= %dd minimum",
		held.Hours()/24, m.cfg.MinimumHoldingDays)
}

// RecordOpen starts the dwell clock for the asset.
func (m *Manager) RecordOpen(asset string, date time.Time) {
	m.entries[asset] = date
}

// RecordClose clears the dwell clock.
func (m *Manager) RecordClose(asset string) {
	delete(m.entries, asset)
}

// Evaluate implements the protection guard capability. Falls back to the
// request's position entry date when no clock was recorded, so pre-seeded
// positions are still covered.
func (m *Manager) Evaluate(req *protection.Request) protection.Result {
	allowed := true
	reason := "holding: not applicable"

	if req.IsReduction() {
		if _, ok := m.entries[req.Asset]; !ok && req.PositionEntryDate != nil {
			m.checkFromEntry(req, &allowed, &reason)
		} else {
			allowed, reason = m.CanClosePosition(req.Asset, req.CurrentDate)
		}
	}

	return protection.Result{
		SystemName:   m.Name(),
		BlocksAction: !allowed,
		Reason:       reason,
		Priority:     m.Priority(),
	}
}

func (m *Manager) checkFromEntry(req *protection.Request, allowed *bool, reason *string) {
	minimum := time.Duration(m.cfg.MinimumHoldingDays) * 24 * time.Hour
	held := req.CurrentDate.Sub(*req.PositionEntryDate)
	if held < minimum {
		*allowed = false
		*reason = fmt.Sprintf("holding: held %.1fd < %dd minimum (from request entry date)",
			held.Hours()/24, m.cfg.MinimumHoldingDays)
		return
	}
	*allowed = true
	*reason = fmt.Sprintf("holding: held %.1fd >= %dd minimum", held.Hours()/24, m.cfg.MinimumHoldingDays)
}
