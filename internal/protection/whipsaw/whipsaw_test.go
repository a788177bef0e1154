package whipsaw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/regimeguard/internal/protection"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	require.NoError(t, err)
	return m
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MaxCyclesPerPeriod = 0
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.ProtectionPeriodDays = 0
	require.Error(t, bad.Validate())
}

func TestWindowBoundaryInclusive(t *testing.T) {
	cfg := Config{MaxCyclesPerPeriod: 1, ProtectionPeriodDays: 7, MinPositionDurationHours: 0}
	date := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("CloseExactlySevenDaysAgoCounts", func(t *testing.T) {
		m := newTestManager(t, cfg)
		closeTime := date.AddDate(0, 0, -7)
		m.RecordPositionEvent("AAPL", protection.ActionOpen, closeTime.AddDate(0, 0, -2), 0.1, "test")
		m.RecordPositionEvent("AAPL", protection.ActionClose, closeTime, 0.1, "test")

		allowed, reason := m.CanOpenPosition("AAPL", date)
		assert.False(t, allowed)
		assert.Contains(t, reason, "1 cycle(s)")
	})

	t.Run("CloseSevenDaysAndOneSecondAgoDoesNot", func(t *testing.T) {
		m := newTestManager(t, cfg)
		closeTime := date.AddDate(0, 0, -7).Add(-time.Second)
		m.RecordPositionEvent("AAPL", protection.ActionOpen, closeTime.AddDate(0, 0, -2), 0.1, "test")
		m.RecordPositionEvent("AAPL", protection.ActionClose, closeTime, 0.1, "test")

		allowed, _ := m.CanOpenPosition("AAPL", date)
		assert.True(t, allowed)
	})
}

func TestReopenBlockedAfterRecentCycle(t *testing.T) {
	// Open day 0, close day 2, attempt reopen day 4 with a 7-day window
	m := newTestManager(t, Config{MaxCyclesPerPeriod: 1, ProtectionPeriodDays: 7, MinPositionDurationHours: 0})
	day0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m.RecordPositionEvent("AAPL", protection.ActionOpen, day0, 0.1, "entry")
	m.RecordPositionEvent("AAPL", protection.ActionClose, day0.AddDate(0, 0, 2), 0.1, "exit")

	req := &protection.Request{
		Asset:       "AAPL",
		Action:      protection.ActionOpen,
		CurrentDate: day0.AddDate(0, 0, 4),
	}
	res := m.Evaluate(req)
	assert.True(t, res.BlocksAction)
	assert.Equal(t, "whipsaw_protection", res.SystemName)
}

func TestCyclingBlocksClosesToo(t *testing.T) {
	m := newTestManager(t, Config{MaxCyclesPerPeriod: 1, ProtectionPeriodDays: 7, MinPositionDurationHours: 0})
	day0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m.RecordPositionEvent("BTC-USD", protection.ActionOpen, day0, 0.1, "entry")
	m.RecordPositionEvent("BTC-USD", protection.ActionClose, day0.AddDate(0, 0, 1), 0.1, "exit")
	// A second open somehow executed (e.g. regime override)
	m.RecordPositionEvent("BTC-USD", protection.ActionOpen, day0.AddDate(0, 0, 2), 0.1, "entry")

	allowed, _ := m.CanClosePosition("BTC-USD", day0.AddDate(0, 0, 3))
	assert.False(t, allowed, "cycling, not direction, is protected against")
}

func TestMinPositionDuration(t *testing.T) {
	m := newTestManager(t, Config{MaxCyclesPerPeriod: 5, ProtectionPeriodDays: 7, MinPositionDurationHours: 4})
	opened := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m.RecordPositionEvent("MSFT", protection.ActionOpen, opened, 0.1, "entry")

	allowed, reason := m.CanClosePosition("MSFT", opened.Add(2*time.Hour))
	assert.False(t, allowed)
	assert.Contains(t, reason, "4h minimum")

	allowed, _ = m.CanClosePosition("MSFT", opened.Add(5*time.Hour))
	assert.True(t, allowed)
}

func TestMalformedDateFailsClosed(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	allowed, reason := m.CanOpenPosition("AAPL", time.Time{})
	assert.False(t, allowed)
	assert.Contains(t, reason, "failing closed")

	allowed, _ = m.CanClosePosition("AAPL", time.Time{})
	assert.False(t, allowed)
}

func TestCycleCountableOnlyAfterClose(t *testing.T) {
	m := newTestManager(t, Config{MaxCyclesPerPeriod: 1, ProtectionPeriodDays: 7, MinPositionDurationHours: 0})
	day0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m.RecordPositionEvent("GLD", protection.ActionOpen, day0, 0.1, "entry")
	assert.Equal(t, 0, m.cyclesWithinWindow("GLD", day0.AddDate(0, 0, 1)))

	m.RecordPositionEvent("GLD", protection.ActionClose, day0.AddDate(0, 0, 1), 0.1, "exit")
	assert.Equal(t, 1, m.cyclesWithinWindow("GLD", day0.AddDate(0, 0, 2)))
}

func TestResizeUpNotConstrained(t *testing.T) {
	m := newTestManager(t, Config{MaxCyclesPerPeriod: 1, ProtectionPeriodDays: 7, MinPositionDurationHours: 0})
	day0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m.RecordPositionEvent("AAPL", protection.ActionOpen, day0, 0.1, "entry")
	m.RecordPositionEvent("AAPL", protection.ActionClose, day0.AddDate(0, 0, 1), 0.1, "exit")

	res := m.Evaluate(&protection.Request{
		Asset:       "AAPL",
		Action:      protection.ActionResize,
		CurrentDate: day0.AddDate(0, 0, 2),
		CurrentSize: 0.05,
		TargetSize:  0.10,
	})
	assert.False(t, res.BlocksAction)
}
