// Package coreasset tracks "core" designations: positions granted closure
// immunity and diversification-override privileges for a bounded,
// extendable period. Expiry is lazily evaluated, never background-swept.
package coreasset

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quarrylabs/regimeguard/internal/protection"
	"github.com/quarrylabs/regimeguard/internal/regime"
)

// Config holds the core asset lifecycle thresholds.
type Config struct {
	MaxCoreAssets             int     `yaml:"max_core_assets"`                 // Default: 3
	ExpiryDays                int     `yaml:"expiry_days"`                     // Default: 30
	ExtensionLimit            int     `yaml:"extension_limit"`                 // Default: 2
	PerformanceCheckDays      int     `yaml:"performance_check_days"`          // Default: 7, window before expiry
	UnderperformanceDays      int     `yaml:"underperformance_days"`           // Default: 14, trailing window
	UnderperformanceThreshold float64 `yaml:"underperformance_threshold"`      // Default: 0.10, vs benchmark
	SmartOverrideBudget       int     `yaml:"smart_diversification_overrides"` // Default: 2, per rebalance cycle
}

// DefaultConfig returns the baseline core asset thresholds.
func DefaultConfig() Config {
	return Config{
		MaxCoreAssets:             3,
		ExpiryDays:                30,
		ExtensionLimit:            2,
		PerformanceCheckDays:      7,
		UnderperformanceDays:      14,
		UnderperformanceThreshold: 0.10,
		SmartOverrideBudget:       2,
	}
}

// Validate checks the configuration at construction time.
func (c Config) Validate() error {
	if c.MaxCoreAssets < 1 {
		return fmt.Errorf("coreasset: max_core_assets %d must be >= 1", c.MaxCoreAssets)
	}
	if c.ExpiryDays < 1 {
		return fmt.Errorf("coreasset: expiry_days %d must be >= 1", c.ExpiryDays)
	}
	if c.ExtensionLimit < 0 {
		return fmt.Errorf("coreasset: extension_limit %d must be >= 0", c.ExtensionLimit)
	}
	if c.UnderperformanceThreshold < 0 {
		return fmt.Errorf("coreasset: underperformance_threshold %.3f must be >= 0", c.UnderperformanceThreshold)
	}
	if c.SmartOverrideBudget < 0 {
		return fmt.Errorf("coreasset: smart_diversification_overrides %d must be >= 0", c.SmartOverrideBudget)
	}
	return nil
}

// Record is the lifecycle state for one core designation.
type Record struct {
	DesignatedDate             time.Time
	ExpiryDate                 time.Time
	ExtensionsUsed             int
	LastPerformanceCheck       time.Time
	UnderperformanceClockStart *time.Time
	DesignationScore           float64
}

// ExtendOutcome is the result of a near-expiry lifecycle check.
type ExtendOutcome string

const (
	OutcomeNotCore  ExtendOutcome = "not_core"
	OutcomeActive   ExtendOutcome = "active"   // Not yet within the check window
	OutcomeExtended ExtendOutcome = "extended" // Expiry pushed out, extension consumed
	OutcomeLapsed   ExtendOutcome = "lapsed"   // Extension budget exhausted
	OutcomeRevoked  ExtendOutcome = "revoked"  // Underperformance, beats extension eligibility
)

// ReturnProvider supplies trailing returns for underperformance checks.
// Implemented by the host's market data layer.
type ReturnProvider interface {
	TrailingReturn(asset string, from, to time.Time) (float64, error)
	BenchmarkReturn(from, to time.Time) (float64, error)
}

// Manager owns the core asset registry and the per-cycle smart
// diversification override budget. Only the live cycle is accounted;
// cycles advance, they never interleave.
type Manager struct {
	cfg           Config
	records       map[string]*Record
	returns       ReturnProvider
	cycleID       string
	overridesUsed int
}

// NewManager creates a core asset manager, validating eagerly. returns may
// be nil, in which case underperformance checks are skipped.
func NewManager(cfg Config, returns ReturnProvider) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:     cfg,
		records: make(map[string]*Record),
		returns: returns,
	}, nil
}

func (m *Manager) Name() string  { return regime.SystemCoreAssetImmunity }
func (m *Manager) Priority() int { return protection.PriorityCoreAssetImmunity }

// CanDesignate reports whether a designation of the asset would succeed at
// date. Callers spending a budget on designation should check this first so
// a cap or re-designation no-op does not burn the budget.
func (m *Manager) CanDesignate(asset string, date time.Time) bool {
	if m.IsCoreAsset(asset, date) {
		return false
	}
	return m.activeCount(date) < m.cfg.MaxCoreAssets
}

// DesignateCoreAsset registers the asset as core. Designating beyond the
// cap or re-designating an active core asset is a no-op returning false,
// not an error. Score threshold eligibility is the caller's concern: the
// bucket/diversification logic evaluates it before calling in.
func (m *Manager) DesignateCoreAsset(asset string, date time.Time, score float64) bool {
	if !m.CanDesignate(asset, date) {
		return false
	}
	m.records[asset] = &Record{
		DesignatedDate:   date,
		ExpiryDate:       date.AddDate(0, 0, m.cfg.ExpiryDays),
		DesignationScore: score,
	}
	log.Info().Str("asset", asset).Float64("score", score).
		Time("expiry", m.records[asset].ExpiryDate).Msg("Core asset designated")
	return true
}

// IsCoreAsset reports whether the asset holds an unexpired designation at
// date. Expired records are pruned on read.
func (m *Manager) IsCoreAsset(asset string, date time.Time) bool {
	rec, ok := m.records[asset]
	if !ok {
		return false
	}
	if date.After(rec.ExpiryDate) {
		delete(m.records, asset)
		return false
	}
	return true
}

// GrantsClosureImmunity reports whether closes of this asset are blocked by
// core immunity. Consulted by the orchestrator; only a CRITICAL regime
// transition may override it.
func (m *Manager) GrantsClosureImmunity(asset string, date time.Time) bool {
	return m.IsCoreAsset(asset, date)
}

// CheckExpiryAndExtend runs the near-expiry lifecycle decision. Within the
// performance check window of expiry: persistent underperformance revokes
// immediately regardless of remaining extensions; otherwise the designation
// is extended while budget remains, else it lapses at expiry.
func (m *Manager) CheckExpiryAndExtend(asset string, date time.Time) ExtendOutcome {
	if !m.IsCoreAsset(asset, date) {
		return OutcomeNotCore
	}
	rec := m.records[asset]

	checkWindow := rec.ExpiryDate.AddDate(0, 0, -m.cfg.PerformanceCheckDays)
	if date.Before(checkWindow) {
		return OutcomeActive
	}
	rec.LastPerformanceCheck = date

	if m.isUnderperforming(asset, date) {
		delete(m.records, asset)
		log.Warn().Str("asset", asset).Msg("Core asset revoked for underperformance")
		return OutcomeRevoked
	}

	if rec.ExtensionsUsed < m.cfg.ExtensionLimit {
		rec.ExtensionsUsed++
		rec.ExpiryDate = rec.ExpiryDate.AddDate(0, 0, m.cfg.ExpiryDays)
		log.Info().Str("asset", asset).Int("extensions_used", rec.ExtensionsUsed).
			Time("expiry", rec.ExpiryDate).Msg("Core asset designation extended")
		return OutcomeExtended
	}

	// Budget exhausted: the designation lapses at its current expiry date
	return OutcomeLapsed
}

// RecordPerformanceCheck maintains the underperformance clock outside the
// expiry window. Once underperformance has persisted for the configured
// trailing period the designation is auto-revoked regardless of remaining
// extensions. Returns true when the asset was revoked.
func (m *Manager) RecordPerformanceCheck(asset string, date time.Time) bool {
	rec, ok := m.records[asset]
	if !ok || !m.IsCoreAsset(asset, date) {
		return false
	}
	rec.LastPerformanceCheck = date

	if !m.isUnderperforming(asset, date) {
		rec.UnderperformanceClockStart = nil
		return false
	}
	if rec.UnderperformanceClockStart == nil {
		started := date
		rec.UnderperformanceClockStart = &started
		return false
	}
	persisted := date.Sub(*rec.UnderperformanceClockStart)
	if persisted >= time.Duration(m.cfg.UnderperformanceDays)*24*time.Hour {
		delete(m.records, asset)
		log.Warn().Str("asset", asset).Dur("persisted", persisted).
			Msg("Core asset revoked, underperformance persisted past limit")
		return true
	}
	return false
}

// ConsumeSmartOverride draws one unit from the per-rebalance-cycle budget
// that lets a core asset bypass the bucket/diversification constraint.
// Returns false once the cycle's budget is exhausted; the budget resets
// with each new cycle id, never cumulatively across a run.
func (m *Manager) ConsumeSmartOverride(cycleID string) bool {
	if cycleID != m.cycleID {
		m.cycleID = cycleID
		m.overridesUsed = 0
	}
	if m.overridesUsed >= m.cfg.SmartOverrideBudget {
		return false
	}
	m.overridesUsed++
	return true
}

// ResetCycle starts fresh accounting for the given cycle.
func (m *Manager) ResetCycle(cycleID string) {
	m.cycleID = cycleID
	m.overridesUsed = 0
}

// ActiveRecord returns a copy of the asset's designation record, if any.
func (m *Manager) ActiveRecord(asset string) (Record, bool) {
	rec, ok := m.records[asset]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Evaluate implements the protection guard capability: closes and downward
// resizes of a core asset are blocked while the designation is active.
func (m *Manager) Evaluate(req *protection.Request) protection.Result {
	blocks := false
	reason := "core: not a core asset"

	if req.IsReduction() && m.GrantsClosureImmunity(req.Asset, req.CurrentDate) {
		rec := m.records[req.Asset]
		blocks = true
		reason = fmt.Sprintf("core: closure immunity until %s", rec.ExpiryDate.Format("2006-01-02"))
	} else if !req.IsReduction() {
		reason = "core: not applicable to opens"
	}

	return protection.Result{
		SystemName:   m.Name(),
		BlocksAction: blocks,
		Reason:       reason,
		Priority:     m.Priority(),
	}
}

func (m *Manager) activeCount(date time.Time) int {
	count := 0
	for asset := range m.records {
		if m.IsCoreAsset(asset, date) {
			count++
		}
	}
	return count
}

// isUnderperforming compares the asset's trailing return against benchmark
// over the configured window. Missing data fails open for revocation: a
// designation is never revoked on a data error.
func (m *Manager) isUnderperforming(asset string, date time.Time) bool {
	if m.returns == nil {
		return false
	}
	from := date.AddDate(0, 0, -m.cfg.UnderperformanceDays)

	assetRet, err := m.returns.TrailingReturn(asset, from, date)
	if err != nil {
		log.Warn().Err(err).Str("asset", asset).Msg("Trailing return unavailable, skipping underperformance check")
		return false
	}
	benchRet, err := m.returns.BenchmarkReturn(from, date)
	if err != nil {
		log.Warn().Err(err).Msg("Benchmark return unavailable, skipping underperformance check")
		return false
	}
	return assetRet-benchRet < -m.cfg.UnderperformanceThreshold
}
