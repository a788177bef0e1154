package regime

// Protection system names as they appear in decision hierarchies. The
// override policy is keyed on these, so they must stay in sync with the
// guard implementations.
const (
	SystemCoreAssetImmunity = "core_asset_immunity"
	SystemGracePeriod       = "grace_period"
	SystemHoldingPeriod     = "holding_period"
	SystemWhipsaw           = "whipsaw_protection"
)

// overrideTable is the single source of truth for which severities may
// bypass which protection systems. CRITICAL overrides everything including
// whipsaw; HIGH may bypass grace and holding periods but never whipsaw or
// core immunity; LOW and MODERATE override nothing.
var overrideTable = map[Severity]map[string]bool{
	SeverityLow:      {},
	SeverityModerate: {},
	SeverityHigh: {
		SystemGracePeriod:   true,
		SystemHoldingPeriod: true,
	},
	SeverityCritical: {
		SystemWhipsaw:           true,
		SystemGracePeriod:       true,
		SystemHoldingPeriod:     true,
		SystemCoreAssetImmunity: true,
	},
}

// CanOverride reports whether a transition of the given severity may bypass
// the named protection system. Unknown systems are never overridable.
func CanOverride(severity Severity, system string) bool {
	allowed, ok := overrideTable[severity]
	if !ok {
		return false
	}
	return allowed[system]
}
