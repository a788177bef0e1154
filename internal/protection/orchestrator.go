package protection

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quarrylabs/regimeguard/internal/regime"
)

// Orchestrator composes the registered guards into one ordered evaluation
// pipeline. It never mutates guard state: on approval the caller is
// responsible for invoking each guard's record methods, which keeps
// evaluation replay-safe for backtests.
type Orchestrator struct {
	guards []Guard
}

// NewOrchestrator builds an orchestrator over the given guards, held in
// ascending priority order. Adding a guard means registering it here, not
// editing a chain of conditionals.
func NewOrchestrator(guards ...Guard) *Orchestrator {
	ordered := make([]Guard, len(guards))
	copy(ordered, guards)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return &Orchestrator{guards: ordered}
}

// Evaluate runs the full pipeline for one request. transition may be nil
// when no regime change is in effect. Every call produces exactly one
// Decision; faults inside a guard fail closed for that guard only.
func (o *Orchestrator) Evaluate(req *Request, transition *regime.Transition) Decision {
	started := time.Now()

	if err := req.Validate(); err != nil {
		return Decision{
			Approved:       false,
			Reason:         fmt.Sprintf("invalid request: %v", err),
			Asset:          req.Asset,
			Action:         req.Action,
			EvaluatedAt:    started,
			DecisionTimeMs: float64(time.Since(started).Microseconds()) / 1000.0,
		}
	}

	hierarchy := make([]Result, 0, len(o.guards))
	for _, g := range o.guards {
		hierarchy = append(hierarchy, o.runGuard(g, req))
	}

	var blocking []Result
	for _, res := range hierarchy {
		if res.BlocksAction {
			blocking = append(blocking, res)
		}
	}
	sort.SliceStable(blocking, func(i, j int) bool {
		return blocking[i].Priority < blocking[j].Priority
	})

	decision := Decision{
		Asset:             req.Asset,
		Action:            req.Action,
		EvaluatedAt:       started,
		DecisionHierarchy: hierarchy,
	}

	switch {
	case len(blocking) == 0:
		decision.Approved = true
		decision.Reason = "All protection checks passed"

	case transition != nil && allOverridable(blocking, transition):
		// Override is all-or-nothing: a partially overridden block set
		// would yield an incoherent partially-executed action.
		decision.Approved = true
		decision.OverrideApplied = true
		decision.OverrideReason = fmt.Sprintf("%s regime transition %s->%s overrides %d protection block(s)",
			transition.Severity, transition.FromRegime, transition.ToRegime, len(blocking))
		decision.Reason = decision.OverrideReason

	default:
		decision.Approved = false
		decision.Reason = blocking[0].Reason
		for _, res := range blocking {
			decision.BlockingSystems = append(decision.BlockingSystems, res.SystemName)
		}
	}

	decision.DecisionTimeMs = float64(time.Since(started).Microseconds()) / 1000.0

	log.Debug().
		Str("asset", req.Asset).
		Str("action", string(req.Action)).
		Bool("approved", decision.Approved).
		Bool("override", decision.OverrideApplied).
		Strs("blocking", decision.BlockingSystems).
		Msg("Protection decision")

	return decision
}

// runGuard evaluates one guard with timing and panic isolation. A panicking
// guard counts as blocking (safety bias is always toward blocking, never
// toward silently allowing an unprotected action) and the fault is recorded
// in the result metadata so the audit trail stays complete.
func (o *Orchestrator) runGuard(g Guard, req *Request) (res Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("system", g.Name()).
				Str("asset", req.Asset).
				Interface("panic", r).
				Msg("Guard evaluation fault, failing closed")
			res = Result{
				SystemName:   g.Name(),
				BlocksAction: true,
				Reason:       fmt.Sprintf("%s evaluation fault, failing closed", g.Name()),
				Priority:     g.Priority(),
				Metadata:     map[string]interface{}{"fault": fmt.Sprint(r)},
			}
		}
		res.CheckTimeMs = float64(time.Since(started).Microseconds()) / 1000.0
	}()

	return g.Evaluate(req)
}

func allOverridable(blocking []Result, transition *regime.Transition) bool {
	for _, res := range blocking {
		if !transition.CanOverrideProtection(res.SystemName) {
			return false
		}
	}
	return true
}
