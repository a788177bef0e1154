package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quarrylabs/regimeguard/internal/audit"
	"github.com/quarrylabs/regimeguard/internal/config"
	"github.com/quarrylabs/regimeguard/internal/protection"
	"github.com/quarrylabs/regimeguard/internal/regime"
)

// Runner walks the simulated calendar and drives the orchestrator once per
// (asset, proposed action) per rebalance date.
type Runner struct {
	cfg      Config
	pcfg     *config.Protection
	managers *Managers
	orch     *protection.Orchestrator
	scorer   Scorer
	regimes  RegimeSource
	sink     audit.Sink
	observer Observer
}

// NewRunner wires a runner. sink and observer may be nil.
func NewRunner(cfg Config, pcfg *config.Protection, managers *Managers, scorer Scorer, regimes RegimeSource, sink audit.Sink, observer Observer) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = audit.LogSink{}
	}
	return &Runner{
		cfg:      cfg,
		pcfg:     pcfg,
		managers: managers,
		orch:     protection.NewOrchestrator(managers.Guards()...),
		scorer:   scorer,
		regimes:  regimes,
		sink:     sink,
		observer: observer,
	}, nil
}

// Run executes the backtest. Single-threaded by design: guard state is
// defined relative to a monotonically advancing current date.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	positions := make(map[string]*Position)
	metrics := RunMetrics{BlocksBySystem: make(map[string]int)}

	var lastRegime string
	log.Info().Str("run_id", runID).
		Time("start", r.cfg.Start).Time("end", r.cfg.End).
		Int("assets", len(r.cfg.Assets)).Msg("Backtest run starting")

	for date := r.cfg.Start; !date.After(r.cfg.End); date = date.AddDate(0, 0, r.cfg.StepDays) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled: %w", err)
		}

		obs, err := r.regimes.RegimeAt(date)
		if err != nil {
			return nil, fmt.Errorf("regime lookup at %s: %w", date.Format("2006-01-02"), err)
		}

		var transition *regime.Transition
		if lastRegime != "" && obs.Label != lastRegime {
			transition = regime.NewTransition(r.pcfg.Classifier, lastRegime, obs.Label, date, obs.Confidence, obs.Momentum, nil)
			metrics.RegimeChanges++
			log.Info().Str("from", lastRegime).Str("to", obs.Label).
				Str("severity", transition.Severity.String()).
				Time("date", date).Msg("Regime transition")
		}
		lastRegime = obs.Label

		cycleID := date.Format("2006-01-02")
		r.managers.Core.ResetCycle(cycleID)

		for _, asset := range r.cfg.Assets {
			if err := r.evaluateAsset(ctx, asset, date, cycleID, obs, transition, positions, &metrics); err != nil {
				return nil, err
			}
		}
	}

	result := &RunResult{
		RunID:          runID,
		Start:          r.cfg.Start,
		End:            r.cfg.End,
		Metrics:        metrics,
		FinalPositions: positions,
		Elapsed:        time.Since(started),
	}
	log.Info().Str("run_id", runID).
		Int("evaluations", metrics.Evaluations).
		Int("approved", metrics.Approved).
		Int("blocked", metrics.Blocked).
		Dur("elapsed", result.Elapsed).
		Msg("Backtest run complete")
	return result, nil
}

func (r *Runner) evaluateAsset(ctx context.Context, asset string, date time.Time, cycleID string, obs Observation, transition *regime.Transition, positions map[string]*Position, metrics *RunMetrics) error {
	score, err := r.scorer.Score(asset, date, obs.Label)
	if err != nil {
		return fmt.Errorf("scoring %s at %s: %w", asset, date.Format("2006-01-02"), err)
	}
	threshold := r.pcfg.ScoreThreshold

	pos, held := positions[asset]
	if !held {
		if score >= r.cfg.OpenThreshold && len(positions) < r.cfg.MaxPositions {
			r.proposeOpen(ctx, asset, date, cycleID, score, transition, positions, metrics)
		}
		return nil
	}

	// Score recovered during grace: restore original size, clear decay
	if restored, ok := r.managers.Grace.HandleRecovery(asset, score, threshold, date); ok {
		pos.Size = restored
		log.Debug().Str("asset", asset).Float64("size", restored).Msg("Grace recovery, size restored")
	}

	// Active grace window: decay instead of closing
	if r.managers.Grace.IsInGracePeriod(asset, date) {
		newSize, reason := r.managers.Grace.ApplyDecay(asset, date)
		if r.managers.Grace.IsInGracePeriod(asset, date) {
			pos.Size = newSize
			return nil
		}
		// Window ran its course, close out the residual position
		r.proposeClose(ctx, asset, date, score, pos, reason, transition, positions, metrics)
		return nil
	}

	// Core lifecycle bookkeeping happens once per rebalance date
	r.managers.Core.CheckExpiryAndExtend(asset, date)
	r.managers.Core.RecordPerformanceCheck(asset, date)

	if score >= threshold {
		return nil
	}

	if apply, reason := r.managers.Grace.ShouldApplyGracePeriod(asset, score, threshold, date); apply {
		r.managers.Grace.StartGracePeriod(asset, score, pos.Size, date, reason)
		metrics.GraceStarts++
		return nil
	}

	r.proposeClose(ctx, asset, date, score, pos, fmt.Sprintf("score %.3f below threshold %.3f", score, threshold), transition, positions, metrics)
	return nil
}

func (r *Runner) proposeOpen(ctx context.Context, asset string, date time.Time, cycleID string, score float64, transition *regime.Transition, positions map[string]*Position, metrics *RunMetrics) {
	req := &protection.Request{
		Asset:       asset,
		Action:      protection.ActionOpen,
		CurrentDate: date,
		TargetSize:  r.cfg.PositionSize,
		TargetScore: &score,
		Reason:      fmt.Sprintf("score %.3f above open threshold %.3f", score, r.cfg.OpenThreshold),
		Metadata:    map[string]interface{}{"cycle_id": cycleID},
	}

	decision := r.orch.Evaluate(req, transition)
	r.record(ctx, &decision, metrics)
	if !decision.Approved {
		return
	}

	// Approved: the record step is an explicit second call, never implicit
	// inside evaluation
	r.managers.Whipsaw.RecordPositionEvent(asset, protection.ActionOpen, date, r.cfg.PositionSize, req.Reason)
	r.managers.Holding.RecordOpen(asset, date)
	positions[asset] = &Position{Size: r.cfg.PositionSize, EntryDate: date, EntryScore: score}
	metrics.Opens++

	// Exceptional scores earn a core designation, drawing on the cycle's
	// smart diversification override budget. Eligibility comes first so an
	// ineligible designation never burns a budget unit.
	if score >= r.cfg.CoreDesignationScore &&
		r.managers.Core.CanDesignate(asset, date) &&
		r.managers.Core.ConsumeSmartOverride(cycleID) {
		if r.managers.Core.DesignateCoreAsset(asset, date, score) {
			metrics.CoreDesignations++
		}
	}
}

func (r *Runner) proposeClose(ctx context.Context, asset string, date time.Time, score float64, pos *Position, reason string, transition *regime.Transition, positions map[string]*Position, metrics *RunMetrics) {
	entryDate := pos.EntryDate
	entryScore := pos.EntryScore
	req := &protection.Request{
		Asset:              asset,
		Action:             protection.ActionClose,
		CurrentDate:        date,
		CurrentSize:        pos.Size,
		CurrentScore:       &score,
		Reason:             reason,
		PositionEntryDate:  &entryDate,
		PositionEntryScore: &entryScore,
	}

	decision := r.orch.Evaluate(req, transition)
	r.record(ctx, &decision, metrics)
	if !decision.Approved {
		return
	}

	r.managers.Whipsaw.RecordPositionEvent(asset, protection.ActionClose, date, pos.Size, reason)
	r.managers.Holding.RecordClose(asset)
	delete(positions, asset)
	metrics.Closes++
}

func (r *Runner) record(ctx context.Context, decision *protection.Decision, metrics *RunMetrics) {
	metrics.Evaluations++
	if decision.Approved {
		metrics.Approved++
	} else {
		metrics.Blocked++
	}
	if decision.OverrideApplied {
		metrics.Overrides++
	}
	for _, name := range decision.BlockingSystems {
		metrics.BlocksBySystem[name]++
	}

	if err := r.sink.Publish(ctx, decision.ToMap()); err != nil {
		log.Warn().Err(err).Msg("Decision publish failed, dropping")
	}
	if r.observer != nil {
		r.observer.Observe(decision)
	}
}
