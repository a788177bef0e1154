package backtest

import (
	"github.com/quarrylabs/regimeguard/internal/config"
	"github.com/quarrylabs/regimeguard/internal/protection"
	"github.com/quarrylabs/regimeguard/internal/protection/coreasset"
	"github.com/quarrylabs/regimeguard/internal/protection/grace"
	"github.com/quarrylabs/regimeguard/internal/protection/holding"
	"github.com/quarrylabs/regimeguard/internal/protection/whipsaw"
)

// Managers bundles the stateful guard managers for one run. The runner
// needs the concrete types for the explicit record calls that the
// orchestrator deliberately never makes itself.
type Managers struct {
	Whipsaw *whipsaw.Manager
	Grace   *grace.Manager
	Holding *holding.Manager
	Core    *coreasset.Manager
}

// NewManagers constructs fresh guard instances from configuration. Every
// backtest run starts from a cold state at t0; nothing is shared across
// runs.
func NewManagers(cfg *config.Protection, returns coreasset.ReturnProvider) (*Managers, error) {
	ws, err := whipsaw.NewManager(cfg.Whipsaw)
	if err != nil {
		return nil, err
	}
	gr, err := grace.NewManager(cfg.Grace)
	if err != nil {
		return nil, err
	}
	hold, err := holding.NewManager(cfg.Holding)
	if err != nil {
		return nil, err
	}
	core, err := coreasset.NewManager(cfg.CoreAsset, returns)
	if err != nil {
		return nil, err
	}
	return &Managers{Whipsaw: ws, Grace: gr, Holding: hold, Core: core}, nil
}

// Guards returns the managers as the orchestrator's guard pipeline.
func (m *Managers) Guards() []protection.Guard {
	return []protection.Guard{m.Core, m.Grace, m.Holding, m.Whipsaw}
}
