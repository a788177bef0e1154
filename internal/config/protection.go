// Package config loads and validates the protection engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/quarrylabs/regimeguard/internal/protection/coreasset"
	"github.com/quarrylabs/regimeguard/internal/protection/grace"
	"github.com/quarrylabs/regimeguard/internal/protection/holding"
	"github.com/quarrylabs/regimeguard/internal/protection/whipsaw"
	"github.com/quarrylabs/regimeguard/internal/regime"
)

// Protection is the full configuration for the decision engine: one typed,
// validated struct per guard plus the regime severity classifier.
type Protection struct {
	Whipsaw    whipsaw.Config          `yaml:"whipsaw"`
	Grace      grace.Config            `yaml:"grace_period"`
	Holding    holding.Config          `yaml:"holding_period"`
	CoreAsset  coreasset.Config        `yaml:"core_asset"`
	Classifier regime.ClassifierConfig `yaml:"regime_classifier"`

	// ScoreThreshold is the combined-score level below which grace is
	// considered and closes are proposed.
	ScoreThreshold float64 `yaml:"score_threshold"` // Default: 0.5
}

// Default returns the baseline configuration.
func Default() *Protection {
	return &Protection{
		Whipsaw:        whipsaw.DefaultConfig(),
		Grace:          grace.DefaultConfig(),
		Holding:        holding.DefaultConfig(),
		CoreAsset:      coreasset.DefaultConfig(),
		Classifier:     regime.DefaultClassifierConfig(),
		ScoreThreshold: 0.5,
	}
}

// Load reads and validates a protection configuration from a YAML file.
func Load(path string) (*Protection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protection config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse protection YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section, collecting all violations into one error
// so startup failures are reported in a single pass.
func (p *Protection) Validate() error {
	var errs []string
	for _, err := range []error{
		p.Whipsaw.Validate(),
		p.Grace.Validate(),
		p.Holding.Validate(),
		p.CoreAsset.Validate(),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if p.ScoreThreshold <= 0 || p.ScoreThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("score_threshold %.3f must be in (0, 1)", p.ScoreThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid protection config: %v", errs)
	}
	return nil
}

// Save writes the configuration back to disk.
func (p *Protection) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal protection config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write protection config: %w", err)
	}
	return nil
}

// DefaultPath returns the conventional location of the protection config.
func DefaultPath() string {
	return filepath.Join("config", "protection.yaml")
}
