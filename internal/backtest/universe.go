package backtest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UniverseAsset is one tradeable symbol in the run's universe.
type UniverseAsset struct {
	Symbol string `yaml:"symbol"`
	Bucket string `yaml:"bucket"` // Diversification bucket label
}

// Universe is the asset fixture for a run.
type Universe struct {
	Benchmark string          `yaml:"benchmark"`
	Assets    []UniverseAsset `yaml:"assets"`
}

// LoadUniverse reads an asset universe fixture from a YAML file.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe fixture: %w", err)
	}
	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse universe YAML: %w", err)
	}
	if len(u.Assets) == 0 {
		return nil, fmt.Errorf("universe fixture %s lists no assets", path)
	}
	return &u, nil
}

// Symbols returns the universe's symbols in fixture order.
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.Assets))
	for _, a := range u.Assets {
		out = append(out, a.Symbol)
	}
	return out
}
