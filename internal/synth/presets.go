package synth

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
)

//go:embed presets.yaml
var presetsYAML []byte

// PresetLeg is the catalog spelling of a leg.
type PresetLeg struct {
	Exchange string `yaml:"exchange" json:"exchange"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Side     string `yaml:"side" json:"side"`
}

// Preset is a named example chain.
type Preset struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Depth       int         `yaml:"depth" json:"depth"`
	Legs        []PresetLeg `yaml:"legs" json:"legs"`
}

// EngineLegs converts the preset to engine legs.
func (p Preset) EngineLegs() []engine.Leg {
	legs := make([]engine.Leg, len(p.Legs))
	for i, l := range p.Legs {
		legs[i] = engine.Leg{
			Exchange: adapter.Exchange(l.Exchange),
			Symbol:   l.Symbol,
			Side:     engine.ParseSide(l.Side),
		}
	}
	return legs
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets parses a YAML catalog and validates every chain.
func LoadPresets(data []byte) ([]Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("synth: parse presets: %w", err)
	}

	v := engine.NewValidator()
	r := engine.NewResolver()
	for _, p := range f.Presets {
		legs := p.EngineLegs()
		if err := v.Validate(legs); err != nil {
			return nil, fmt.Errorf("synth: preset %q: %w", p.Name, err)
		}
		if _, err := r.ResolveChain(legs); err != nil {
			return nil, fmt.Errorf("synth: preset %q: %w", p.Name, err)
		}
	}
	return f.Presets, nil
}

// Presets returns the built-in example catalog.
func Presets() []Preset {
	presets, err := LoadPresets(presetsYAML)
	if err != nil {
		panic(err)
	}
	return presets
}

// FindPreset looks a built-in preset up by name.
func FindPreset(name string) (Preset, bool) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
