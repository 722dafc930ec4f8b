package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
	ExpectedFinal   *FixtureFinal           `json:"expected_final,omitempty"`
}

// FixtureConfig flattens the colony and policy parameters. Fields absent from
// the JSON keep their defaults.
type FixtureConfig struct {
	EnergyCost         uint64             `json:"energy_cost"`
	InitialEnergy      uint64             `json:"initial_energy"`
	InitialStability   uint64             `json:"initial_stability"`
	StabilityThreshold uint64             `json:"stability_threshold"`
	EnergyThreshold    uint64             `json:"energy_threshold"`
	Trigger            colony.TriggerMode `json:"trigger"`
	MaxRiskScore       uint64             `json:"max_risk_score"`
	MinConfidence      uint64             `json:"min_confidence"`
	MaxPayloadBytes    int                `json:"max_payload_bytes"`
}

// FixtureInteraction mirrors replay.Interaction with JSON tags.
type FixtureInteraction struct {
	TurnID  string `json:"turn_id"`
	Kind    string `json:"kind"`
	Caller  string `json:"caller"`
	Payload string `json:"payload"`
}

// FixtureExpectedResult captures the expected action label per turn.
type FixtureExpectedResult struct {
	TurnID string `json:"turn_id"`
	Action string `json:"action"`
}

// FixtureFinal lists colony figures to check after the last turn. Nil fields are not checked.
type FixtureFinal struct {
	CellCount      *uint64 `json:"cell_count,omitempty"`
	TotalThoughts  *uint64 `json:"total_thoughts,omitempty"`
	AverageEnergy  *uint64 `json:"average_energy,omitempty"`
	EvolutionStage *uint64 `json:"evolution_stage,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// DefaultFixtureConfig mirrors creature.DefaultConfig.
func DefaultFixtureConfig() FixtureConfig {
	d := creature.DefaultConfig()
	return FixtureConfig{
		EnergyCost:         d.Colony.Cell.EnergyCost,
		InitialEnergy:      d.Colony.Cell.InitialEnergy,
		InitialStability:   d.Colony.Cell.InitialStability,
		StabilityThreshold: d.Colony.StabilityThreshold,
		EnergyThreshold:    d.Colony.EnergyThreshold,
		Trigger:            d.Colony.Trigger,
		MaxRiskScore:       d.Policy.MaxRiskScore,
		MinConfidence:      d.Policy.MinConfidence,
		MaxPayloadBytes:    d.Policy.MaxPayloadBytes,
	}
}

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: DefaultFixtureConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToInteraction converts a FixtureInteraction to a domain Interaction.
func (fi *FixtureInteraction) ToInteraction() Interaction {
	return Interaction{
		TurnID:  fi.TurnID,
		Kind:    fi.Kind,
		Caller:  fi.Caller,
		Payload: []byte(fi.Payload),
	}
}

// ToInteractions converts every fixture interaction.
func (f *Fixture) ToInteractions() []Interaction {
	out := make([]Interaction, len(f.Interactions))
	for i := range f.Interactions {
		out[i] = f.Interactions[i].ToInteraction()
	}
	return out
}

// ToReplayConfig converts a FixtureConfig to a service configuration.
func (fc *FixtureConfig) ToReplayConfig() creature.Config {
	cfg := creature.DefaultConfig()
	cfg.Colony.Cell.EnergyCost = fc.EnergyCost
	cfg.Colony.Cell.InitialEnergy = fc.InitialEnergy
	cfg.Colony.Cell.InitialStability = fc.InitialStability
	cfg.Colony.StabilityThreshold = fc.StabilityThreshold
	cfg.Colony.EnergyThreshold = fc.EnergyThreshold
	cfg.Colony.Trigger = fc.Trigger
	cfg.Policy.MaxRiskScore = fc.MaxRiskScore
	cfg.Policy.MinConfidence = fc.MinConfidence
	cfg.Policy.MaxPayloadBytes = fc.MaxPayloadBytes
	return cfg
}

// #endregion fixture-loader

// #region fixture-check

// Check compares replay output with the fixture's expectations and returns one
// line per mismatch.
func (f *Fixture) Check(results []Result, final colony.Snapshot) []string {
	var diffs []string
	if len(results) != len(f.ExpectedResults) {
		diffs = append(diffs, fmt.Sprintf("expected %d results, got %d", len(f.ExpectedResults), len(results)))
	}
	for i, want := range f.ExpectedResults {
		if i >= len(results) {
			break
		}
		got := results[i]
		if got.TurnID != want.TurnID {
			diffs = append(diffs, fmt.Sprintf("turn %d: expected turn_id=%s, got %s", i, want.TurnID, got.TurnID))
		}
		if got.Label() != want.Action {
			diffs = append(diffs, fmt.Sprintf("turn %d (%s): expected action=%s, got %s", i, want.TurnID, want.Action, got.Label()))
		}
	}

	if e := f.ExpectedFinal; e != nil {
		check := func(name string, want *uint64, got uint64) {
			if want != nil && *want != got {
				diffs = append(diffs, fmt.Sprintf("final %s: expected %d, got %d", name, *want, got))
			}
		}
		check("cell_count", e.CellCount, final.CellCount)
		check("total_thoughts", e.TotalThoughts, final.Metrics.TotalThoughts)
		check("average_energy", e.AverageEnergy, final.Metrics.AverageEnergy)
		check("evolution_stage", e.EvolutionStage, final.Metrics.EvolutionStage)
	}
	return diffs
}

// #endregion fixture-check
