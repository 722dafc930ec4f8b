package colony

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
)

// ErrCellNotFound means no cell is registered for the identity.
var ErrCellNotFound = errors.New("cell not found")

// #region trigger-mode

// TriggerMode selects how the evolution trigger reacts to sustained threshold crossings.
type TriggerMode string

const (
	// TriggerEdge fires once each time the colony crosses into the evolution region.
	TriggerEdge TriggerMode = "edge"
	// TriggerLevel fires on every thought while the colony stays in the region.
	TriggerLevel TriggerMode = "level"
)

// #endregion trigger-mode

// #region config

// Config holds colony thresholds and the per-cell parameters new cells get.
type Config struct {
	Cell               cell.Config `yaml:"cell"`
	StabilityThreshold uint64      `yaml:"stability_threshold" validate:"lte=100"`
	EnergyThreshold    uint64      `yaml:"energy_threshold"`
	Trigger            TriggerMode `yaml:"trigger" validate:"oneof=edge level"`
}

// DefaultConfig returns the reference thresholds (stability > 90, average energy > 80).
func DefaultConfig() Config {
	return Config{
		Cell:               cell.DefaultConfig(),
		StabilityThreshold: 90,
		EnergyThreshold:    80,
		Trigger:            TriggerEdge,
	}
}

// #endregion config

// #region metrics

// Metrics are derived colony-wide figures.
type Metrics struct {
	AverageEnergy  uint64 `json:"average_energy"`
	TotalThoughts  uint64 `json:"total_thoughts"`
	StabilityIndex uint64 `json:"stability_index"` // 0-100
	EvolutionStage uint64 `json:"evolution_stage"`
}

// Aggregate is the colony-wide state outside the cell map.
type Aggregate struct {
	Scores         dimension.Vector `json:"scores"`
	TotalEnergy    uint64           `json:"total_energy"`
	CellCount      uint64           `json:"cell_count"`
	Metrics        Metrics          `json:"metrics"`
	AboveThreshold bool             `json:"above_threshold"` // edge-trigger latch
}

// Snapshot is everything needed to rebuild a colony.
type Snapshot struct {
	Aggregate
	Cells []cell.State
}

// #endregion metrics

// #region commit-hooks

// Registration describes a newly created cell and the aggregate after it joined.
type Registration struct {
	Cell      cell.State
	Aggregate Aggregate
}

// Change describes one recorded thought: the cell after the update (without
// its thought log), the new thought, and the aggregate after folding it in.
type Change struct {
	Cell      cell.State
	Thought   quantum.Thought
	Aggregate Aggregate
	Evolved   bool
}

// RegisterFunc persists a registration. A returned error aborts it.
type RegisterFunc func(ctx context.Context, r Registration) error

// CommitFunc persists a change before it becomes visible. A returned error aborts it.
type CommitFunc func(ctx context.Context, ch Change) error

// #endregion commit-hooks
