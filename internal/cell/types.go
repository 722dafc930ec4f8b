package cell

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
)

var (
	// ErrInsufficientEnergy means the cell cannot pay the cost of a thought.
	ErrInsufficientEnergy = errors.New("insufficient energy for thought generation")
	// ErrInvalidDimensionalUpdate means the merged position failed validation.
	ErrInvalidDimensionalUpdate = errors.New("invalid dimensional update")
)

// #region config

// Config holds per-cell energy parameters.
type Config struct {
	EnergyCost       uint64 `yaml:"energy_cost" validate:"gte=1"`
	InitialEnergy    uint64 `yaml:"initial_energy"`
	InitialStability uint64 `yaml:"initial_stability"`
}

// DefaultConfig returns the reference energy parameters.
func DefaultConfig() Config {
	return Config{
		EnergyCost:       10,
		InitialEnergy:    100,
		InitialStability: 100,
	}
}

// #endregion config

// #region thought-factory

// ThoughtFactory builds thoughts from a payload and its analysis.
type ThoughtFactory interface {
	CreateThought(payload []byte, a quantum.Analysis) quantum.Thought
}

// #endregion thought-factory

// #region state

// State is a persistable snapshot of a cell.
type State struct {
	ID        string            `json:"id"`
	Identity  string            `json:"identity"`
	Energy    uint64            `json:"energy"`
	Stability uint64            `json:"stability"`
	Position  dimension.Vector  `json:"position"`
	Thoughts  []quantum.Thought `json:"thoughts,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// #endregion state

// #region proposal

// Proposal is a fully validated thought generation that has not been applied yet.
type Proposal struct {
	Thought  quantum.Thought
	Position dimension.Vector
	Energy   uint64 // energy after the cost is paid
}

// #endregion proposal
