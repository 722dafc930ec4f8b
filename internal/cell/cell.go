package cell

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/google/uuid"
)

// #region cell

// Cell is a single agent with energy, a dimensional position and a thought log.
// A cell is not safe for concurrent use; the colony serializes access.
type Cell struct {
	id        string
	identity  string
	energy    uint64
	stability uint64
	position  dimension.Vector
	thoughts  []quantum.Thought
	createdAt time.Time

	config  Config
	factory ThoughtFactory
}

// New creates a cell with the configured starting energy and stability.
func New(identity string, config Config, factory ThoughtFactory) *Cell {
	return &Cell{
		id:        uuid.NewString(),
		identity:  identity,
		energy:    config.InitialEnergy,
		stability: config.InitialStability,
		createdAt: time.Now().UTC(),
		config:    config,
		factory:   factory,
	}
}

// Restore rebuilds a cell from a persisted snapshot.
func Restore(s State, config Config, factory ThoughtFactory) *Cell {
	return &Cell{
		id:        s.ID,
		identity:  s.Identity,
		energy:    s.Energy,
		stability: s.Stability,
		position:  s.Position,
		thoughts:  append([]quantum.Thought(nil), s.Thoughts...),
		createdAt: s.CreatedAt,
		config:    config,
		factory:   factory,
	}
}

// #endregion cell

// #region accessors

func (c *Cell) ID() string                 { return c.id }
func (c *Cell) Identity() string           { return c.identity }
func (c *Cell) Energy() uint64             { return c.energy }
func (c *Cell) Stability() uint64          { return c.stability }
func (c *Cell) Position() dimension.Vector { return c.position }

// Thoughts returns a copy of the thought log in generation order.
func (c *Cell) Thoughts() []quantum.Thought {
	return append([]quantum.Thought(nil), c.thoughts...)
}

// State returns a snapshot of the cell.
func (c *Cell) State() State {
	return State{
		ID:        c.id,
		Identity:  c.identity,
		Energy:    c.energy,
		Stability: c.stability,
		Position:  c.position,
		Thoughts:  c.Thoughts(),
		CreatedAt: c.createdAt,
	}
}

// StateAfter returns the snapshot the cell would have once p is applied.
// The thought log is omitted.
func (c *Cell) StateAfter(p Proposal) State {
	return State{
		ID:        c.id,
		Identity:  c.identity,
		Energy:    p.Energy,
		Stability: c.stability,
		Position:  p.Position,
		CreatedAt: c.createdAt,
	}
}

// #endregion accessors

// #region generate-thought

// Propose computes a thought generation without changing the cell.
// The energy precondition is checked first; the merged position is validated
// before a proposal is returned.
func (c *Cell) Propose(payload []byte, a quantum.Analysis) (Proposal, error) {
	if c.energy < c.config.EnergyCost {
		return Proposal{}, fmt.Errorf("cell %s has %d, needs %d: %w",
			c.identity, c.energy, c.config.EnergyCost, ErrInsufficientEnergy)
	}

	thought := c.factory.CreateThought(payload, a)
	next := c.position.Merge(thought.Impact, c.stability)
	if err := dimension.Validate(next); err != nil {
		return Proposal{}, fmt.Errorf("cell %s: %w: %v", c.identity, ErrInvalidDimensionalUpdate, err)
	}

	return Proposal{
		Thought:  thought,
		Position: next,
		Energy:   c.energy - c.config.EnergyCost,
	}, nil
}

// Apply commits a proposal: position, energy and thought log change together.
func (c *Cell) Apply(p Proposal) {
	c.position = p.Position
	c.energy = p.Energy
	c.thoughts = append(c.thoughts, p.Thought)
}

// GenerateThought proposes and applies a thought in one step.
func (c *Cell) GenerateThought(payload []byte, a quantum.Analysis) (quantum.Thought, error) {
	p, err := c.Propose(payload, a)
	if err != nil {
		return quantum.Thought{}, err
	}
	c.Apply(p)
	return p.Thought, nil
}

// #endregion generate-thought
