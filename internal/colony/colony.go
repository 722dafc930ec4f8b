package colony

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"go.uber.org/zap"
)

// #region colony

// Colony owns every cell and the colony-wide scores and metrics.
// All mutation goes through Register and RecordThought, serialized by one mutex.
type Colony struct {
	config  Config
	factory cell.ThoughtFactory
	log     *zap.Logger

	mu    sync.RWMutex
	cells map[string]*cell.Cell
	agg   Aggregate
}

// New creates an empty colony.
func New(config Config, factory cell.ThoughtFactory, log *zap.Logger) *Colony {
	if log == nil {
		log = zap.NewNop()
	}
	return &Colony{
		config:  config,
		factory: factory,
		log:     log,
		cells:   make(map[string]*cell.Cell),
	}
}

// Restore replaces the colony contents with a persisted snapshot.
func (c *Colony) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cells = make(map[string]*cell.Cell, len(s.Cells))
	for _, cs := range s.Cells {
		c.cells[cs.Identity] = cell.Restore(cs, c.config.Cell, c.factory)
	}
	c.agg = s.Aggregate
}

// #endregion colony

// #region register

// Register creates a cell for identity. Registration is idempotent: an existing
// cell is returned untouched with created=false. commit may be nil.
func (c *Colony) Register(ctx context.Context, identity string, commit RegisterFunc) (cell.State, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.cells[identity]; ok {
		return existing.State(), false, nil
	}

	nc := cell.New(identity, c.config.Cell, c.factory)
	next := c.agg
	next.CellCount++
	next.TotalEnergy += nc.Energy()
	next.Metrics.AverageEnergy = next.TotalEnergy / next.CellCount

	if commit != nil {
		if err := commit(ctx, Registration{Cell: nc.State(), Aggregate: next}); err != nil {
			return cell.State{}, false, fmt.Errorf("commit registration %s: %w", identity, err)
		}
	}

	c.cells[identity] = nc
	c.agg = next
	c.log.Info("[COLONY] cell registered",
		zap.String("identity", identity),
		zap.String("cell_id", nc.ID()),
		zap.Uint64("cell_count", next.CellCount),
	)
	return nc.State(), true, nil
}

// #endregion register

// #region record-thought

// RecordThought has the identity's cell generate a thought, folds it into the
// colony scores and metrics, and evaluates the evolution trigger. Nothing is
// visible until commit (which may be nil) succeeds.
func (c *Colony) RecordThought(ctx context.Context, identity string, payload []byte, a quantum.Analysis, commit CommitFunc) (quantum.Thought, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.cells[identity]
	if !ok {
		return quantum.Thought{}, fmt.Errorf("%s: %w", identity, ErrCellNotFound)
	}

	p, err := cl.Propose(payload, a)
	if err != nil {
		return quantum.Thought{}, err
	}

	next, evolved, err := c.fold(c.agg, p.Thought.Impact, c.config.Cell.EnergyCost)
	if err != nil {
		return quantum.Thought{}, err
	}
	ch := Change{
		Cell:      cl.StateAfter(p),
		Thought:   p.Thought,
		Aggregate: next,
		Evolved:   evolved,
	}
	if commit != nil {
		if err := commit(ctx, ch); err != nil {
			return quantum.Thought{}, fmt.Errorf("commit thought for %s: %w", identity, err)
		}
	}

	cl.Apply(p)
	c.agg = next

	if evolved {
		c.log.Info("[COLONY] evolution triggered",
			zap.Uint64("stage", next.Metrics.EvolutionStage),
			zap.Uint64("stability_index", next.Metrics.StabilityIndex),
			zap.Uint64("average_energy", next.Metrics.AverageEnergy),
		)
	}
	return p.Thought, nil
}

// fold computes the aggregate after a thought with the given impact and cost.
func (c *Colony) fold(agg Aggregate, impact dimension.Vector, cost uint64) (Aggregate, bool, error) {
	var scores dimension.DimensionalState = agg.Scores
	blended, err := scores.CalculateImpact(impact)
	if err != nil {
		return agg, false, fmt.Errorf("blend colony scores: %w", err)
	}
	if !blended.IsValid() {
		return agg, false, fmt.Errorf("blend colony scores: %w", cell.ErrInvalidDimensionalUpdate)
	}
	agg.Scores = blended

	if agg.TotalEnergy >= cost {
		agg.TotalEnergy -= cost
	} else {
		agg.TotalEnergy = 0
	}
	if agg.CellCount > 0 {
		agg.Metrics.AverageEnergy = agg.TotalEnergy / agg.CellCount
	}
	agg.Metrics.TotalThoughts++
	agg.Metrics.StabilityIndex = StabilityIndex(agg.Scores)

	above := c.shouldEvolve(agg.Metrics)
	evolved := false
	switch c.config.Trigger {
	case TriggerLevel:
		evolved = above
	default:
		evolved = above && !agg.AboveThreshold
	}
	agg.AboveThreshold = above
	if evolved {
		agg.Metrics.EvolutionStage++
	}
	return agg, evolved, nil
}

func (c *Colony) shouldEvolve(m Metrics) bool {
	return m.StabilityIndex > c.config.StabilityThreshold && m.AverageEnergy > c.config.EnergyThreshold
}

// StabilityIndex maps the variance of the six colony scores onto 0-100.
// Identical axes give 100; the maximum variance (10000) gives 0.
func StabilityIndex(v dimension.Vector) uint64 {
	penalty := uint64(v.Variance() / 100)
	if penalty >= 100 {
		return 0
	}
	return 100 - penalty
}

// #endregion record-thought

// #region readers

// Scores returns the colony-wide dimensional scores.
func (c *Colony) Scores() dimension.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agg.Scores
}

// Metrics returns the derived colony metrics.
func (c *Colony) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agg.Metrics
}

// Aggregate returns the colony-wide state.
func (c *Colony) Aggregate() Aggregate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agg
}

// Cell returns a snapshot of the cell registered for identity.
func (c *Colony) Cell(identity string) (cell.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.cells[identity]
	if !ok {
		return cell.State{}, false
	}
	return cl.State(), true
}

// Snapshot returns the full colony state, cells sorted by identity.
func (c *Colony) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{Aggregate: c.agg, Cells: make([]cell.State, 0, len(c.cells))}
	for _, cl := range c.cells {
		s.Cells = append(s.Cells, cl.State())
	}
	sort.Slice(s.Cells, func(i, j int) bool { return s.Cells[i].Identity < s.Cells[j].Identity })
	return s
}

// #endregion readers
