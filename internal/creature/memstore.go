package creature

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
)

// MemoryStore is a Store kept entirely in process memory. Each call checks
// every precondition before touching anything, so a failed call changes nothing.
type MemoryStore struct {
	mu         sync.RWMutex
	agg        colony.Aggregate
	cells      map[string]cell.State
	strategies map[string]strategy.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cells:      make(map[string]cell.State),
		strategies: make(map[string]strategy.Record),
	}
}

// SaveRegistration stores a new cell and the colony aggregate.
func (m *MemoryStore) SaveRegistration(_ context.Context, r colony.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cells[r.Cell.Identity]; ok {
		return fmt.Errorf("cell %s already stored", r.Cell.Identity)
	}
	c := r.Cell
	c.Thoughts = nil
	m.cells[c.Identity] = c
	m.agg = r.Aggregate
	return nil
}

// CommitThought stores the cell update, the thought, the aggregate and the strategy.
func (m *MemoryStore) CommitThought(_ context.Context, ch colony.Change, rec strategy.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.cells[ch.Cell.Identity]
	if !ok {
		return fmt.Errorf("update cell %s: %w", ch.Cell.Identity, state.ErrNotFound)
	}
	if _, dup := m.strategies[rec.ID]; dup {
		return fmt.Errorf("strategy %s already stored", rec.ID)
	}

	next := ch.Cell
	next.Thoughts = make([]quantum.Thought, len(prev.Thoughts), len(prev.Thoughts)+1)
	copy(next.Thoughts, prev.Thoughts)
	next.Thoughts = append(next.Thoughts, ch.Thought)
	next.CreatedAt = prev.CreatedAt

	m.cells[next.Identity] = next
	m.agg = ch.Aggregate
	m.strategies[rec.ID] = rec
	return nil
}

// LoadSnapshot returns a copy of everything stored, cells sorted by identity.
func (m *MemoryStore) LoadSnapshot(_ context.Context) (colony.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := colony.Snapshot{Aggregate: m.agg, Cells: make([]cell.State, 0, len(m.cells))}
	for _, c := range m.cells {
		c.Thoughts = append([]quantum.Thought(nil), c.Thoughts...)
		snap.Cells = append(snap.Cells, c)
	}
	sort.Slice(snap.Cells, func(i, j int) bool { return snap.Cells[i].Identity < snap.Cells[j].Identity })
	return snap, nil
}

// GetStrategy looks up a strategy record by ID.
func (m *MemoryStore) GetStrategy(_ context.Context, id string) (strategy.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.strategies[id]
	if !ok {
		return strategy.Record{}, fmt.Errorf("strategy %s: %w", id, state.ErrNotFound)
	}
	return rec, nil
}
