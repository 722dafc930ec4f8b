package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func registration(identity string, count uint64) colony.Registration {
	return colony.Registration{
		Cell: cell.State{
			ID:        "cell-" + identity,
			Identity:  identity,
			Energy:    100,
			Stability: 100,
			CreatedAt: t0,
		},
		Aggregate: colony.Aggregate{
			TotalEnergy: 100 * count,
			CellCount:   count,
			Metrics:     colony.Metrics{AverageEnergy: 100},
		},
	}
}

func change(identity, thoughtID string, energy uint64, seq int) (colony.Change, strategy.Record) {
	impact := dimension.Vector{Emergence: 40, Coherence: -20, Resilience: 100, Intelligence: 50, Efficiency: 40, Integration: -100}
	th := quantum.Thought{
		ID:         thoughtID,
		Content:    []byte("payload-" + thoughtID),
		Confidence: 55,
		Impact:     impact,
		CreatedAt:  t0.Add(time.Duration(seq) * time.Second),
	}
	ch := colony.Change{
		Cell: cell.State{
			ID:        "cell-" + identity,
			Identity:  identity,
			Energy:    energy,
			Stability: 100,
			Position:  dimension.Vector{Emergence: 1, Coherence: -1, Resilience: 1},
		},
		Thought: th,
		Aggregate: colony.Aggregate{
			Scores:         dimension.Vector{Emergence: 20, Coherence: -10, Resilience: 50},
			TotalEnergy:    energy,
			CellCount:      1,
			Metrics:        colony.Metrics{AverageEnergy: energy, TotalThoughts: uint64(seq), StabilityIndex: 87, EvolutionStage: 1},
			AboveThreshold: true,
		},
	}
	rec := strategy.Build("strategy-"+thoughtID, th, quantum.Analysis{RiskScore: 30, ExpectedReturn: 70})
	return ch, rec
}

// #region schema-tests
func TestNewStoreIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()
	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestEmptySnapshot(t *testing.T) {
	s := tempDB(t)
	snap, err := s.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.CellCount != 0 || len(snap.Cells) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

// #endregion schema-tests

// #region round-trip-tests
func TestRegistrationAndThoughtRoundTrip(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.SaveRegistration(ctx, registration("alice", 1)); err != nil {
		t.Fatalf("SaveRegistration: %v", err)
	}
	ch1, rec1 := change("alice", "th-1", 90, 1)
	if err := s.CommitThought(ctx, ch1, rec1); err != nil {
		t.Fatalf("CommitThought 1: %v", err)
	}
	ch2, rec2 := change("alice", "th-2", 80, 2)
	if err := s.CommitThought(ctx, ch2, rec2); err != nil {
		t.Fatalf("CommitThought 2: %v", err)
	}

	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Aggregate != ch2.Aggregate {
		t.Fatalf("aggregate mismatch:\n got %+v\nwant %+v", snap.Aggregate, ch2.Aggregate)
	}
	if len(snap.Cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(snap.Cells))
	}
	c := snap.Cells[0]
	if c.Energy != 80 || c.Position != ch2.Cell.Position || c.ID != "cell-alice" {
		t.Fatalf("unexpected cell %+v", c)
	}
	if !c.CreatedAt.Equal(t0) {
		t.Fatalf("created_at: got %v, want %v", c.CreatedAt, t0)
	}
	if len(c.Thoughts) != 2 {
		t.Fatalf("expected 2 thoughts, got %d", len(c.Thoughts))
	}
	if c.Thoughts[0].ID != "th-1" || c.Thoughts[1].ID != "th-2" {
		t.Fatalf("thoughts out of order: %s, %s", c.Thoughts[0].ID, c.Thoughts[1].ID)
	}
	if c.Thoughts[1].Impact != ch2.Thought.Impact {
		t.Fatalf("impact: got %+v, want %+v", c.Thoughts[1].Impact, ch2.Thought.Impact)
	}
	if string(c.Thoughts[0].Content) != "payload-th-1" || c.Thoughts[0].Confidence != 55 {
		t.Fatalf("unexpected thought %+v", c.Thoughts[0])
	}

	got, err := s.GetStrategy(ctx, rec2.ID)
	if err != nil {
		t.Fatalf("GetStrategy: %v", err)
	}
	if got.ThoughtID != "th-2" || got.RiskScore != 30 || got.ExpectedReturn != 70 || !got.IsValid {
		t.Fatalf("unexpected strategy %+v", got)
	}
	if !got.CreatedAt.Equal(rec2.CreatedAt) {
		t.Fatalf("strategy created_at: got %v, want %v", got.CreatedAt, rec2.CreatedAt)
	}
}

func TestVectorEncodingExtremes(t *testing.T) {
	v := dimension.Vector{
		Emergence: dimension.MinAxis, Coherence: dimension.MaxAxis,
		Resilience: -1, Intelligence: 0, Efficiency: 1, Integration: -99,
	}
	if got := decodeVector(encodeVector(v)); got != v {
		t.Fatalf("got %+v, want %+v", got, v)
	}
	if got := decodeVector(nil); got != (dimension.Vector{}) {
		t.Fatalf("nil blob should decode to zero vector, got %+v", got)
	}
}

// #endregion round-trip-tests

// #region failure-tests
func TestDuplicateRegistrationFails(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if err := s.SaveRegistration(ctx, registration("bob", 1)); err != nil {
		t.Fatalf("SaveRegistration: %v", err)
	}
	if err := s.SaveRegistration(ctx, registration("bob", 2)); err == nil {
		t.Fatal("expected primary key violation")
	}

	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.CellCount != 1 {
		t.Fatalf("failed registration must not update colony, cell_count=%d", snap.CellCount)
	}
}

func TestCommitThoughtUnknownCell(t *testing.T) {
	s := tempDB(t)
	ch, rec := change("ghost", "th-x", 90, 1)
	err := s.CommitThought(context.Background(), ch, rec)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitThoughtRollsBack(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if err := s.SaveRegistration(ctx, registration("carol", 1)); err != nil {
		t.Fatalf("SaveRegistration: %v", err)
	}
	ch, rec := change("carol", "th-1", 90, 1)
	if err := s.CommitThought(ctx, ch, rec); err != nil {
		t.Fatalf("CommitThought: %v", err)
	}

	// reusing the strategy ID violates the primary key after every other write succeeded
	ch2, _ := change("carol", "th-2", 80, 2)
	if err := s.CommitThought(ctx, ch2, rec); err == nil {
		t.Fatal("expected duplicate strategy error")
	}

	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Cells[0].Energy != 90 {
		t.Fatalf("cell update should have rolled back, energy=%d", snap.Cells[0].Energy)
	}
	if len(snap.Cells[0].Thoughts) != 1 {
		t.Fatalf("thought insert should have rolled back, got %d", len(snap.Cells[0].Thoughts))
	}
	if snap.Metrics.TotalThoughts != 1 {
		t.Fatalf("colony upsert should have rolled back, total_thoughts=%d", snap.Metrics.TotalThoughts)
	}
}

func TestGetStrategyNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetStrategy(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClosedStoreErrors(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.Close()

	ctx := context.Background()
	if err := s.SaveRegistration(ctx, registration("x", 1)); err == nil {
		t.Fatal("expected error on closed store")
	}
	if _, err := s.LoadSnapshot(ctx); err == nil {
		t.Fatal("expected error on closed store")
	}
	if _, err := s.ListStrategies(ctx, 10); err == nil {
		t.Fatal("expected error on closed store")
	}
}

// #endregion failure-tests

// #region listing-tests
func TestListings(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if err := s.SaveRegistration(ctx, registration("dave", 1)); err != nil {
		t.Fatalf("SaveRegistration: %v", err)
	}
	for i := 1; i <= 3; i++ {
		ch, rec := change("dave", "th-"+string(rune('0'+i)), uint64(100-10*i), i)
		if err := s.CommitThought(ctx, ch, rec); err != nil {
			t.Fatalf("CommitThought %d: %v", i, err)
		}
	}

	strategies, err := s.ListStrategies(ctx, 2)
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(strategies) != 2 || strategies[0].ThoughtID != "th-3" {
		t.Fatalf("expected newest first, got %+v", strategies)
	}

	thoughts, err := s.ListThoughts(ctx, 10)
	if err != nil {
		t.Fatalf("ListThoughts: %v", err)
	}
	if len(thoughts) != 3 || thoughts[0].Seq != 3 || thoughts[2].Seq != 1 {
		t.Fatalf("unexpected thoughts %+v", thoughts)
	}

	log, err := s.ThoughtLog(ctx)
	if err != nil {
		t.Fatalf("ThoughtLog: %v", err)
	}
	if len(log) != 3 || log[0].ThoughtID != "th-1" || log[2].ThoughtID != "th-3" {
		t.Fatalf("expected commit order, got %+v", log)
	}

	cells, err := s.ListCells(ctx)
	if err != nil {
		t.Fatalf("ListCells: %v", err)
	}
	if len(cells) != 1 || cells[0].Energy != 70 {
		t.Fatalf("unexpected cells %+v", cells)
	}
}

// #endregion listing-tests
