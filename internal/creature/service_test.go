package creature

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) ThoughtGenerated(_ context.Context, id string, confidence uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("ThoughtGenerated:%s:%d", id, confidence))
	return nil
}

func (r *recordingEmitter) StrategyAnalyzed(_ context.Context, id string, risk uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("StrategyAnalyzed:%s:%d", id, risk))
	return nil
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// failingStore rejects every thought commit.
type failingStore struct {
	*MemoryStore
}

func (failingStore) CommitThought(context.Context, colony.Change, strategy.Record) error {
	return errors.New("disk full")
}

func openService(t *testing.T, cfg Config, store Store) (*Service, *recordingEmitter) {
	t.Helper()
	em := &recordingEmitter{}
	svc, err := Open(context.Background(), cfg, store, WithEmitter(em))
	require.NoError(t, err)
	return svc, em
}

func sqliteStore(t *testing.T, path string) *state.Store {
	t.Helper()
	st, err := state.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func byteRamp() []byte {
	out := make([]byte, 256)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

// #endregion helpers

// #region register-tests

func TestRegisterIsIdempotent(t *testing.T) {
	svc, _ := openService(t, DefaultConfig(), nil)
	ctx := context.Background()

	first, created, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(100), first.Energy)

	again, created, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	snap := svc.Snapshot()
	assert.Equal(t, uint64(1), snap.CellCount)
	assert.Equal(t, uint64(100), snap.TotalEnergy)
}

func TestRegisterMissingCaller(t *testing.T) {
	svc, _ := openService(t, DefaultConfig(), nil)
	_, _, err := svc.Register(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCaller)
}

// #endregion register-tests

// #region analyze-tests

func TestAnalyzeStrategyCommits(t *testing.T) {
	svc, em := openService(t, DefaultConfig(), nil)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "alice")
	require.NoError(t, err)

	res, err := svc.AnalyzeStrategy(ctx, "alice", []byte("buy the dip"))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.ThoughtID)
	assert.NotEmpty(t, res.StrategyID)
	assert.LessOrEqual(t, res.RiskScore, uint64(100))
	assert.LessOrEqual(t, res.ExpectedReturn, uint64(100))

	c, ok := svc.Cell("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(90), c.Energy)
	require.Len(t, c.Thoughts, 1)
	assert.Equal(t, res.ThoughtID, c.Thoughts[0].ID)
	assert.Equal(t, uint64(1), svc.Metrics().TotalThoughts)

	rec, err := svc.Strategy(ctx, res.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, res.ThoughtID, rec.ThoughtID)
	assert.Equal(t, res.RiskScore, rec.RiskScore)

	require.Equal(t, 2, em.count())
	assert.Contains(t, em.events[0], "ThoughtGenerated:"+res.ThoughtID)
	assert.Contains(t, em.events[1], "StrategyAnalyzed:"+res.StrategyID)
}

func TestAnalyzeStrategyIsDeterministicPerPayload(t *testing.T) {
	svc, _ := openService(t, DefaultConfig(), nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, _, err := svc.Register(ctx, id)
		require.NoError(t, err)
	}
	ra, err := svc.AnalyzeStrategy(ctx, "a", []byte("same"))
	require.NoError(t, err)
	rb, err := svc.AnalyzeStrategy(ctx, "b", []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, ra.RiskScore, rb.RiskScore)
	assert.Equal(t, ra.ExpectedReturn, rb.ExpectedReturn)
	assert.NotEqual(t, ra.StrategyID, rb.StrategyID)
}

func TestAnalyzeStrategyRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("missing caller", func(t *testing.T) {
		svc, em := openService(t, DefaultConfig(), nil)
		_, err := svc.AnalyzeStrategy(ctx, "", []byte("x"))
		assert.ErrorIs(t, err, ErrMissingCaller)
		assert.Zero(t, em.count())
	})

	t.Run("unregistered caller", func(t *testing.T) {
		svc, em := openService(t, DefaultConfig(), nil)
		_, err := svc.AnalyzeStrategy(ctx, "ghost", []byte("x"))
		assert.ErrorIs(t, err, colony.ErrCellNotFound)
		assert.Zero(t, em.count())
		assert.Zero(t, svc.Metrics().TotalThoughts)
	})

	t.Run("empty payload", func(t *testing.T) {
		svc, em := openService(t, DefaultConfig(), nil)
		_, _, err := svc.Register(ctx, "alice")
		require.NoError(t, err)
		_, err = svc.AnalyzeStrategy(ctx, "alice", nil)
		assert.ErrorIs(t, err, strategy.ErrInvalidStrategy)
		assert.Zero(t, em.count())
	})

	t.Run("low confidence", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Policy.MinConfidence = 101
		svc, em := openService(t, cfg, nil)
		_, _, err := svc.Register(ctx, "alice")
		require.NoError(t, err)

		_, err = svc.AnalyzeStrategy(ctx, "alice", []byte("x"))
		assert.ErrorIs(t, err, strategy.ErrLowConfidence)
		c, _ := svc.Cell("alice")
		assert.Equal(t, uint64(100), c.Energy, "rejected analysis must not spend energy")
		assert.Zero(t, em.count())
	})

	t.Run("risk too high", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Policy.MaxRiskScore = 50
		svc, em := openService(t, cfg, nil)
		_, _, err := svc.Register(ctx, "alice")
		require.NoError(t, err)

		res, err := svc.AnalyzeStrategy(ctx, "alice", bytes.Repeat([]byte{'a'}, 256))
		require.NoError(t, err)
		assert.LessOrEqual(t, res.RiskScore, uint64(50))
		require.Equal(t, 2, em.count())

		_, err = svc.AnalyzeStrategy(ctx, "alice", byteRamp())
		assert.ErrorIs(t, err, strategy.ErrRiskTooHigh)
		c, _ := svc.Cell("alice")
		assert.Equal(t, uint64(90), c.Energy)
		assert.Len(t, c.Thoughts, 1)
		assert.Equal(t, 2, em.count(), "rejected analysis must not emit facts")
	})
}

func TestAnalyzeStrategyReturnsEngineReport(t *testing.T) {
	svc, _ := openService(t, DefaultConfig(), nil)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "alice")
	require.NoError(t, err)

	payload := []byte("rebalance weekly")
	res, err := svc.AnalyzeStrategy(ctx, "alice", payload)
	require.NoError(t, err)

	rep, err := quantum.NewEngine(quantum.DefaultConfig()).AnalyzeReport(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, rep.Analysis.RiskScore, res.RiskScore)
	assert.Equal(t, rep.Analysis.ExpectedReturn, res.ExpectedReturn)
	assert.Equal(t, rep.Analysis.CoherenceScore, res.Confidence)
	assert.Equal(t, rep.Analysis.StabilityScore, res.StabilityScore)
	assert.Equal(t, rep.Risk.Volatility, res.Volatility)
	assert.Equal(t, rep.Risk.Correlation, res.Correlation)
	assert.Equal(t, rep.PhaseSpace, res.PhaseSpace)
}

func TestAnalyzeStrategyExhaustsEnergy(t *testing.T) {
	svc, em := openService(t, DefaultConfig(), nil)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "alice")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := svc.AnalyzeStrategy(ctx, "alice", []byte(fmt.Sprintf("plan-%d", i)))
		require.NoError(t, err, "thought %d", i)
	}
	_, err = svc.AnalyzeStrategy(ctx, "alice", []byte("one more"))
	assert.ErrorIs(t, err, cell.ErrInsufficientEnergy)

	c, _ := svc.Cell("alice")
	assert.Zero(t, c.Energy)
	assert.Len(t, c.Thoughts, 10)
	assert.Equal(t, 20, em.count())
}

func TestAnalyzeStrategyCommitFailureChangesNothing(t *testing.T) {
	store := failingStore{NewMemoryStore()}
	svc, em := openService(t, DefaultConfig(), store)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	before := svc.Snapshot()

	_, err = svc.AnalyzeStrategy(ctx, "alice", []byte("doomed"))
	require.Error(t, err)

	assert.Equal(t, before, svc.Snapshot())
	assert.Zero(t, em.count())
}

func TestStrategyNotFound(t *testing.T) {
	svc, _ := openService(t, DefaultConfig(), nil)
	_, err := svc.Strategy(context.Background(), "missing")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestEvolutionTriggeredByAnalyzedPayloads(t *testing.T) {
	ctx := context.Background()
	eng := quantum.NewEngine(quantum.DefaultConfig())

	// one repeated byte per payload: identical risk and coherence, different returns
	type candidate struct {
		payload []byte
		index   uint64
	}
	var cands []candidate
	for b := byte('a'); b <= 'p'; b++ {
		p := bytes.Repeat([]byte{b}, 256)
		a, err := eng.Analyze(ctx, p)
		require.NoError(t, err)
		cands = append(cands, candidate{p, colony.StabilityIndex(quantum.ImpactOf(a))})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].index < cands[j].index })
	low, high := cands[0], cands[len(cands)-1]
	require.LessOrEqual(t, low.index, uint64(86), "need a payload that pulls the colony below the threshold")
	require.GreaterOrEqual(t, high.index, uint64(94), "need a payload that pushes the colony above the threshold")

	svc, _ := openService(t, DefaultConfig(), nil)
	callers := make([]string, 20)
	for i := range callers {
		callers[i] = fmt.Sprintf("cell-%02d", i)
		_, _, err := svc.Register(ctx, callers[i])
		require.NoError(t, err)
	}
	turn := 0
	analyze := func(p []byte) Result {
		t.Helper()
		res, err := svc.AnalyzeStrategy(ctx, callers[turn%len(callers)], p)
		require.NoError(t, err)
		turn++
		return res
	}

	for i := 0; i < 10; i++ {
		analyze(low.payload)
		if svc.Metrics().StabilityIndex <= 90 {
			break
		}
	}
	require.LessOrEqual(t, svc.Metrics().StabilityIndex, uint64(90))
	stage := svc.Metrics().EvolutionStage

	evolved := false
	for i := 0; i < 12 && !evolved; i++ {
		evolved = analyze(high.payload).Evolved
	}
	require.True(t, evolved, "high-return payloads should lift the colony over the threshold")

	m := svc.Metrics()
	assert.Equal(t, stage+1, m.EvolutionStage)
	assert.Greater(t, m.StabilityIndex, uint64(90))
	assert.Greater(t, m.AverageEnergy, uint64(80))
}

// #endregion analyze-tests

// #region persistence-tests

func TestReopenRestoresColony(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.db")
	ctx := context.Background()

	svc, _ := openService(t, DefaultConfig(), sqliteStore(t, path))
	_, _, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "bob")
	require.NoError(t, err)
	res, err := svc.AnalyzeStrategy(ctx, "alice", []byte("hold"))
	require.NoError(t, err)
	want := svc.Snapshot()

	reopened, _ := openService(t, DefaultConfig(), sqliteStore(t, path))
	got := reopened.Snapshot()

	assert.Equal(t, want.Aggregate, got.Aggregate)
	require.Len(t, got.Cells, 2)
	assert.Equal(t, uint64(90), got.Cells[0].Energy)
	require.Len(t, got.Cells[0].Thoughts, 1)
	assert.Equal(t, res.ThoughtID, got.Cells[0].Thoughts[0].ID)
	assert.Equal(t, want.Cells[0].Position, got.Cells[0].Position)

	rec, err := reopened.Strategy(ctx, res.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, res.ThoughtID, rec.ThoughtID)

	// the restored colony keeps going from where it stopped
	_, err = reopened.AnalyzeStrategy(ctx, "alice", []byte("hold again"))
	require.NoError(t, err)
	c, _ := reopened.Cell("alice")
	assert.Equal(t, uint64(80), c.Energy)
	assert.Equal(t, uint64(2), reopened.Metrics().TotalThoughts)
}

func TestConcurrentAnalyses(t *testing.T) {
	svc, em := openService(t, DefaultConfig(), sqliteStore(t, filepath.Join(t.TempDir(), "c.db")))
	ctx := context.Background()
	callers := []string{"a", "b", "c", "d"}
	for _, id := range callers {
		_, _, err := svc.Register(ctx, id)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AnalyzeStrategy(ctx, callers[i%len(callers)], []byte(fmt.Sprintf("p%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	m := svc.Metrics()
	assert.Equal(t, uint64(20), m.TotalThoughts)
	assert.Equal(t, uint64(50), m.AverageEnergy)
	assert.Equal(t, 40, em.count())
}

// #endregion persistence-tests
