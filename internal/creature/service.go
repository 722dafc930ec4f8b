package creature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/logging"
	"github.com/danielpatrickdp/creature-colony/internal/metrics"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// #region service

// Service is the caller-facing surface of the colony. It runs the policy gate,
// the evolution engine and the colony update, and persists the outcome.
type Service struct {
	engine  *quantum.Engine
	colony  *colony.Colony
	policy  *strategy.Policy
	store   Store
	emitter Emitter
	metrics *metrics.Collector
	log     *zap.Logger
	newID   func() string

	engineOpts []quantum.Option
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger. It is shared with the engine and colony.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithEmitter replaces the default log-only fact emitter.
func WithEmitter(e Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithMetrics sets the collector the service reports to.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides strategy ID generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithEngineOptions passes options through to the evolution engine.
func WithEngineOptions(opts ...quantum.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// Open builds a service over store and restores the colony from it.
// A nil store keeps everything in memory.
func Open(ctx context.Context, config Config, store Store, opts ...Option) (*Service, error) {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.emitter == nil {
		s.emitter = logging.NewFactLog(nil, s.log)
	}

	engineOpts := append([]quantum.Option{quantum.WithLogger(s.log)}, s.engineOpts...)
	s.engine = quantum.NewEngine(config.Engine, engineOpts...)
	s.colony = colony.New(config.Colony, s.engine, s.log)
	s.policy = strategy.NewPolicy(config.Policy)

	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.colony.Restore(snap)
	s.metrics.Set(snap.Aggregate)
	s.log.Info("[CREATURE] colony restored",
		zap.Int("cells", len(snap.Cells)),
		zap.Uint64("total_thoughts", snap.Metrics.TotalThoughts),
		zap.Uint64("evolution_stage", snap.Metrics.EvolutionStage),
	)
	return s, nil
}

// #endregion service

// #region register

// Register creates the caller's cell if it does not exist yet.
func (s *Service) Register(ctx context.Context, identity string) (cell.State, bool, error) {
	if identity == "" {
		return cell.State{}, false, ErrMissingCaller
	}
	var agg colony.Aggregate
	st, created, err := s.colony.Register(ctx, identity, func(ctx context.Context, r colony.Registration) error {
		agg = r.Aggregate
		return s.store.SaveRegistration(ctx, r)
	})
	if err != nil {
		return cell.State{}, false, err
	}
	if created {
		s.metrics.Registered(agg)
	}
	return st, created, nil
}

// #endregion register

// #region analyze-strategy

// AnalyzeStrategy runs data through the engine, records the resulting thought on
// the caller's cell and stores a strategy record. Every failure aborts with no
// state change and no facts.
func (s *Service) AnalyzeStrategy(ctx context.Context, identity string, data []byte) (Result, error) {
	if identity == "" {
		return Result{}, ErrMissingCaller
	}
	if err := s.policy.CheckPayload(data); err != nil {
		s.metrics.Rejected(ReasonOf(err))
		return Result{}, err
	}

	start := time.Now()
	rep, err := s.engine.AnalyzeReport(ctx, data)
	s.metrics.ObserveAnalysis(time.Since(start))
	if err != nil {
		s.metrics.Rejected(ReasonOf(err))
		return Result{}, fmt.Errorf("analyze: %w", err)
	}
	a := rep.Analysis

	if err := s.policy.CheckAnalysis(a); err != nil {
		s.metrics.Rejected(ReasonOf(err))
		s.log.Info("[CREATURE] strategy rejected",
			zap.String("caller", identity),
			zap.Uint64("risk_score", a.RiskScore),
			zap.Uint64("confidence", quantum.Confidence(a)),
			zap.Error(err),
		)
		return Result{}, err
	}

	var (
		rec     strategy.Record
		agg     colony.Aggregate
		evolved bool
	)
	th, err := s.colony.RecordThought(ctx, identity, data, a, func(ctx context.Context, ch colony.Change) error {
		rec = strategy.Build(s.newID(), ch.Thought, a)
		if err := s.store.CommitThought(ctx, ch, rec); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
		agg, evolved = ch.Aggregate, ch.Evolved
		return nil
	})
	if err != nil {
		s.metrics.Rejected(ReasonOf(err))
		return Result{}, err
	}

	// committed; fact failures are logged, never unwound
	if err := s.emitter.ThoughtGenerated(ctx, th.ID, th.Confidence); err != nil {
		s.log.Warn("[CREATURE] fact emission failed", zap.String("thought_id", th.ID), zap.Error(err))
	}
	if err := s.emitter.StrategyAnalyzed(ctx, rec.ID, rec.RiskScore); err != nil {
		s.log.Warn("[CREATURE] fact emission failed", zap.String("strategy_id", rec.ID), zap.Error(err))
	}
	s.metrics.Committed(agg, evolved)

	return Result{
		RiskScore:      rec.RiskScore,
		ExpectedReturn: rec.ExpectedReturn,
		IsValid:        rec.IsValid,
		ThoughtID:      th.ID,
		StrategyID:     rec.ID,
		Evolved:        evolved,
		Confidence:     th.Confidence,
		StabilityScore: a.StabilityScore,
		Volatility:     rep.Risk.Volatility,
		Correlation:    rep.Risk.Correlation,
		PhaseSpace:     rep.PhaseSpace,
	}, nil
}

// ReasonOf classifies a rejection error into a metrics reason label.
func ReasonOf(err error) string {
	switch {
	case errors.Is(err, ErrMissingCaller):
		return metrics.ReasonMissingCaller
	case errors.Is(err, strategy.ErrInvalidStrategy):
		return metrics.ReasonInvalidStrategy
	case errors.Is(err, strategy.ErrRiskTooHigh):
		return metrics.ReasonRiskTooHigh
	case errors.Is(err, strategy.ErrLowConfidence):
		return metrics.ReasonLowConfidence
	case errors.Is(err, cell.ErrInsufficientEnergy):
		return metrics.ReasonInsufficientEnergy
	case errors.Is(err, colony.ErrCellNotFound):
		return metrics.ReasonCellNotFound
	default:
		return metrics.ReasonInternal
	}
}

// #endregion analyze-strategy

// #region readers

// DimensionalScores returns the colony-wide scores.
func (s *Service) DimensionalScores() dimension.Vector {
	return s.colony.Scores()
}

// Metrics returns the colony metrics.
func (s *Service) Metrics() colony.Metrics {
	return s.colony.Metrics()
}

// Cell returns the cell registered for identity.
func (s *Service) Cell(identity string) (cell.State, bool) {
	return s.colony.Cell(identity)
}

// Snapshot returns the full in-memory colony state.
func (s *Service) Snapshot() colony.Snapshot {
	return s.colony.Snapshot()
}

// Strategy looks up a stored strategy record.
func (s *Service) Strategy(ctx context.Context, id string) (strategy.Record, error) {
	return s.store.GetStrategy(ctx, id)
}

// Collector exposes the metrics collector for serving.
func (s *Service) Collector() *metrics.Collector {
	return s.metrics
}

// #endregion readers
