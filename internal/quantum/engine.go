package quantum

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region engine

// Engine evolves payload embeddings. The tensor, phase space and coherence are
// derived fresh for every analysis and returned in the Report, so concurrent
// analyses share nothing and a rejected request leaves no trace.
type Engine struct {
	config Config
	log    *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the thought timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides thought ID generation.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine creates an engine with the given kernel configuration.
func NewEngine(config Config, opts ...Option) *Engine {
	if config.Workers < 1 {
		config.Workers = 1
	}
	e := &Engine{
		config: config,
		log:    zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the kernel configuration.
func (e *Engine) Config() Config {
	return e.config
}

// #endregion engine

// #region analyze

// Analyze runs the full pipeline and returns the scalar summary.
func (e *Engine) Analyze(ctx context.Context, payload []byte) (Analysis, error) {
	rep, err := e.AnalyzeReport(ctx, payload)
	if err != nil {
		return Analysis{}, err
	}
	return rep.Analysis, nil
}

// AnalyzeReport embeds the payload, evolves it, and derives coherence, risk and
// phase-space descriptors. Identical payloads yield identical reports.
func (e *Engine) AnalyzeReport(ctx context.Context, payload []byte) (Report, error) {
	start := time.Now()

	state := Embed(payload)
	initialGrad := axisGradients(state)

	evolved, err := e.evolve(ctx, state)
	if err != nil {
		return Report{}, err
	}

	sum := summarize(evolved)
	coherence := analyzeCoherence(evolved, sum)
	risk := riskMetrics(coherence, sum)
	phase := PhaseSpace{
		EmbeddingDimension: Rank,
		Attractors:         attractors(evolved, 3),
		Lyapunov:           lyapunov(initialGrad, axisGradients(evolved), e.config.Iterations),
	}

	rep := Report{
		Analysis: Analysis{
			RiskScore:      risk.RiskScore,
			ExpectedReturn: risk.ExpectedReturn,
			CoherenceScore: coherence.Global,
			StabilityScore: coherence.Stability,
		},
		Coherence:  coherence,
		Risk:       risk,
		PhaseSpace: phase,
	}

	e.log.Debug("[ENGINE] analysis complete",
		zap.Int("payload_bytes", len(payload)),
		zap.Uint64("risk", rep.Analysis.RiskScore),
		zap.Uint64("return", rep.Analysis.ExpectedReturn),
		zap.Uint64("coherence", rep.Analysis.CoherenceScore),
		zap.Uint64("stability", rep.Analysis.StabilityScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

// #endregion analyze

// #region evolve

func (e *Engine) evolve(ctx context.Context, initial Tensor) (Tensor, error) {
	cur := initial.Clone()
	next := NewTensor()

	steps := []struct {
		name string
		fn   func(context.Context, Tensor, Tensor) error
	}{
		{"market", e.marketStep},
		{"risk", e.riskStep},
		{"return", e.returnStep},
	}

	for it := 0; it < e.config.Iterations; it++ {
		for _, s := range steps {
			if err := s.fn(ctx, cur, next); err != nil {
				return Tensor{}, fmt.Errorf("%s step %d: %w", s.name, it, err)
			}
			if !next.finite() {
				return Tensor{}, fmt.Errorf("%s step %d: %w", s.name, it, ErrNumericOverflow)
			}
			cur, next = next, cur
		}
	}
	return cur, nil
}

// parallel runs fn over the outer-axis slabs of the tensor.
func (e *Engine) parallel(ctx context.Context, fn func(lo, hi int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	slab := Size / Side
	for i := 0; i < Side; i++ {
		lo := i * slab
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(lo, lo+slab)
			return nil
		})
	}
	return g.Wait()
}

// marketStep diffuses each amplitude toward its eight periodic neighbours.
func (e *Engine) marketStep(ctx context.Context, src, dst Tensor) error {
	alpha := e.config.Diffusion
	keep := complex(1-alpha, 0)
	share := complex(alpha/(2*Rank), 0)
	err := e.parallel(ctx, func(lo, hi int) {
		for n := lo; n < hi; n++ {
			var nb complex128
			for axis := 0; axis < Rank; axis++ {
				nb += src.amp[neighbour(n, axis, 1)] + src.amp[neighbour(n, axis, -1)]
			}
			dst.amp[n] = keep*src.amp[n] + share*nb
		}
	})
	if err != nil {
		return err
	}
	normalize(dst)
	return nil
}

// riskStep rotates each amplitude by a phase proportional to its intensity
// relative to the peak, so the hottest cells turn by PhaseGain radians per step.
// Magnitudes are preserved.
func (e *Engine) riskStep(ctx context.Context, src, dst Tensor) error {
	var peak float64
	for _, a := range src.amp {
		peak = math.Max(peak, real(a)*real(a)+imag(a)*imag(a))
	}
	if peak == 0 {
		copy(dst.amp, src.amp)
		return ctx.Err()
	}
	gain := e.config.PhaseGain / peak
	return e.parallel(ctx, func(lo, hi int) {
		for n := lo; n < hi; n++ {
			a := src.amp[n]
			theta := gain * (real(a)*real(a) + imag(a)*imag(a))
			dst.amp[n] = a * complex(math.Cos(theta), math.Sin(theta))
		}
	})
}

// returnStep pulls every amplitude toward the mean amplitude.
func (e *Engine) returnStep(ctx context.Context, src, dst Tensor) error {
	var mean complex128
	for _, a := range src.amp {
		mean += a
	}
	mean /= Size

	beta := e.config.Damping
	keep := complex(1-beta, 0)
	pull := complex(beta, 0) * mean
	err := e.parallel(ctx, func(lo, hi int) {
		for n := lo; n < hi; n++ {
			dst.amp[n] = keep*src.amp[n] + pull
		}
	})
	if err != nil {
		return err
	}
	normalize(dst)
	return nil
}

// #endregion evolve

// #region coherence

type tensorSummary struct {
	sum        complex128 // Σx
	absSum     float64    // Σ|x|
	power      float64    // Σ|x|²
	phaseOrder float64    // |Σx| / Σ|x|
	alignment  float64    // Re(Σx) / Σ|x|
}

func summarize(t Tensor) tensorSummary {
	var s tensorSummary
	for _, a := range t.amp {
		s.sum += a
		s.absSum += cmplx.Abs(a)
		s.power += real(a)*real(a) + imag(a)*imag(a)
	}
	if s.absSum > 0 {
		s.phaseOrder = cmplx.Abs(s.sum) / s.absSum
		s.alignment = real(s.sum) / s.absSum
	}
	return s
}

// analyzeCoherence computes global coherence as the mean of phase order and
// intensity concentration (1 - normalized entropy), local coherence as the
// neighbourhood phase order, and stability as the log participation ratio
// log(1/Σp²) / log(Size): 0 when one cell holds all intensity, 1 when it is
// spread evenly.
func analyzeCoherence(t Tensor, s tensorSummary) CoherenceMetrics {
	var entropy, sumSq float64
	if s.power > 0 {
		for _, a := range t.amp {
			p := (real(a)*real(a) + imag(a)*imag(a)) / s.power
			if p > 0 {
				entropy -= p * math.Log(p)
			}
			sumSq += p * p
		}
	}
	concentration := 1 - entropy/math.Log(Size)

	local := make([]float64, Size)
	for n := range t.amp {
		vec := t.amp[n]
		mag := cmplx.Abs(t.amp[n])
		for axis := 0; axis < Rank; axis++ {
			for _, step := range [2]int{1, -1} {
				a := t.amp[neighbour(n, axis, step)]
				vec += a
				mag += cmplx.Abs(a)
			}
		}
		if mag > 0 {
			local[n] = cmplx.Abs(vec) / mag
		}
	}

	var stability uint64
	if sumSq > 0 {
		stability = toScale(math.Log(1/sumSq) / math.Log(Size))
	}

	return CoherenceMetrics{
		Global:    toScale((s.phaseOrder + concentration) / 2),
		Local:     local,
		Stability: stability,
	}
}

// #endregion coherence

// #region risk

func riskMetrics(c CoherenceMetrics, s tensorSummary) RiskMetrics {
	volatility := 100 - c.Stability

	var localMean float64
	for _, v := range c.Local {
		localMean += v
	}
	if len(c.Local) > 0 {
		localMean /= float64(len(c.Local))
	}

	risk := (float64(volatility)/100 + (1 - s.phaseOrder)) / 2
	ret := float64(c.Global) / 100 * (0.5 + 0.5*s.alignment)

	return RiskMetrics{
		RiskScore:      toScale(risk),
		ExpectedReturn: toScale(ret),
		Volatility:     volatility,
		Correlation:    toScale(localMean),
	}
}

// toScale maps a 0-1 fraction onto the 0-100 integer scale.
func toScale(f float64) uint64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 1 {
		return 100
	}
	return uint64(math.Round(f * 100))
}

// #endregion risk

// #region phase-space

func attractors(t Tensor, k int) []Attractor {
	idx := make([]int, Size)
	for n := range idx {
		idx[n] = n
	}
	intensity := func(n int) float64 {
		a := t.amp[n]
		return real(a)*real(a) + imag(a)*imag(a)
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return intensity(idx[i]) > intensity(idx[j])
	})
	out := make([]Attractor, 0, k)
	for _, n := range idx[:k] {
		out = append(out, Attractor{Coord: coordOf(n), Intensity: intensity(n)})
	}
	return out
}

// axisGradients returns Σ|x(n+e_axis) - x(n)|² for each axis.
func axisGradients(t Tensor) [Rank]float64 {
	var g [Rank]float64
	for n, a := range t.amp {
		for axis := 0; axis < Rank; axis++ {
			d := t.amp[neighbour(n, axis, 1)] - a
			g[axis] += real(d)*real(d) + imag(d)*imag(d)
		}
	}
	return g
}

// lyapunov estimates a per-axis growth exponent of the gradient energy across the evolution.
func lyapunov(before, after [Rank]float64, iterations int) []float64 {
	out := make([]float64, Rank)
	if iterations <= 0 {
		return out
	}
	for axis := range out {
		if before[axis] > 0 && after[axis] > 0 {
			out[axis] = math.Log(after[axis]/before[axis]) / float64(iterations)
		}
	}
	return out
}

// #endregion phase-space

// #region create-thought

// Confidence is the confidence a thought built from a carries.
func Confidence(a Analysis) uint64 {
	return a.CoherenceScore
}

// ImpactOf maps an analysis onto a proposed dimensional change.
func ImpactOf(a Analysis) dimension.Vector {
	risk := saturate(a.RiskScore)
	ret := saturate(a.ExpectedReturn)
	coh := saturate(a.CoherenceScore)
	stab := saturate(a.StabilityScore)
	return dimension.Vector{
		Emergence:    dimension.Clamp(ret - risk),
		Coherence:    dimension.Clamp(2*coh - 100),
		Resilience:   dimension.Clamp(2*stab - 100),
		Intelligence: dimension.Clamp(coh + stab - 100),
		Efficiency:   dimension.Clamp(2*ret - 100),
		Integration:  dimension.Clamp(100 - 2*risk),
	}
}

// CreateThought builds an immutable thought from a payload and its analysis.
func (e *Engine) CreateThought(payload []byte, a Analysis) Thought {
	content := make([]byte, len(payload))
	copy(content, payload)
	return Thought{
		ID:         e.newID(),
		Content:    content,
		Confidence: Confidence(a),
		Impact:     ImpactOf(a),
		CreatedAt:  e.now(),
	}
}

// saturate caps u so the impact arithmetic cannot overflow.
func saturate(u uint64) int64 {
	const limit = 1 << 40
	if u > limit {
		return limit
	}
	return int64(u)
}

// #endregion create-thought
