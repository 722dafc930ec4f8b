package quantum

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/dimension"
)

// ErrNumericOverflow is returned when an evolution step produces a non-finite amplitude.
var ErrNumericOverflow = errors.New("numeric overflow in state evolution")

// #region engine-config

// Config holds the evolution kernel parameters.
type Config struct {
	Iterations int     `yaml:"iterations" validate:"eq=10"`
	Diffusion  float64 `yaml:"diffusion" validate:"gte=0,lte=1"`  // market step neighbour weight
	PhaseGain  float64 `yaml:"phase_gain" validate:"gte=0,lte=1"` // risk step rotation in radians at peak intensity
	Damping    float64 `yaml:"damping" validate:"gte=0,lte=1"`    // return step pull toward the mean
	Workers    int     `yaml:"workers" validate:"gte=1,lte=64"`
}

// DefaultConfig returns the reference kernel parameters.
func DefaultConfig() Config {
	return Config{
		Iterations: 10,
		Diffusion:  0.2,
		PhaseGain:  0.1,
		Damping:    0.05,
		Workers:    4,
	}
}

// #endregion engine-config

// #region analysis

// Analysis is the scalar summary handed to cells and strategy records.
// All four scores are on a 0-100 scale.
type Analysis struct {
	RiskScore      uint64 `json:"risk_score"`
	ExpectedReturn uint64 `json:"expected_return"`
	CoherenceScore uint64 `json:"coherence_score"`
	StabilityScore uint64 `json:"stability_score"`
}

// CoherenceMetrics describes the order of an evolved tensor.
type CoherenceMetrics struct {
	Global    uint64    // 0-100
	Local     []float64 // one 0-1 value per tensor cell
	Stability uint64    // 0-100
}

// RiskMetrics is derived from the evolved tensor and its coherence.
type RiskMetrics struct {
	RiskScore      uint64
	ExpectedReturn uint64
	Volatility     uint64
	Correlation    uint64
}

// Attractor marks a high-intensity cell of the evolved tensor.
type Attractor struct {
	Coord     [Rank]int `json:"coord"`
	Intensity float64   `json:"intensity"`
}

// PhaseSpace describes the geometry of the last evolution.
type PhaseSpace struct {
	EmbeddingDimension int         `json:"embedding_dimension"`
	Attractors         []Attractor `json:"attractors"`
	Lyapunov           []float64   `json:"lyapunov"` // one exponent per tensor axis
}

// Report bundles everything one analysis computes.
type Report struct {
	Analysis   Analysis
	Coherence  CoherenceMetrics
	Risk       RiskMetrics
	PhaseSpace PhaseSpace
}

// #endregion analysis

// #region thought

// Thought is an immutable scored record produced by the engine.
type Thought struct {
	ID         string           `json:"id"`
	Content    []byte           `json:"content"`
	Confidence uint64           `json:"confidence"`
	Impact     dimension.Vector `json:"impact"`
	CreatedAt  time.Time        `json:"created_at"`
}

// #endregion thought
