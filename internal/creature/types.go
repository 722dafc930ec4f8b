package creature

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
)

// ErrMissingCaller means the operation arrived without a caller identity.
var ErrMissingCaller = errors.New("missing caller identity")

// #region config

// Config holds the domain parameters of a service.
type Config struct {
	Colony colony.Config
	Engine quantum.Config
	Policy strategy.PolicyConfig
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		Colony: colony.DefaultConfig(),
		Engine: quantum.DefaultConfig(),
		Policy: strategy.DefaultPolicyConfig(),
	}
}

// #endregion config

// #region result

// Result is what analyze_strategy hands back to the caller. The first six
// fields describe the committed strategy; the rest is the engine report it was
// derived from.
type Result struct {
	RiskScore      uint64 `json:"risk_score"`
	ExpectedReturn uint64 `json:"expected_return"`
	IsValid        bool   `json:"is_valid"`
	ThoughtID      string `json:"thought_id"`
	StrategyID     string `json:"strategy_id"`
	Evolved        bool   `json:"evolved"`

	Confidence     uint64             `json:"confidence"`
	StabilityScore uint64             `json:"stability_score"`
	Volatility     uint64             `json:"volatility"`
	Correlation    uint64             `json:"correlation"`
	PhaseSpace     quantum.PhaseSpace `json:"phase_space"`
}

// #endregion result

// #region collaborators

// Store persists the colony. CommitThought must write everything in one
// transaction or nothing.
type Store interface {
	SaveRegistration(ctx context.Context, r colony.Registration) error
	CommitThought(ctx context.Context, ch colony.Change, rec strategy.Record) error
	LoadSnapshot(ctx context.Context) (colony.Snapshot, error)
	GetStrategy(ctx context.Context, id string) (strategy.Record, error)
}

// Emitter publishes facts about committed work.
type Emitter interface {
	ThoughtGenerated(ctx context.Context, thoughtID string, confidence uint64) error
	StrategyAnalyzed(ctx context.Context, strategyID string, riskScore uint64) error
}

// #endregion collaborators
