package strategy

import (
	"fmt"

	"github.com/danielpatrickdp/creature-colony/internal/quantum"
)

// #region build

// Build assembles a strategy record. It applies no validation of its own;
// thresholds are enforced by Policy before the thought is recorded.
func Build(id string, thought quantum.Thought, a quantum.Analysis) Record {
	return Record{
		ID:             id,
		RiskScore:      a.RiskScore,
		ExpectedReturn: a.ExpectedReturn,
		ThoughtID:      thought.ID,
		IsValid:        true,
		CreatedAt:      thought.CreatedAt,
	}
}

// #endregion build

// #region policy

// Policy checks strategy payloads and analyses against configured thresholds.
type Policy struct {
	config PolicyConfig
}

// NewPolicy creates a policy with the given thresholds.
func NewPolicy(config PolicyConfig) *Policy {
	return &Policy{config: config}
}

// CheckPayload rejects empty or oversized payloads.
func (p *Policy) CheckPayload(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload: %w", ErrInvalidStrategy)
	}
	if p.config.MaxPayloadBytes > 0 && len(data) > p.config.MaxPayloadBytes {
		return fmt.Errorf("payload %d bytes exceeds %d: %w", len(data), p.config.MaxPayloadBytes, ErrInvalidStrategy)
	}
	return nil
}

// CheckAnalysis rejects analyses above the risk ceiling or below the confidence floor.
// Risk is checked first.
func (p *Policy) CheckAnalysis(a quantum.Analysis) error {
	if a.RiskScore > p.config.MaxRiskScore {
		return fmt.Errorf("risk %d exceeds %d: %w", a.RiskScore, p.config.MaxRiskScore, ErrRiskTooHigh)
	}
	if c := quantum.Confidence(a); c < p.config.MinConfidence {
		return fmt.Errorf("confidence %d below %d: %w", c, p.config.MinConfidence, ErrLowConfidence)
	}
	return nil
}

// #endregion policy
