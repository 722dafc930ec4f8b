package strategy

import (
	"errors"
	"time"
)

var (
	// ErrInvalidStrategy means the strategy payload was rejected before analysis.
	ErrInvalidStrategy = errors.New("invalid strategy")
	// ErrRiskTooHigh means the analysis risk score exceeds the configured ceiling.
	ErrRiskTooHigh = errors.New("risk too high")
	// ErrLowConfidence means the thought confidence is below the configured floor.
	ErrLowConfidence = errors.New("low confidence")
)

// #region record

// Record is an immutable strategy derived from one analysis and its thought.
type Record struct {
	ID             string    `json:"id"`
	RiskScore      uint64    `json:"risk_score"`
	ExpectedReturn uint64    `json:"expected_return"`
	ThoughtID      string    `json:"thought_id"`
	IsValid        bool      `json:"is_valid"`
	CreatedAt      time.Time `json:"created_at"`
}

// #endregion record

// #region policy-config

// PolicyConfig holds the caller-facing acceptance thresholds.
type PolicyConfig struct {
	MaxRiskScore    uint64 `yaml:"max_risk_score" validate:"lte=100"`
	MinConfidence   uint64 `yaml:"min_confidence"`
	MaxPayloadBytes int    `yaml:"max_payload_bytes" validate:"gte=1"`
}

// DefaultPolicyConfig accepts every analysis and caps payloads at 64 KiB.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MaxRiskScore:    100,
		MinConfidence:   0,
		MaxPayloadBytes: 64 << 10,
	}
}

// #endregion policy-config
