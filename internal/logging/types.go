package logging

import "time"

// #region fact-kinds
const (
	KindThoughtGenerated = "ThoughtGenerated"
	KindStrategyAnalyzed = "StrategyAnalyzed"
)

// #endregion fact-kinds

// #region fact
// Fact is a single row in the facts table. Value carries the confidence for
// ThoughtGenerated and the risk score for StrategyAnalyzed.
type Fact struct {
	Kind      string
	SubjectID string
	Value     uint64
	CreatedAt time.Time
}

// #endregion fact
