package state

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// #region thought-row

// ThoughtRow is a persisted thought together with its owning identity.
type ThoughtRow struct {
	Identity   string
	Seq        int64
	ThoughtID  string
	Content    []byte
	Confidence uint64
	CreatedAt  time.Time
}

// #endregion thought-row

// #region fact-row

// FactRow is a single row of the facts table.
type FactRow struct {
	ID        int64
	Kind      string // "ThoughtGenerated" | "StrategyAnalyzed"
	SubjectID string
	Value     uint64
	CreatedAt time.Time
}

// #endregion fact-row
