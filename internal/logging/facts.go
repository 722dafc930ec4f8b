package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// #region log-fact
// LogFact writes a fact entry to the facts table.
func LogFact(ctx context.Context, db *sql.DB, f Fact) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.Kind == "" || f.SubjectID == "" {
		return fmt.Errorf("log fact: kind and subject are required")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO facts (kind, subject_id, value, created_at) VALUES (?, ?, ?, ?)`,
		f.Kind,
		f.SubjectID,
		f.Value,
		f.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("log fact: %w", err)
	}
	return nil
}

// #endregion log-fact

// #region fact-log
// FactLog emits the colony's observable facts: a facts row when a database is
// attached, and always a structured log line.
type FactLog struct {
	db  *sql.DB
	log *zap.Logger
}

// NewFactLog creates a fact emitter. db may be nil for log-only emission.
func NewFactLog(db *sql.DB, log *zap.Logger) *FactLog {
	if log == nil {
		log = zap.NewNop()
	}
	return &FactLog{db: db, log: log}
}

// ThoughtGenerated records that a thought was committed.
func (l *FactLog) ThoughtGenerated(ctx context.Context, thoughtID string, confidence uint64) error {
	l.log.Info("[FACT] ThoughtGenerated",
		zap.String("thought_id", thoughtID),
		zap.Uint64("confidence", confidence),
	)
	return l.write(ctx, Fact{Kind: KindThoughtGenerated, SubjectID: thoughtID, Value: confidence})
}

// StrategyAnalyzed records that a strategy record was committed.
func (l *FactLog) StrategyAnalyzed(ctx context.Context, strategyID string, riskScore uint64) error {
	l.log.Info("[FACT] StrategyAnalyzed",
		zap.String("strategy_id", strategyID),
		zap.Uint64("risk_score", riskScore),
	)
	return l.write(ctx, Fact{Kind: KindStrategyAnalyzed, SubjectID: strategyID, Value: riskScore})
}

func (l *FactLog) write(ctx context.Context, f Fact) error {
	if l.db == nil {
		return nil
	}
	return LogFact(ctx, l.db, f)
}

// #endregion fact-log
