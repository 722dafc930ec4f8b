package state

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS cells (
	identity     TEXT PRIMARY KEY,
	cell_id      TEXT NOT NULL UNIQUE,
	energy       INTEGER NOT NULL,
	stability    INTEGER NOT NULL,
	position     BLOB NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS thoughts (
	thought_id   TEXT PRIMARY KEY,
	identity     TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	content      BLOB,
	confidence   INTEGER NOT NULL,
	impact       BLOB NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE (identity, seq),
	FOREIGN KEY (identity) REFERENCES cells(identity)
);

CREATE TABLE IF NOT EXISTS colony (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	scores          BLOB NOT NULL,
	total_energy    INTEGER NOT NULL,
	cell_count      INTEGER NOT NULL,
	average_energy  INTEGER NOT NULL,
	total_thoughts  INTEGER NOT NULL,
	stability_index INTEGER NOT NULL,
	evolution_stage INTEGER NOT NULL,
	above_threshold INTEGER NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS strategies (
	strategy_id     TEXT PRIMARY KEY,
	thought_id      TEXT NOT NULL,
	risk_score      INTEGER NOT NULL,
	expected_return INTEGER NOT NULL,
	is_valid        INTEGER NOT NULL,
	created_at      TEXT NOT NULL,
	FOREIGN KEY (thought_id) REFERENCES thoughts(thought_id)
);

CREATE TABLE IF NOT EXISTS facts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	subject_id  TEXT NOT NULL,
	value       INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// timeLayout is fixed-width so created_at columns sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store persists the colony in SQLite. Every mutating call runs in one transaction.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	// one writer keeps read-modify-write sequences serialized at the storage layer
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save-registration
// SaveRegistration inserts a new cell and the colony aggregate it produced.
func (s *Store) SaveRegistration(ctx context.Context, r colony.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cells (identity, cell_id, energy, stability, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Cell.Identity, r.Cell.ID, r.Cell.Energy, r.Cell.Stability, encodeVector(r.Cell.Position),
		r.Cell.CreatedAt.UTC().Format(timeLayout), now,
	)
	if err != nil {
		return fmt.Errorf("insert cell: %w", err)
	}

	if err := upsertColony(ctx, tx, r.Aggregate, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save-registration

// #region commit-thought
// CommitThought writes the updated cell, the new thought, the colony aggregate
// and the strategy record atomically.
func (s *Store) CommitThought(ctx context.Context, ch colony.Change, rec strategy.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx,
		`UPDATE cells SET energy = ?, stability = ?, position = ?, updated_at = ? WHERE identity = ?`,
		ch.Cell.Energy, ch.Cell.Stability, encodeVector(ch.Cell.Position), now, ch.Cell.Identity,
	)
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update cell %s: %w", ch.Cell.Identity, ErrNotFound)
	}

	th := ch.Thought
	_, err = tx.ExecContext(ctx,
		`INSERT INTO thoughts (thought_id, identity, seq, content, confidence, impact, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM thoughts WHERE identity = ?), ?, ?, ?, ?)`,
		th.ID, ch.Cell.Identity, ch.Cell.Identity, th.Content, th.Confidence, encodeVector(th.Impact),
		th.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert thought: %w", err)
	}

	if err := upsertColony(ctx, tx, ch.Aggregate, now); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO strategies (strategy_id, thought_id, risk_score, expected_return, is_valid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ThoughtID, rec.RiskScore, rec.ExpectedReturn, rec.IsValid, rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert strategy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertColony(ctx context.Context, tx *sql.Tx, agg colony.Aggregate, now string) error {
	m := agg.Metrics
	_, err := tx.ExecContext(ctx,
		`INSERT INTO colony (id, scores, total_energy, cell_count, average_energy, total_thoughts,
		                     stability_index, evolution_stage, above_threshold, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			scores = excluded.scores,
			total_energy = excluded.total_energy,
			cell_count = excluded.cell_count,
			average_energy = excluded.average_energy,
			total_thoughts = excluded.total_thoughts,
			stability_index = excluded.stability_index,
			evolution_stage = excluded.evolution_stage,
			above_threshold = excluded.above_threshold,
			updated_at = excluded.updated_at`,
		encodeVector(agg.Scores), agg.TotalEnergy, agg.CellCount, m.AverageEnergy, m.TotalThoughts,
		m.StabilityIndex, m.EvolutionStage, agg.AboveThreshold, now,
	)
	if err != nil {
		return fmt.Errorf("upsert colony: %w", err)
	}
	return nil
}

// #endregion commit-thought

// #region load-snapshot
// LoadSnapshot reads the whole colony: aggregate, cells and their thought logs.
// An empty database yields an empty snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (colony.Snapshot, error) {
	var snap colony.Snapshot

	var scores []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT scores, total_energy, cell_count, average_energy, total_thoughts,
		        stability_index, evolution_stage, above_threshold
		 FROM colony WHERE id = 1`,
	).Scan(&scores, &snap.TotalEnergy, &snap.CellCount, &snap.Metrics.AverageEnergy,
		&snap.Metrics.TotalThoughts, &snap.Metrics.StabilityIndex, &snap.Metrics.EvolutionStage,
		&snap.AboveThreshold)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return snap, nil
	case err != nil:
		return colony.Snapshot{}, fmt.Errorf("get colony: %w", err)
	}
	snap.Scores = decodeVector(scores)

	cells, err := s.ListCells(ctx)
	if err != nil {
		return colony.Snapshot{}, err
	}
	for i := range cells {
		th, err := s.cellThoughts(ctx, cells[i].Identity)
		if err != nil {
			return colony.Snapshot{}, err
		}
		cells[i].Thoughts = th
	}
	snap.Cells = cells
	return snap, nil
}

// ListCells returns every cell without thought logs, ordered by identity.
func (s *Store) ListCells(ctx context.Context) ([]cell.State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, cell_id, energy, stability, position, created_at FROM cells ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	defer rows.Close()

	var out []cell.State
	for rows.Next() {
		var st cell.State
		var pos []byte
		var created string
		if err := rows.Scan(&st.Identity, &st.ID, &st.Energy, &st.Stability, &pos, &created); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		st.Position = decodeVector(pos)
		st.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) cellThoughts(ctx context.Context, identity string) ([]quantum.Thought, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thought_id, content, confidence, impact, created_at
		 FROM thoughts WHERE identity = ? ORDER BY seq`, identity)
	if err != nil {
		return nil, fmt.Errorf("list thoughts %s: %w", identity, err)
	}
	defer rows.Close()

	var out []quantum.Thought
	for rows.Next() {
		var th quantum.Thought
		var impact []byte
		var created string
		if err := rows.Scan(&th.ID, &th.Content, &th.Confidence, &impact, &created); err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		th.Impact = decodeVector(impact)
		th.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, th)
	}
	return out, rows.Err()
}

// #endregion load-snapshot

// #region strategies
// GetStrategy retrieves a strategy record by ID.
func (s *Store) GetStrategy(ctx context.Context, id string) (strategy.Record, error) {
	var rec strategy.Record
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT strategy_id, thought_id, risk_score, expected_return, is_valid, created_at
		 FROM strategies WHERE strategy_id = ?`, id,
	).Scan(&rec.ID, &rec.ThoughtID, &rec.RiskScore, &rec.ExpectedReturn, &rec.IsValid, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.Record{}, fmt.Errorf("strategy %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return strategy.Record{}, fmt.Errorf("get strategy %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return rec, nil
}

// ListStrategies returns the most recent strategy records.
func (s *Store) ListStrategies(ctx context.Context, limit int) ([]strategy.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT strategy_id, thought_id, risk_score, expected_return, is_valid, created_at
		 FROM strategies ORDER BY created_at DESC, strategy_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var out []strategy.Record
	for rows.Next() {
		var rec strategy.Record
		var created string
		if err := rows.Scan(&rec.ID, &rec.ThoughtID, &rec.RiskScore, &rec.ExpectedReturn, &rec.IsValid, &created); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListThoughts returns the most recent thoughts across all cells.
func (s *Store) ListThoughts(ctx context.Context, limit int) ([]ThoughtRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, seq, thought_id, content, confidence, created_at
		 FROM thoughts ORDER BY created_at DESC, thought_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}
	defer rows.Close()

	var out []ThoughtRow
	for rows.Next() {
		var r ThoughtRow
		var created string
		if err := rows.Scan(&r.Identity, &r.Seq, &r.ThoughtID, &r.Content, &r.Confidence, &created); err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ThoughtLog returns every thought in commit order.
func (s *Store) ThoughtLog(ctx context.Context) ([]ThoughtRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, seq, thought_id, content, confidence, created_at
		 FROM thoughts ORDER BY created_at ASC, identity, seq`)
	if err != nil {
		return nil, fmt.Errorf("thought log: %w", err)
	}
	defer rows.Close()

	var out []ThoughtRow
	for rows.Next() {
		var r ThoughtRow
		var created string
		if err := rows.Scan(&r.Identity, &r.Seq, &r.ThoughtID, &r.Content, &r.Confidence, &created); err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFacts returns the most recent emitted facts.
func (s *Store) ListFacts(ctx context.Context, limit int) ([]FactRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, subject_id, value, created_at FROM facts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var out []FactRow
	for rows.Next() {
		var f FactRow
		var created string
		if err := rows.Scan(&f.ID, &f.Kind, &f.SubjectID, &f.Value, &created); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// #endregion strategies

// #region vector-encoding
func encodeVector(v dimension.Vector) []byte {
	axes := v.Axes()
	buf := make([]byte, len(axes)*8)
	for i, a := range axes {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(a))
	}
	return buf
}

func decodeVector(b []byte) dimension.Vector {
	var axes [6]dimension.Axis
	for i := range axes {
		if i*8+8 <= len(b) {
			axes[i] = dimension.Axis(int64(binary.LittleEndian.Uint64(b[i*8:])))
		}
	}
	return dimension.FromAxes(axes)
}

// #endregion vector-encoding
