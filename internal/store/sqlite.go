// Package store keeps the history of benchmark runs in a local SQLite
// database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/montiglio/graphbench/internal/bench"
)

// ErrRunExists is returned when a run with the same ID was already saved.
var ErrRunExists = errors.New("store: run already saved")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    graph        TEXT NOT NULL,
    vertices     INTEGER NOT NULL,
    edges        INTEGER NOT NULL,
    started_at   TEXT NOT NULL,
    elapsed_ns   INTEGER NOT NULL,
    trials       INTEGER NOT NULL,
    failed       INTEGER NOT NULL,
    mismatched   INTEGER NOT NULL,
    unverified   INTEGER NOT NULL DEFAULT 0,
    mean_score   REAL NOT NULL,
    mean_ns      INTEGER NOT NULL,
    launches     INTEGER NOT NULL DEFAULT 0,
    bytes_moved  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trials (
    run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    number     INTEGER NOT NULL,
    source     INTEGER NOT NULL,
    status     TEXT NOT NULL,
    iterations INTEGER NOT NULL,
    distance   REAL NOT NULL,
    elapsed_ns INTEGER NOT NULL,
    score      REAL NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    mismatch   INTEGER NOT NULL DEFAULT 0,
    reference_converged  INTEGER NOT NULL DEFAULT 1,
    reference_iterations INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, number)
);

CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// addedColumns are columns introduced after the first schema. Databases
// created earlier get them on open.
var addedColumns = []struct{ table, column, ddl string }{
	{"runs", "unverified", "INTEGER NOT NULL DEFAULT 0"},
	{"trials", "reference_converged", "INTEGER NOT NULL DEFAULT 1"},
	{"trials", "reference_iterations", "INTEGER NOT NULL DEFAULT 0"},
}

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is a saved run summary.
type RunRecord struct {
	ID          string
	Graph       string
	Vertices    int
	Edges       int
	StartedAt   time.Time
	Elapsed     time.Duration
	Trials      int
	Failed      int
	Mismatched  int
	Unverified  int
	MeanScore   float64
	MeanElapsed time.Duration
	Launches    int
	BytesMoved  int64
}

// TrialRecord is a saved trial.
type TrialRecord struct {
	RunID      string
	Number     int
	Source     int
	Status     string
	Iterations int
	Distance   float64
	Elapsed    time.Duration
	Score      float64
	Error      string
	Mismatch   bool
	// ReferenceConverged is false when the score was computed against a
	// reference cut off by its iteration cap.
	ReferenceConverged  bool
	ReferenceIterations int
}

// SQLiteStore saves runs to a local SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode, busy timeout and foreign keys, and creates the schema if needed.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite supports a single writer, and the pragmas below are per
	// connection.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p.what, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	if err := addMissingColumns(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// addMissingColumns brings an older database up to the current schema.
func addMissingColumns(ctx context.Context, db *sql.DB) error {
	for _, c := range addedColumns {
		var n int
		q := "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
		if err := db.QueryRowContext(ctx, q, c.table, c.column).Scan(&n); err != nil {
			return fmt.Errorf("store: inspect %s.%s: %w", c.table, c.column, err)
		}
		if n > 0 {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.ddl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// SaveRun writes the run summary and all its trials in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, rep *bench.Report) error {
	sum := rep.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx for run %s: %w", rep.RunID, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", rep.RunID).Scan(&exists); err != nil {
		return fmt.Errorf("store: check run %s: %w", rep.RunID, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrRunExists, rep.RunID)
	}

	const insertRun = `
		INSERT INTO runs (id, graph, vertices, edges, started_at, elapsed_ns, trials,
			failed, mismatched, unverified, mean_score, mean_ns, launches, bytes_moved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertRun,
		rep.RunID, rep.Graph, rep.Stats.Vertices, rep.Stats.Edges,
		rep.StartedAt.UTC().Format(timeLayout), int64(rep.Elapsed),
		len(rep.Trials), sum.Failed, sum.Mismatched, sum.Unverified, sum.MeanScore, int64(sum.MeanElapsed),
		rep.Device.Launches, rep.Device.BytesToDevice+rep.Device.BytesToHost,
	); err != nil {
		return fmt.Errorf("store: insert run %s: %w", rep.RunID, err)
	}

	const insertTrial = `
		INSERT INTO trials (run_id, number, source, status, iterations, distance,
			elapsed_ns, score, error, mismatch, reference_converged, reference_iterations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, insertTrial)
	if err != nil {
		return fmt.Errorf("store: prepare trial insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range rep.Trials {
		var errText string
		status := t.Status.String()
		if t.Err != nil {
			errText = t.Err.Error()
			status = "failed"
		}
		if _, err := stmt.ExecContext(ctx, rep.RunID, t.Number, t.Source, status, t.Iterations,
			t.Distance, int64(t.Elapsed), t.Score, errText, t.Mismatch != nil,
			t.ReferenceConverged || t.Failed(), t.ReferenceIterations); err != nil {
			return fmt.Errorf("store: insert trial %d of %s: %w", t.Number, rep.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run %s: %w", rep.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	const q = `SELECT id, graph, vertices, edges, started_at, elapsed_ns, trials, failed,
			mismatched, unverified, mean_score, mean_ns, launches, bytes_moved
		FROM runs ORDER BY started_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var result []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		var elapsed, mean int64
		if err := rows.Scan(&r.ID, &r.Graph, &r.Vertices, &r.Edges, &started, &elapsed, &r.Trials,
			&r.Failed, &r.Mismatched, &r.Unverified, &r.MeanScore, &mean, &r.Launches, &r.BytesMoved); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		ts, err := time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("store: parse started_at of %s: %w", r.ID, err)
		}
		r.StartedAt = ts
		r.Elapsed = time.Duration(elapsed)
		r.MeanElapsed = time.Duration(mean)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return result, nil
}

// Trials returns the trials of a run in order. An unknown run has none.
func (s *SQLiteStore) Trials(ctx context.Context, runID string) ([]TrialRecord, error) {
	const q = `SELECT number, source, status, iterations, distance, elapsed_ns, score, error, mismatch,
			reference_converged, reference_iterations
		FROM trials WHERE run_id = ? ORDER BY number`
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query trials of %s: %w", runID, err)
	}
	defer rows.Close()

	var result []TrialRecord
	for rows.Next() {
		t := TrialRecord{RunID: runID}
		var elapsed int64
		if err := rows.Scan(&t.Number, &t.Source, &t.Status, &t.Iterations, &t.Distance,
			&elapsed, &t.Score, &t.Error, &t.Mismatch, &t.ReferenceConverged, &t.ReferenceIterations); err != nil {
			return nil, fmt.Errorf("store: scan trial: %w", err)
		}
		t.Elapsed = time.Duration(elapsed)
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate trials: %w", err)
	}
	return result, nil
}

// DeleteRun removes a run and its trials.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("store: delete run %s: %w", runID, err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
