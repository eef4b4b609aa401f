package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/gmkovacs/tilerun/internal/model"
)

// schema creates the two tables backing run history. Steps reference
// their run by ID; position preserves pipeline order for display.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	exit_code   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	started_at  TIMESTAMP,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Store persists run records in a sqlite database file.
//
// Usage:
//
//	s, err := history.Open(path)
//	if err != nil { /* history unavailable, not fatal */ }
//	defer s.Close()
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the history database at the given
// path, ensuring the schema exists. Parent directories are created so the
// default .tilerun/history.db location works on first run.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema in %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// RecordRun inserts a completed run and its step results in a single
// transaction, so a half-written record can never appear in listings.
func (s *Store) RecordRun(ctx context.Context, rec *model.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	// Rollback is a no-op after a successful Commit.
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, exit_code) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}

	for i, step := range rec.Steps {
		// Skipped steps have a zero StartedAt; store NULL rather than a
		// misleading zero-value timestamp.
		var startedAt interface{}
		if !step.StartedAt.IsZero() {
			startedAt = step.StartedAt.UTC()
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, position, name, status, exit_code, started_at, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, step.Name.String(), step.Status.String(), step.ExitCode,
			startedAt, step.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %s of run %s: %w", step.Name, rec.ID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first, with their step
// results attached in pipeline order. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	query := `SELECT id, started_at, finished_at, exit_code FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.ExitCode); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}

	// Attach steps per run. The history is small (one row per CLI run),
	// so an N+1 query here is simpler than a join with regrouping.
	for i := range runs {
		steps, err := s.listSteps(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Steps = steps
	}

	return runs, nil
}

// listSteps fetches the step results of one run in pipeline order.
func (s *Store) listSteps(ctx context.Context, runID string) ([]model.StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, exit_code, started_at, duration_ms
		 FROM steps WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	var steps []model.StepResult
	for rows.Next() {
		var (
			step       model.StepResult
			name       string
			status     string
			startedAt  sql.NullTime
			durationMS int64
		)
		if err := rows.Scan(&name, &status, &step.ExitCode, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		step.Name = model.StepName(name)
		step.Status = model.StepStatus(status)
		if startedAt.Valid {
			step.StartedAt = startedAt.Time
		}
		step.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Close releases the underlying database handle.
// Close is safe to call on a nil store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
