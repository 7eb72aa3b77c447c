// Package sqlite persists release runs and step outcomes in a local SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses stored in the journal
const (
	RunRunning = "running"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	version     TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS steps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step        TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id);
`

// Run is one recorded release attempt
type Run struct {
	ID         string
	Version    string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Step is one recorded step outcome
type Step struct {
	Step       string
	Status     string
	Message    string
	RecordedAt time.Time
}

// Journal implements repositories.ReleaseJournal
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath returns the journal location under the user's config dir
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "rbrelease", "history.db"), nil
}

// Open initializes or connects to the journal database at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Journal{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file path
func (j *Journal) Path() string {
	return j.path
}

// StartRun records a run that began at startedAt
func (j *Journal) StartRun(runID, version string, startedAt time.Time) error {
	_, err := j.db.ExecContext(context.Background(),
		`INSERT INTO runs (id, version, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, version, RunRunning, formatTimestamp(startedAt))
	if err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	return nil
}

// RecordStep records the outcome of a single step
func (j *Journal) RecordStep(runID, step, status, message string) error {
	_, err := j.db.ExecContext(context.Background(),
		`INSERT INTO steps (run_id, step, status, message, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		runID, step, status, message, j.timestamp())
	if err != nil {
		return fmt.Errorf("record step %s for run %s: %w", step, runID, err)
	}
	return nil
}

// FinishRun records the final status of a run and when it ended
func (j *Journal) FinishRun(runID, status string, finishedAt time.Time) error {
	res, err := j.db.ExecContext(context.Background(),
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, formatTimestamp(finishedAt), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, version, status, started_at, finished_at FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Version, &run.Status, &started, &finished); err != nil {
			return nil, err
		}
		if run.StartedAt, err = parseTimestamp(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			ts, err := parseTimestamp(finished.String)
			if err != nil {
				return nil, err
			}
			run.FinishedAt = &ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns the recorded steps of a run in the order they ran
func (j *Journal) Steps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT step, status, message, recorded_at FROM steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps for run %s: %w", runID, err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			step     Step
			recorded string
		)
		if err := rows.Scan(&step.Step, &step.Status, &step.Message, &recorded); err != nil {
			return nil, err
		}
		if step.RecordedAt, err = parseTimestamp(recorded); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (j *Journal) timestamp() string {
	return formatTimestamp(j.now())
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}
