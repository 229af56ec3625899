// Package store persists dispatch runs, job outcomes and clone pairs in a
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hugin/internal/dispatch"
	"hugin/internal/logging"
)

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	session TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	total INTEGER DEFAULT 0,
	ok INTEGER DEFAULT 0,
	failed INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	name TEXT NOT NULL,
	job_file TEXT NOT NULL,
	project TEXT DEFAULT '',
	example TEXT DEFAULT '',
	library TEXT DEFAULT '',
	status TEXT NOT NULL,
	error TEXT DEFAULT '',
	pairs INTEGER DEFAULT 0,
	started_at TEXT NOT NULL,
	duration_ms INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_run ON jobs(run_id);

CREATE TABLE IF NOT EXISTS clone_pairs (
	job_id TEXT NOT NULL REFERENCES jobs(id),
	seq INTEGER NOT NULL,
	project_start_line INTEGER NOT NULL,
	project_start_column INTEGER NOT NULL,
	project_end_line INTEGER NOT NULL,
	project_end_column INTEGER NOT NULL,
	example_start_line INTEGER NOT NULL,
	example_start_column INTEGER NOT NULL,
	example_end_line INTEGER NOT NULL,
	example_end_column INTEGER NOT NULL,
	project_score REAL,
	example_score REAL,
	PRIMARY KEY (job_id, seq)
);
`

// Store is a SQLite-backed result store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("result store ready at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Run is one recorded dispatch of a session.
type Run struct {
	ID       string
	Session  string
	Started  time.Time
	Finished time.Time // zero while the run is open
	Total    int
	OK       int
	Failed   int
}

// BeginRun records the start of a dispatch and returns its id.
func (s *Store) BeginRun(ctx context.Context, session string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, session, started_at) VALUES (?, ?, ?)`,
		id, session, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	logging.StoreDebug("began run %s for %s", id, session)
	return id, nil
}

// FinishRun closes a run with the tally of its outcomes.
func (s *Store) FinishRun(ctx context.Context, runID string, summary dispatch.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, ok = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), summary.Total, summary.OK, summary.Failed+summary.Canceled, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run: unknown run %s", runID)
	}
	return nil
}

// Runs returns up to limit runs, most recent first. A limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session, started_at, finished_at, total, ok, failed FROM runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.Session, &started, &finished, &r.Total, &r.OK, &r.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if r.Started, err = time.Parse(timeLayout, started); err != nil {
		return nil, err
	}
	if finished.Valid {
		if r.Finished, err = time.Parse(timeLayout, finished.String); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
