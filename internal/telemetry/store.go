// Package telemetry records runs: a SQLite store for post-run analysis,
// a recorder that drains the event bus into it, and an optional radio
// uplink that streams compact frames to a ground station.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed run archive. One row per run, plus its
// phase transitions, periodic samples, and final scheduler statistics.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the archive at dbPath. Parent directories
// are created if needed. WAL mode and a busy timeout are set through
// the connection string.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite doesn't support _foreign_keys in the
	// connection string; it is enabled via PRAGMA below.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initStore(ctx, db)
}

// NewMemoryStore creates an in-memory archive for testing. A shared
// cache lets multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return initStore(ctx, db)
}

func initStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection for the recorder's appends, one for concurrent
	// report queries.
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates all required tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		course TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		result TEXT NOT NULL DEFAULT 'running',
		ticks INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transitions (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		at DATETIME NOT NULL,
		from_phase TEXT NOT NULL,
		to_phase TEXT NOT NULL,
		cause TEXT NOT NULL,
		tick INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		at DATETIME NOT NULL,
		phase TEXT NOT NULL,
		line_state TEXT NOT NULL,
		line_position REAL NOT NULL,
		heading REAL NOT NULL,
		heading_error REAL NOT NULL,
		left_effort REAL NOT NULL,
		right_effort REAL NOT NULL,
		left_velocity REAL NOT NULL,
		right_velocity REAL NOT NULL,
		left_counts INTEGER NOT NULL,
		right_counts INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_samples_run_seq ON samples(run_id, seq);

	CREATE TABLE IF NOT EXISTS task_stats (
		run_id TEXT NOT NULL,
		task TEXT NOT NULL,
		priority INTEGER NOT NULL,
		period_us INTEGER NOT NULL,
		runs INTEGER NOT NULL,
		missed INTEGER NOT NULL,
		max_late_us INTEGER NOT NULL,
		PRIMARY KEY (run_id, task),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
