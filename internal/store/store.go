package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite-backed store.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and bootstraps the
// schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY churn
	// and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &DB{db: db, now: time.Now}
	if err := s.bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) bootstrap(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			client TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'pending',
			due_date TEXT NOT NULL DEFAULT '',
			due_time TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			priority TEXT NOT NULL,
			client TEXT NOT NULL DEFAULT '',
			variables TEXT NOT NULL DEFAULT '{}',
			recurrence TEXT NOT NULL,
			due_offset_days INTEGER NOT NULL DEFAULT 0,
			due_time TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run_at DATETIME,
			next_run_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS template_instances (
			id TEXT PRIMARY KEY,
			template_id INTEGER NOT NULL,
			task_id INTEGER,
			title TEXT NOT NULL,
			triggered_by TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			executed_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS task_calendar_mappings (
			task_id INTEGER PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			calendar_id TEXT NOT NULL,
			sync_status TEXT NOT NULL DEFAULT 'synced',
			conflict_reason TEXT NOT NULL DEFAULT '',
			last_synced_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_instances_template ON template_instances(template_id, executed_at);
		CREATE INDEX IF NOT EXISTS idx_mappings_status ON task_calendar_mappings(sync_status);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) timestamp() time.Time {
	return s.now().UTC()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowsAffected turns a zero-row write into ErrNotFound.
func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
