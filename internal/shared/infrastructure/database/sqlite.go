package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite wraps a sql.DB plus schema management for local mode.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (and creates if missing) the database file at path.
// ":memory:" opens an in-memory database, used by tests.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "tutorloop.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL for concurrency, busy_timeout so writers wait instead of failing.
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite has a single writer; more connections just queue.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return &SQLite{DB: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		participants TEXT NOT NULL,
		created_by TEXT NOT NULL,
		status TEXT NOT NULL,
		rsvps TEXT NOT NULL DEFAULT '{}',
		conversation_id TEXT NOT NULL,
		has_conflict INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_window ON events (start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_start ON events (status, start_time)`,

	`CREATE TABLE IF NOT EXISTS idempotency_guards (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (kind, key)
	)`,

	`CREATE TABLE IF NOT EXISTS conflict_artifacts (
		id TEXT PRIMARY KEY,
		conflict_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		alternatives TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_conflict ON conflict_artifacts (conflict_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS reschedule_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conflict_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		alternative_index INTEGER NOT NULL,
		old_start TEXT NOT NULL,
		old_end TEXT NOT NULL,
		new_start TEXT NOT NULL,
		new_end TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reschedule_event ON reschedule_log (event_id)`,

	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		timezone TEXT NOT NULL,
		working_hours TEXT,
		updated_at TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
