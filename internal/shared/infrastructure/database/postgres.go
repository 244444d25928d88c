package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres wraps a pgx connection pool plus schema management.
type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres connects to the given URL and verifies the connection.
func OpenPostgres(ctx context.Context, url string, maxConns int) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.Pool.Close()
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		participants JSONB NOT NULL,
		created_by UUID NOT NULL,
		status TEXT NOT NULL,
		rsvps JSONB NOT NULL DEFAULT '{}',
		conversation_id TEXT NOT NULL,
		has_conflict BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_window ON events (start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_start ON events (status, start_time)`,

	`CREATE TABLE IF NOT EXISTS idempotency_guards (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (kind, key)
	)`,

	`CREATE TABLE IF NOT EXISTS conflict_artifacts (
		id UUID PRIMARY KEY,
		conflict_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		alternatives JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_conflict ON conflict_artifacts (conflict_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS reschedule_log (
		id BIGSERIAL PRIMARY KEY,
		conflict_id TEXT NOT NULL,
		event_id UUID NOT NULL,
		user_id UUID NOT NULL,
		alternative_index INT NOT NULL,
		old_start TIMESTAMPTZ NOT NULL,
		old_end TIMESTAMPTZ NOT NULL,
		new_start TIMESTAMPTZ NOT NULL,
		new_end TIMESTAMPTZ NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reschedule_event ON reschedule_log (event_id)`,

	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id UUID PRIMARY KEY,
		timezone TEXT NOT NULL,
		working_hours JSONB,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
