package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGuardRepository implements domain.GuardRepository. The insert is
// the claim: whichever caller lands the row first wins, everyone else gets
// ErrAlreadyExists.
type PostgresGuardRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresGuardRepository creates the repository.
func NewPostgresGuardRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresGuardRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGuardRepository{pool: pool, logger: logger}
}

func (r *PostgresGuardRepository) executor(ctx context.Context) pgxExecutor {
	if tx, ok := sharedPersistence.PgxTxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Create claims the key. Zero rows affected means someone else already
// holds it.
func (r *PostgresGuardRepository) Create(ctx context.Context, kind domain.GuardKind, key string) error {
	tag, err := r.executor(ctx).Exec(ctx, `
		INSERT INTO idempotency_guards (kind, key) VALUES ($1, $2)
		ON CONFLICT (kind, key) DO NOTHING
	`, string(kind), key)
	if err != nil {
		return fmt.Errorf("create guard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// Exists reports whether the key is already claimed.
func (r *PostgresGuardRepository) Exists(ctx context.Context, kind domain.GuardKind, key string) (bool, error) {
	var exists bool
	err := r.executor(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM idempotency_guards WHERE kind = $1 AND key = $2)
	`, string(kind), key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check guard: %w", err)
	}
	return exists, nil
}
