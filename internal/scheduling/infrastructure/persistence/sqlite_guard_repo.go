package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
)

// SQLiteGuardRepository implements domain.GuardRepository on SQLite.
type SQLiteGuardRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteGuardRepository creates the repository.
func NewSQLiteGuardRepository(db *sql.DB, logger *slog.Logger) *SQLiteGuardRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteGuardRepository{db: db, logger: logger}
}

func (r *SQLiteGuardRepository) executor(ctx context.Context) sqliteExecutor {
	if tx, ok := sharedPersistence.SQLiteTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Create claims the key. Zero rows affected means someone else already
// holds it.
func (r *SQLiteGuardRepository) Create(ctx context.Context, kind domain.GuardKind, key string) error {
	result, err := r.executor(ctx).ExecContext(ctx, `
		INSERT OR IGNORE INTO idempotency_guards (kind, key) VALUES (?, ?)
	`, string(kind), key)
	if err != nil {
		return fmt.Errorf("create guard: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// Exists reports whether the key is already claimed.
func (r *SQLiteGuardRepository) Exists(ctx context.Context, kind domain.GuardKind, key string) (bool, error) {
	var one int
	err := r.executor(ctx).QueryRowContext(ctx, `
		SELECT 1 FROM idempotency_guards WHERE kind = ? AND key = ?
	`, string(kind), key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check guard: %w", err)
	}
	return true, nil
}
