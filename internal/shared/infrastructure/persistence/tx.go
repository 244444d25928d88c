// Package persistence holds the transaction plumbing shared by all
// repositories. Transactions travel in the context so repository calls made
// inside a transactional closure automatically join it.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

// maxSerializableRetries bounds internal retries of contended transactions.
const maxSerializableRetries = 3

type pgxTxKey struct{}

// WithPgxTx stores a pgx transaction in the context.
func WithPgxTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, pgxTxKey{}, tx)
}

// PgxTxFromContext extracts a pgx transaction from the context, if any.
func PgxTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxTxKey{}).(pgx.Tx)
	return tx, ok
}

// IsSerializationFailure reports whether err is a serialization conflict
// between concurrent transactions (safe to retry).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// RunSerializable runs fn inside a serializable transaction, retrying
// serialization failures a bounded number of times. Any other error from fn
// aborts immediately: a detected scheduling conflict is a final answer, not
// contention. Nested calls join the outer transaction.
func RunSerializable(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if _, ok := PgxTxFromContext(ctx); ok {
		return fn(ctx)
	}

	var lastErr error
	for attempt := 0; attempt < maxSerializableRetries; attempt++ {
		tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		err = fn(WithPgxTx(ctx, tx))
		if err != nil {
			_ = tx.Rollback(ctx)
			if IsSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if IsSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}
