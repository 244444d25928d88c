package persistence

import (
	"context"
	"database/sql"
)

type sqliteTxKey struct{}

// WithSQLiteTx stores a SQLite transaction in the context.
func WithSQLiteTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, sqliteTxKey{}, tx)
}

// SQLiteTxFromContext extracts a SQLite transaction from the context.
func SQLiteTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqliteTxKey{}).(*sql.Tx)
	return tx, ok
}

// RunSQLiteTx runs fn inside a transaction. SQLite allows one writer at a
// time, so transactions are serializable by construction and need no retry
// loop. Nested calls join the outer transaction.
func RunSQLiteTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := SQLiteTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(WithSQLiteTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
