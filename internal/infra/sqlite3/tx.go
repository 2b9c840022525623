package sqlite3

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type (
	TxFunc    = func(*sqlx.Tx) error
	TxOptions = *sql.TxOptions
)

// WithTx runs fn inside a transaction on db. fn must use only the passed tx:
// with a single-connection pool any call on db from inside fn blocks forever.
func WithTx(ctx context.Context, db *sqlx.DB, txOpts TxOptions, fn TxFunc) error {
	tx, err := db.BeginTxx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("db begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() // Ignore rollback error during panic
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("db transaction error: %v, rollback error: %w", err, rbErr)
		}
		return fmt.Errorf("db transaction error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db commit transaction: %w", err)
	}

	return nil
}
