package db

import (
	"context"
	"database/sql"
)

// Querier is satisfied by *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx runs fn in a transaction: commit when fn returns nil, roll back
// otherwise (also on panic, which is re-raised).
func InTx(ctx context.Context, dbh *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := dbh.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

// Bit converts a flag to the 0/1 stored in *_completed columns.
func Bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
