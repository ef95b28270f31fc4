package pgutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Snapshot is a read-only view that stays consistent across statements.
var Snapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// WithTx runs fn in a transaction with the server's default isolation.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return WithTxOptions(ctx, db, nil, fn)
}

// WithTxOptions commits when fn returns nil and rolls back otherwise,
// including when fn panics. fn's error is returned as is so callers can
// match sentinels and pg codes.
func WithTxOptions(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		p := recover()
		if p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
