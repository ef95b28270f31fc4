package pgutils_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/fastprodman/matrixledger/internal/infra/pgtestutil"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func countUsers(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int
	err := db.QueryRowContext(t.Context(), `SELECT count(*) FROM users`).Scan(&n)
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func insertUser(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users (id) VALUES ($1)`, id)
	return err
}

func TestWithTx(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	ctx := t.Context()
	errBoom := errors.New("boom")

	err := pgutils.WithTx(ctx, db, func(tx *sql.Tx) error {
		return insertUser(ctx, tx, 1)
	})
	if err != nil {
		t.Fatalf("commit path: %v", err)
	}

	err = pgutils.WithTx(ctx, db, func(tx *sql.Tx) error {
		ierr := insertUser(ctx, tx, 2)
		if ierr != nil {
			return ierr
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic must propagate")
			}
		}()
		_ = pgutils.WithTx(ctx, db, func(tx *sql.Tx) error {
			_ = insertUser(ctx, tx, 3)
			panic("boom")
		})
	}()

	if got := countUsers(t, db); got != 1 {
		t.Fatalf("users = %d, want 1", got)
	}
}

func TestWithTxOptions_SnapshotIsReadOnly(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	ctx := t.Context()
	err := pgutils.WithTxOptions(ctx, db, pgutils.Snapshot, func(tx *sql.Tx) error {
		return insertUser(ctx, tx, 1)
	})
	if err == nil {
		t.Fatal("insert in a read-only snapshot must fail")
	}
	if got := countUsers(t, db); got != 0 {
		t.Fatalf("users = %d, want 0", got)
	}
}
