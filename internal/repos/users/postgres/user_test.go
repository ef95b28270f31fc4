package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgtestutil"
)

func TestUsers_CreateAndBindReferrer(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	created, err := repo.Create(ctx, tx, 10, nil)
	if err != nil || !created {
		t.Fatalf("create referrer: created=%v err=%v", created, err)
	}

	created, err = repo.Create(ctx, tx, 11, nil)
	if err != nil || !created {
		t.Fatalf("create user: created=%v err=%v", created, err)
	}

	created, err = repo.Create(ctx, tx, 11, nil)
	if err != nil || created {
		t.Fatalf("second create must be a no-op: created=%v err=%v", created, err)
	}

	bound, err := repo.BindReferrer(ctx, tx, 11, 10)
	if err != nil || !bound {
		t.Fatalf("bind: bound=%v err=%v", bound, err)
	}

	bound, err = repo.BindReferrer(ctx, tx, 11, 12)
	if err != nil || bound {
		t.Fatalf("rebind must be refused: bound=%v err=%v", bound, err)
	}

	bound, err = repo.BindReferrer(ctx, tx, 10, 10)
	if err != nil || bound {
		t.Fatalf("self referral must be refused: bound=%v err=%v", bound, err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	u, err := repo.Get(ctx, db, 11)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.ReferrerID == nil || *u.ReferrerID != 10 {
		t.Fatalf("referrer not bound: %+v", u.ReferrerID)
	}
	if !u.Active {
		t.Fatal("new user must be active")
	}

	referred, err := repo.ListReferred(ctx, db, 10)
	if err != nil {
		t.Fatalf("list referred: %v", err)
	}
	if len(referred) != 1 || referred[0] != 11 {
		t.Fatalf("unexpected referred: %v", referred)
	}

	ids, err := repo.ListIDs(ctx, db, 10, 10)
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 11 {
		t.Fatalf("unexpected ids after 10: %v", ids)
	}

	err = repo.Deactivate(ctx, db, 11)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	u, err = repo.Get(ctx, db, 11)
	if err != nil {
		t.Fatalf("get after deactivate: %v", err)
	}
	if u.Active {
		t.Fatal("user must be inactive")
	}

	_, err = repo.Get(ctx, db, 999)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestUsers_IncreaseAndOverwrite(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()
	seedUser(t, db, 3, 0, 0, 0)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = repo.IncreaseBalance(ctx, tx, 3, domain.CurrencyBonus, 700)
	if err != nil {
		t.Fatalf("increase: %v", err)
	}

	err = repo.OverwriteBalance(ctx, tx, 3, domain.CurrencyPool, 55)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	err = repo.IncreaseBalance(ctx, tx, 404, domain.CurrencyBonus, 1)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("increase missing user: want ErrUserNotFound, got %v", err)
	}

	got, err := repo.LockAndGetBalances(ctx, tx, 3)
	if err != nil {
		t.Fatalf("lock and get: %v", err)
	}

	want := domain.Balances{Primary: 0, Bonus: 700, Pool: 55}
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}
}
