package nodes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgtestutil"
)

func insertNode(t *testing.T, ctx context.Context, db *sql.DB, owner uint64, parent *int64, pos int) domain.Node {
	t.Helper()

	repo := New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	n, err := repo.Insert(ctx, tx, domain.Node{OwnerID: owner, Tier: domain.TierBasic, ParentID: parent, Position: pos})
	if err != nil {
		t.Fatalf("insert node: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	return n
}

func TestNodes_TreeQueries(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`INSERT INTO users (id) VALUES (1), (2)`)
	if err != nil {
		t.Fatalf("seed users: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	repo := New()

	root := insertNode(t, ctx, db, 1, nil, 0)
	if !root.IsRoot() || !root.Active || root.Level != 0 {
		t.Fatalf("unexpected root: %+v", root)
	}

	// insert children out of position order to check ordering
	c2 := insertNode(t, ctx, db, 2, &root.ID, 2)
	c0 := insertNode(t, ctx, db, 2, &root.ID, 0)
	c1 := insertNode(t, ctx, db, 2, &root.ID, 1)
	gc := insertNode(t, ctx, db, 2, &c1.ID, 0)

	count, err := repo.CountChildren(ctx, db, root.ID)
	if err != nil || count != 3 {
		t.Fatalf("count children: %d, %v", count, err)
	}

	children, err := repo.Children(ctx, db, []int64{root.ID, c1.ID, c2.ID})
	if err != nil {
		t.Fatalf("children: %v", err)
	}

	got := children[root.ID]
	if len(got) != 3 || got[0].ID != c0.ID || got[1].ID != c1.ID || got[2].ID != c2.ID {
		t.Fatalf("children not ordered by position: %+v", got)
	}
	if len(children[c1.ID]) != 1 || children[c1.ID][0].ID != gc.ID {
		t.Fatalf("grandchild missing: %+v", children[c1.ID])
	}
	if len(children[c2.ID]) != 0 {
		t.Fatalf("leaf must have no children: %+v", children[c2.ID])
	}

	anc, err := repo.Ancestors(ctx, db, gc.ID, 5)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(anc) != 2 || anc[0] != c1.ID || anc[1] != root.ID {
		t.Fatalf("ancestors: want [%d %d], got %v", c1.ID, root.ID, anc)
	}

	anc, err = repo.Ancestors(ctx, db, gc.ID, 1)
	if err != nil || len(anc) != 1 || anc[0] != c1.ID {
		t.Fatalf("limited ancestors: %v, %v", anc, err)
	}

	oldest, err := repo.OldestActive(ctx, db, 2, domain.TierBasic)
	if err != nil {
		t.Fatalf("oldest active: %v", err)
	}
	if oldest.ID != c2.ID {
		t.Fatalf("oldest active: want %d (first inserted), got %d", c2.ID, oldest.ID)
	}

	err = repo.Deactivate(ctx, db, c2.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	oldest, err = repo.OldestActive(ctx, db, 2, domain.TierBasic)
	if err != nil || oldest.ID != c0.ID {
		t.Fatalf("oldest active after deactivate: %+v, %v", oldest, err)
	}

	_, err = repo.OldestActive(ctx, db, 2, domain.TierElite)
	if !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("want ErrNodeNotFound, got %v", err)
	}

	owned, err := repo.ListByOwners(ctx, db, []uint64{2})
	if err != nil || len(owned) != 4 {
		t.Fatalf("list by owners: %d, %v", len(owned), err)
	}
}

func TestNodes_SlotTakenIsConflict(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`INSERT INTO users (id) VALUES (1)`)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	root := insertNode(t, ctx, db, 1, nil, 0)
	insertNode(t, ctx, db, 1, &root.ID, 0)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = New().Insert(ctx, tx, domain.Node{OwnerID: 1, Tier: domain.TierBasic, ParentID: &root.ID, Position: 0})
	if !errors.Is(err, domain.ErrPlacementConflict) {
		t.Fatalf("want ErrPlacementConflict, got %v", err)
	}
}

func TestNodes_ProgressGuards(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`INSERT INTO users (id) VALUES (1)`)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	repo := New()
	n := insertNode(t, ctx, db, 1, nil, 0)

	save := func(level int, pool int64, closed bool) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		defer func() { _ = tx.Rollback() }()

		locked, err := repo.Lock(ctx, tx, n.ID)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}

		locked.Level, locked.PoolMinor, locked.Closed = level, pool, closed

		err = repo.SaveProgress(ctx, tx, locked)
		if err != nil {
			return err
		}

		return tx.Commit()
	}

	if err := save(2, 700, false); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := save(1, 0, false); err == nil {
		t.Fatal("level decrease must be rejected")
	}
	if err := save(5, 0, false); err == nil {
		t.Fatal("level 5 without closed must be rejected")
	}

	got, err := repo.Get(ctx, db, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Level != 2 || got.PoolMinor != 700 {
		t.Fatalf("unexpected persisted state: %+v", got)
	}
}
