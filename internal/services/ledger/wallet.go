package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/cache"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/transactions"
	"github.com/fastprodman/matrixledger/internal/repos/users"
)

const invalidateTimeout = 2 * time.Second

// Wallet owns every balance mutation. Each Charge or Deposit updates the
// cached balance and appends exactly one ledger row inside the caller's Tx.
type Wallet struct {
	db    *sql.DB
	users users.Users
	txns  transactions.Transactions
	cache cache.Balances
}

func New(db *sql.DB, u users.Users, t transactions.Transactions, c cache.Balances) *Wallet {
	if c == nil {
		c = cache.Nop{}
	}

	return &Wallet{db: db, users: u, txns: t, cache: c}
}

// Entry describes one balance movement. Amount is always positive; the
// direction comes from Charge or Deposit.
type Entry struct {
	UserID      uint64
	Currency    domain.Currency
	Amount      int64
	Kind        domain.Kind
	Description string
	Reference   uuid.UUID
}

func (e Entry) validate() error {
	if e.Amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, e.Amount)
	}
	if !e.Currency.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, e.Currency)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", e.Kind)
	}

	return nil
}

// Tx is a unit of work. It remembers which users it touched so their cached
// balances can be dropped once it commits.
type Tx struct {
	*sql.Tx
	touched map[uint64]struct{}
}

func (t *Tx) touch(userID uint64) {
	t.touched[userID] = struct{}{}
}

// RunInTx runs fn in one database transaction and invalidates cached
// balances of touched users after a successful commit.
func (w *Wallet) RunInTx(ctx context.Context, fn func(*Tx) error) error {
	return w.RunInTxOptions(ctx, nil, fn)
}

func (w *Wallet) RunInTxOptions(ctx context.Context, opts *sql.TxOptions, fn func(*Tx) error) error {
	touched := make(map[uint64]struct{})

	err := pgutils.WithTxOptions(ctx, w.db, opts, func(tx *sql.Tx) error {
		return fn(&Tx{Tx: tx, touched: touched})
	})
	if err != nil {
		return err
	}

	if len(touched) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}

	// the unit is committed; a canceled request must not keep stale entries
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	cerr := w.cache.Invalidate(ictx, ids...)
	if cerr != nil {
		log.WithError(cerr).WithField("users", ids).Warn("balance cache invalidation failed")
	}

	return nil
}

// Charge decrements a balance only if it stays non-negative.
func (w *Wallet) Charge(ctx context.Context, tx *Tx, e Entry) error {
	err := e.validate()
	if err != nil {
		return err
	}

	err = w.users.DecreaseBalance(ctx, tx.Tx, e.UserID, e.Currency, e.Amount)
	if err != nil {
		return fmt.Errorf("charge %s: %w", e.Currency, err)
	}

	_, err = w.txns.Insert(ctx, tx.Tx, domain.Transaction{
		UserID:      e.UserID,
		AmountMinor: -e.Amount,
		Currency:    e.Currency,
		Kind:        e.Kind,
		Description: e.Description,
		Reference:   e.Reference,
	})
	if err != nil {
		return fmt.Errorf("record charge: %w", err)
	}

	tx.touch(e.UserID)

	return nil
}

// Deposit is a blind increment.
func (w *Wallet) Deposit(ctx context.Context, tx *Tx, e Entry) error {
	err := e.validate()
	if err != nil {
		return err
	}

	err = w.users.IncreaseBalance(ctx, tx.Tx, e.UserID, e.Currency, e.Amount)
	if err != nil {
		return fmt.Errorf("deposit %s: %w", e.Currency, err)
	}

	_, err = w.txns.Insert(ctx, tx.Tx, domain.Transaction{
		UserID:      e.UserID,
		AmountMinor: e.Amount,
		Currency:    e.Currency,
		Kind:        e.Kind,
		Description: e.Description,
		Reference:   e.Reference,
	})
	if err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}

	tx.touch(e.UserID)

	return nil
}

// Realign overwrites a cached balance with the ledger-derived value. No ledger
// row is written: the ledger is already the truth being restored.
func (w *Wallet) Realign(ctx context.Context, tx *Tx, userID uint64, c domain.Currency, ledgerSum int64) error {
	err := w.users.OverwriteBalance(ctx, tx.Tx, userID, c, ledgerSum)
	if err != nil {
		return fmt.Errorf("realign %s: %w", c, err)
	}

	tx.touch(userID)

	return nil
}

// GetBalances reads through the cache. Cache failures degrade to a database
// read. The fresh value is stored only if no commit invalidated the user
// since the miss.
func (w *Wallet) GetBalances(ctx context.Context, userID uint64) (domain.Balances, error) {
	b, gen, ok, err := w.cache.Get(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("balance cache read failed")
	}
	if ok {
		return b, nil
	}

	cacheable := err == nil

	b, err = w.users.GetBalances(ctx, w.db, userID)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("get balances: %w", err)
	}

	if !cacheable {
		return b, nil
	}

	stored, err := w.cache.Set(ctx, userID, gen, b)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("balance cache write failed")
	} else if !stored {
		log.WithField("user_id", userID).Debug("balances changed during read, not cached")
	}

	return b, nil
}

// History returns the newest ledger rows of a user.
func (w *Wallet) History(ctx context.Context, userID uint64, limit int) ([]domain.Transaction, error) {
	err := w.users.Exists(ctx, w.db, userID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	rows, err := w.txns.ListByUser(ctx, w.db, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return rows, nil
}

// DB exposes the pool for read-only callers that page outside a unit of work.
func (w *Wallet) DB() *sql.DB {
	return w.db
}
