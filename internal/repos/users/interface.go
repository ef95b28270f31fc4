package users

import (
	"context"
	"database/sql"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

type Users interface {
	// Create inserts the user when absent and reports whether it did.
	Create(ctx context.Context, tx *sql.Tx, userID uint64, referrerID *uint64) (bool, error)
	Get(ctx context.Context, q pgutils.Querier, userID uint64) (domain.User, error)
	Exists(ctx context.Context, q pgutils.Querier, userID uint64) error
	// BindReferrer sets the referrer only if none is bound yet.
	BindReferrer(ctx context.Context, tx *sql.Tx, userID, referrerID uint64) (bool, error)
	Deactivate(ctx context.Context, q pgutils.Querier, userID uint64) error

	GetBalances(ctx context.Context, q pgutils.Querier, userID uint64) (domain.Balances, error)
	LockAndGetBalances(ctx context.Context, tx *sql.Tx, userID uint64) (domain.Balances, error)
	IncreaseBalance(ctx context.Context, tx *sql.Tx, userID uint64, c domain.Currency, amount int64) error
	DecreaseBalance(ctx context.Context, tx *sql.Tx, userID uint64, c domain.Currency, amount int64) error
	OverwriteBalance(ctx context.Context, tx *sql.Tx, userID uint64, c domain.Currency, amount int64) error

	ListReferred(ctx context.Context, q pgutils.Querier, referrerID uint64) ([]uint64, error)
	ListIDs(ctx context.Context, q pgutils.Querier, afterID uint64, limit int) ([]uint64, error)
}
