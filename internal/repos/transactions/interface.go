package transactions

import (
	"context"
	"database/sql"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

type Transactions interface {
	Insert(ctx context.Context, tx *sql.Tx, t domain.Transaction) (int64, error)
	// SumByCurrency folds the whole ledger of a user into balances.
	SumByCurrency(ctx context.Context, q pgutils.Querier, userID uint64) (domain.Balances, error)
	// SumCredits adds up positive rows of the given kinds in one currency.
	SumCredits(ctx context.Context, q pgutils.Querier, userID uint64, c domain.Currency, kinds []domain.Kind) (int64, error)
	// SumDebits is the magnitude of the negative rows of the given kinds
	// whose description starts with descPrefix. An empty prefix matches all.
	SumDebits(ctx context.Context, q pgutils.Querier, userID uint64, c domain.Currency, kinds []domain.Kind, descPrefix string) (int64, error)
	ListByUser(ctx context.Context, q pgutils.Querier, userID uint64, limit int) ([]domain.Transaction, error)
}
