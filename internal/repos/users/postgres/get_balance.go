package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func (r *usersRepo) GetBalances(ctx context.Context, q pgutils.Querier, userID uint64) (domain.Balances, error) {
	var b domain.Balances

	err := q.QueryRowContext(ctx, `
		SELECT balance_primary, balance_bonus, balance_pool
		FROM users
		WHERE id = $1
	`, userID).Scan(&b.Primary, &b.Bonus, &b.Pool)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Balances{}, domain.ErrUserNotFound
		}

		return domain.Balances{}, fmt.Errorf("get balances: %w", err)
	}

	return b, nil
}
