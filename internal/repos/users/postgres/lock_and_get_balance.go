package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
)

func (r *usersRepo) LockAndGetBalances(ctx context.Context, tx *sql.Tx, userID uint64) (domain.Balances, error) {
	var b domain.Balances

	err := tx.QueryRowContext(ctx, `
		SELECT balance_primary, balance_bonus, balance_pool
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&b.Primary, &b.Bonus, &b.Pool)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Balances{}, domain.ErrUserNotFound
		}

		return domain.Balances{}, fmt.Errorf("lock/get balances: %w", err)
	}

	return b, nil
}
