package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
)

func (r *usersRepo) IncreaseBalance(ctx context.Context, tx *sql.Tx, userID uint64, c domain.Currency, amount int64) error {
	col, err := balanceColumn(c)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE users
		SET %[1]s = %[1]s + $2
		WHERE id = $1
	`, col), userID, amount)
	if err != nil {
		return fmt.Errorf("increase balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}
