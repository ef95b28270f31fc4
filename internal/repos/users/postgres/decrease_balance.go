package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
)

// DecreaseBalance is the only check-and-set on balances: the predicate and
// the decrement run as one statement.
func (r *usersRepo) DecreaseBalance(ctx context.Context, tx *sql.Tx, userID uint64, c domain.Currency, amount int64) error {
	col, err := balanceColumn(c)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE users
		SET %[1]s = %[1]s - $2
		WHERE id = $1
		  AND %[1]s >= $2
	`, col), userID, amount)
	if err != nil {
		return fmt.Errorf("decrease balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		err = r.Exists(ctx, tx, userID)
		if err != nil {
			return err
		}

		return domain.ErrInsufficientFunds
	}

	return nil
}

// OverwriteBalance replaces the cached value. Reconciliation uses it to
// realign the cache with the ledger sum.
func (r *usersRepo) OverwriteBalance(ctx context.Context, tx *sql.Tx, userID uint64, c domain.Currency, amount int64) error {
	col, err := balanceColumn(c)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE users SET %s = $2 WHERE id = $1
	`, col), userID, amount)
	if err != nil {
		return fmt.Errorf("overwrite balance: %w", err)
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
