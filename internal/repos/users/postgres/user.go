package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func (r *usersRepo) Create(ctx context.Context, tx *sql.Tx, userID uint64, referrerID *uint64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, referrer_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *usersRepo) Get(ctx context.Context, q pgutils.Querier, userID uint64) (domain.User, error) {
	var (
		u        domain.User
		referrer sql.NullInt64
	)

	err := q.QueryRowContext(ctx, `
		SELECT id, referrer_id, balance_primary, balance_bonus, balance_pool, active, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&u.ID, &referrer,
		&u.Balances.Primary, &u.Balances.Bonus, &u.Balances.Pool,
		&u.Active, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}

		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	if referrer.Valid {
		id := uint64(referrer.Int64)
		u.ReferrerID = &id
	}

	return u, nil
}

func (r *usersRepo) Exists(ctx context.Context, q pgutils.Querier, userID uint64) error {
	var exists bool

	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("exists query: %w", err)
	}

	if !exists {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *usersRepo) BindReferrer(ctx context.Context, tx *sql.Tx, userID, referrerID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET referrer_id = $2
		WHERE id = $1
		  AND referrer_id IS NULL
		  AND id <> $2
	`, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("bind referrer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *usersRepo) Deactivate(ctx context.Context, q pgutils.Querier, userID uint64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE users SET active = FALSE WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
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

func (r *usersRepo) ListReferred(ctx context.Context, q pgutils.Querier, referrerID uint64) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM users WHERE referrer_id = $1 ORDER BY id
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referred: %w", err)
	}

	return scanIDs(rows)
}

func (r *usersRepo) ListIDs(ctx context.Context, q pgutils.Querier, afterID uint64, limit int) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM users WHERE id > $1 ORDER BY id LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]uint64, error) {
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64

		err := rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}

		ids = append(ids, id)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}

	return ids, nil
}
