package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/transactions"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{}

func New() *transactionsRepo {
	return &transactionsRepo{}
}

func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, t domain.Transaction) (int64, error) {
	var ref uuid.NullUUID
	if t.Reference != uuid.Nil {
		ref = uuid.NullUUID{UUID: t.Reference, Valid: true}
	}

	var id int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, amount, currency, kind, description, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, t.UserID, t.AmountMinor, string(t.Currency), string(t.Kind), t.Description, ref).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	return id, nil
}

func (r *transactionsRepo) SumByCurrency(ctx context.Context, q pgutils.Querier, userID uint64) (domain.Balances, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT currency, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1
		GROUP BY currency
	`, userID)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("sum by currency: %w", err)
	}
	defer rows.Close()

	var b domain.Balances
	for rows.Next() {
		var (
			cur string
			sum int64
		)

		err = rows.Scan(&cur, &sum)
		if err != nil {
			return domain.Balances{}, fmt.Errorf("scan sum: %w", err)
		}

		b.Set(domain.Currency(cur), sum)
	}

	err = rows.Err()
	if err != nil {
		return domain.Balances{}, fmt.Errorf("iterate sums: %w", err)
	}

	return b, nil
}

func (r *transactionsRepo) SumCredits(
	ctx context.Context,
	q pgutils.Querier,
	userID uint64,
	c domain.Currency,
	kinds []domain.Kind,
) (int64, error) {
	sum, err := r.sumKinds(ctx, q, userID, c, kinds, "", "amount > 0")
	if err != nil {
		return 0, fmt.Errorf("sum credits: %w", err)
	}

	return sum, nil
}

func (r *transactionsRepo) SumDebits(
	ctx context.Context,
	q pgutils.Querier,
	userID uint64,
	c domain.Currency,
	kinds []domain.Kind,
	descPrefix string,
) (int64, error) {
	sum, err := r.sumKinds(ctx, q, userID, c, kinds, descPrefix, "amount < 0")
	if err != nil {
		return 0, fmt.Errorf("sum debits: %w", err)
	}

	return -sum, nil
}

// sign is one of two fixed predicates, never user input.
func (r *transactionsRepo) sumKinds(
	ctx context.Context,
	q pgutils.Querier,
	userID uint64,
	c domain.Currency,
	kinds []domain.Kind,
	descPrefix string,
	sign string,
) (int64, error) {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}

	var sum int64

	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1
		  AND currency = $2
		  AND kind = ANY($3)
		  AND starts_with(description, $4)
		  AND `+sign, userID, string(c), names, descPrefix).Scan(&sum)
	if err != nil {
		return 0, err
	}

	return sum, nil
}

func (r *transactionsRepo) ListByUser(ctx context.Context, q pgutils.Querier, userID uint64, limit int) ([]domain.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, amount, currency, kind, description, reference, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t   domain.Transaction
			cur string
			knd string
			ref uuid.NullUUID
		)

		err = rows.Scan(&t.ID, &t.UserID, &t.AmountMinor, &cur, &knd, &t.Description, &ref, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		t.Currency = domain.Currency(cur)
		t.Kind = domain.Kind(knd)
		if ref.Valid {
			t.Reference = ref.UUID
		}

		out = append(out, t)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
