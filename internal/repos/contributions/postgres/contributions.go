package contributions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/contributions"
)

var _ contributions.Contributions = (*contributionsRepo)(nil)

type contributionsRepo struct{}

func New() *contributionsRepo {
	return &contributionsRepo{}
}

func (r *contributionsRepo) Insert(ctx context.Context, tx *sql.Tx, pc domain.PendingContribution) (int64, error) {
	var id int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO pending_contributions (node_id, source_node_id, amount, reference)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, pc.NodeID, pc.SourceNodeID, pc.AmountMinor, pc.Reference).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pending contribution: %w", err)
	}

	return id, nil
}

func (r *contributionsRepo) Claim(ctx context.Context, tx *sql.Tx, id int64) (domain.PendingContribution, error) {
	var pc domain.PendingContribution

	err := tx.QueryRowContext(ctx, `
		SELECT id, node_id, source_node_id, amount, reference
		FROM pending_contributions
		WHERE id = $1
		FOR UPDATE SKIP LOCKED
	`, id).Scan(&pc.ID, &pc.NodeID, &pc.SourceNodeID, &pc.AmountMinor, &pc.Reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PendingContribution{}, contributions.ErrNothingPending
		}

		return domain.PendingContribution{}, fmt.Errorf("claim pending contribution: %w", err)
	}

	return pc, nil
}

func (r *contributionsRepo) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM pending_contributions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending contribution: %w", err)
	}

	return nil
}

func (r *contributionsRepo) ListIDs(ctx context.Context, q pgutils.Querier, limit int) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM pending_contributions ORDER BY id LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending contributions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}

	return ids, nil
}
