package nodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func (r *nodesRepo) Get(ctx context.Context, q pgutils.Querier, nodeID int64) (domain.Node, error) {
	n, err := scanNode(q.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE id = $1
	`, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Node{}, domain.ErrNodeNotFound
		}

		return domain.Node{}, fmt.Errorf("get node: %w", err)
	}

	return n, nil
}

// Lock reads the node under a row lock held until tx ends.
func (r *nodesRepo) Lock(ctx context.Context, tx *sql.Tx, nodeID int64) (domain.Node, error) {
	n, err := scanNode(tx.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE id = $1
		FOR UPDATE
	`, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Node{}, domain.ErrNodeNotFound
		}

		return domain.Node{}, fmt.Errorf("lock node: %w", err)
	}

	return n, nil
}

func (r *nodesRepo) OldestActive(ctx context.Context, q pgutils.Querier, ownerID uint64, tier domain.Tier) (domain.Node, error) {
	n, err := scanNode(q.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE owner_id = $1
		  AND tier = $2
		  AND active
		ORDER BY id
		LIMIT 1
	`, ownerID, string(tier)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Node{}, domain.ErrNodeNotFound
		}

		return domain.Node{}, fmt.Errorf("oldest active node: %w", err)
	}

	return n, nil
}

func (r *nodesRepo) ListByOwners(ctx context.Context, q pgutils.Querier, ownerIDs []uint64) ([]domain.Node, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		ids = append(ids, int64(id))
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE owner_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list nodes by owners: %w", err)
	}

	return scanNodes(rows)
}
