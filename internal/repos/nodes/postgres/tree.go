package nodes

import (
	"context"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func (r *nodesRepo) CountChildren(ctx context.Context, q pgutils.Querier, parentID int64) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE parent_id = $1
	`, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}

	return n, nil
}

func (r *nodesRepo) Children(ctx context.Context, q pgutils.Querier, parentIDs []int64) (map[int64][]domain.Node, error) {
	out := make(map[int64][]domain.Node, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE parent_id = ANY($1)
		ORDER BY parent_id, position
	`, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("load children: %w", err)
	}

	children, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		out[*c.ParentID] = append(out[*c.ParentID], c)
	}

	return out, nil
}

func (r *nodesRepo) Ancestors(ctx context.Context, q pgutils.Querier, nodeID int64, limit int) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE chain (id, parent_id, hop) AS (
			SELECT id, parent_id, 0
			FROM nodes
			WHERE id = $1
			UNION ALL
			SELECT n.id, n.parent_id, c.hop + 1
			FROM nodes n
			JOIN chain c ON n.id = c.parent_id
			WHERE c.hop < $2
		)
		SELECT id FROM chain WHERE hop > 0 ORDER BY hop
	`, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("ancestors: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ancestors: %w", err)
	}

	return ids, nil
}
