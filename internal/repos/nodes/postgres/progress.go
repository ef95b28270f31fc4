package nodes

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func (r *nodesRepo) SaveProgress(ctx context.Context, tx *sql.Tx, n domain.Node) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE nodes
		SET level = $2, pool = $3, closed = $4
		WHERE id = $1
	`, n.ID, n.Level, n.PoolMinor, n.Closed)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrNodeNotFound
	}

	return nil
}

func (r *nodesRepo) Deactivate(ctx context.Context, q pgutils.Querier, nodeID int64) error {
	res, err := q.ExecContext(ctx, `UPDATE nodes SET active = FALSE WHERE id = $1`, nodeID)
	if err != nil {
		return fmt.Errorf("deactivate node: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrNodeNotFound
	}

	return nil
}
