package nodes

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

func (r *nodesRepo) Insert(ctx context.Context, tx *sql.Tx, n domain.Node) (domain.Node, error) {
	var position sql.NullInt16
	if n.ParentID != nil {
		position = sql.NullInt16{Int16: int16(n.Position), Valid: true}
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO nodes (owner_id, tier, parent_id, position)
		VALUES ($1, $2, $3, $4)
		RETURNING `+nodeColumns,
		n.OwnerID, string(n.Tier), n.ParentID, position)

	created, err := scanNode(row)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return domain.Node{}, fmt.Errorf("slot %v/%d taken: %w", n.ParentID, n.Position, domain.ErrPlacementConflict)
		}

		return domain.Node{}, fmt.Errorf("insert node: %w", err)
	}

	return created, nil
}
