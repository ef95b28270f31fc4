package nodes

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/repos/nodes"
)

var _ nodes.Nodes = (*nodesRepo)(nil)

type nodesRepo struct{}

func New() *nodesRepo {
	return &nodesRepo{}
}

const nodeColumns = `id, owner_id, tier, parent_id, position, level, pool, closed, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(s rowScanner) (domain.Node, error) {
	var (
		n        domain.Node
		tier     string
		parentID sql.NullInt64
		position sql.NullInt16
	)

	err := s.Scan(&n.ID, &n.OwnerID, &tier, &parentID, &position, &n.Level, &n.PoolMinor, &n.Closed, &n.Active, &n.CreatedAt)
	if err != nil {
		return domain.Node{}, err
	}

	n.Tier = domain.Tier(tier)
	if parentID.Valid {
		p := parentID.Int64
		n.ParentID = &p
		n.Position = int(position.Int16)
	}

	return n, nil
}

func scanNodes(rows *sql.Rows) ([]domain.Node, error) {
	defer rows.Close()

	var out []domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}

		out = append(out, n)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	return out, nil
}
