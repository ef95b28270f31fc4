package transitions

import (
	"context"
	"database/sql"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

type Transitions interface {
	Insert(ctx context.Context, tx *sql.Tx, lt domain.LevelTransition) (int64, error)
	ListByNode(ctx context.Context, q pgutils.Querier, nodeID int64) ([]domain.LevelTransition, error)
	// LastLevels maps each node to the highest to_level recorded for it.
	// Nodes without transitions are absent.
	LastLevels(ctx context.Context, q pgutils.Querier, nodeIDs []int64) (map[int64]int, error)
}
