package nodes

import (
	"context"
	"database/sql"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

type Nodes interface {
	// Insert stores n. A taken (parent, position) slot is reported as
	// domain.ErrPlacementConflict.
	Insert(ctx context.Context, tx *sql.Tx, n domain.Node) (domain.Node, error)
	Get(ctx context.Context, q pgutils.Querier, nodeID int64) (domain.Node, error)
	Lock(ctx context.Context, tx *sql.Tx, nodeID int64) (domain.Node, error)
	SaveProgress(ctx context.Context, tx *sql.Tx, n domain.Node) error
	Deactivate(ctx context.Context, q pgutils.Querier, nodeID int64) error

	CountChildren(ctx context.Context, q pgutils.Querier, parentID int64) (int, error)
	// Children returns the children of every parent, each list ordered by position.
	Children(ctx context.Context, q pgutils.Querier, parentIDs []int64) (map[int64][]domain.Node, error)
	// Ancestors walks parent pointers from nodeID, nearest first, at most limit hops.
	Ancestors(ctx context.Context, q pgutils.Querier, nodeID int64, limit int) ([]int64, error)

	OldestActive(ctx context.Context, q pgutils.Querier, ownerID uint64, tier domain.Tier) (domain.Node, error)
	ListByOwners(ctx context.Context, q pgutils.Querier, ownerIDs []uint64) ([]domain.Node, error)
}
