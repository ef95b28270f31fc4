package contributions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
)

// ErrNothingPending is returned by Claim when the row is gone or locked by
// another worker.
var ErrNothingPending = errors.New("nothing pending")

// Contributions is the outbox of cascade hops still to be applied.
type Contributions interface {
	Insert(ctx context.Context, tx *sql.Tx, pc domain.PendingContribution) (int64, error)
	// Claim locks one row, skipping rows other workers hold.
	Claim(ctx context.Context, tx *sql.Tx, id int64) (domain.PendingContribution, error)
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
	ListIDs(ctx context.Context, q pgutils.Querier, limit int) ([]int64, error)
}
