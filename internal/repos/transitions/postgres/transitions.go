package transitions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/transitions"
)

var _ transitions.Transitions = (*transitionsRepo)(nil)

type transitionsRepo struct{}

func New() *transitionsRepo {
	return &transitionsRepo{}
}

func (r *transitionsRepo) Insert(ctx context.Context, tx *sql.Tx, lt domain.LevelTransition) (int64, error) {
	var id int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO level_transitions
			(node_id, from_level, to_level, pool_consumed, bonus_paid, bonus_user_id, payout)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, lt.NodeID, lt.FromLevel, lt.ToLevel, lt.PoolConsumed, lt.BonusPaid, lt.BonusUserID, lt.Payout).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert level transition: %w", err)
	}

	return id, nil
}

func (r *transitionsRepo) ListByNode(ctx context.Context, q pgutils.Querier, nodeID int64) ([]domain.LevelTransition, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, node_id, from_level, to_level, pool_consumed, bonus_paid, bonus_user_id, payout, created_at
		FROM level_transitions
		WHERE node_id = $1
		ORDER BY id
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list level transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.LevelTransition
	for rows.Next() {
		var (
			lt    domain.LevelTransition
			bonus sql.NullInt64
		)

		err = rows.Scan(&lt.ID, &lt.NodeID, &lt.FromLevel, &lt.ToLevel, &lt.PoolConsumed, &lt.BonusPaid, &bonus, &lt.Payout, &lt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan level transition: %w", err)
		}

		if bonus.Valid {
			uid := uint64(bonus.Int64)
			lt.BonusUserID = &uid
		}

		out = append(out, lt)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate level transitions: %w", err)
	}

	return out, nil
}

func (r *transitionsRepo) LastLevels(ctx context.Context, q pgutils.Querier, nodeIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT node_id, MAX(to_level)
		FROM level_transitions
		WHERE node_id = ANY($1)
		GROUP BY node_id
	`, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("last levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			level int
		)

		err = rows.Scan(&id, &level)
		if err != nil {
			return nil, fmt.Errorf("scan last level: %w", err)
		}

		out[id] = level
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate last levels: %w", err)
	}

	return out, nil
}
