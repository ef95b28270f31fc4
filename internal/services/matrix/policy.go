package matrix

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/repos/nodes"
)

// PayoutPolicy decides which share of a withdrawal is paid out, in basis
// points.
type PayoutPolicy interface {
	PayoutBps(ctx context.Context, userID uint64) (int64, error)
}

// DefaultPayoutBps is the payout share per tier.
var DefaultPayoutBps = map[domain.Tier]int64{
	domain.TierBasic:   7_000,
	domain.TierPro:     7_500,
	domain.TierPremium: 8_000,
	domain.TierElite:   8_500,
}

// TierPolicy pays according to the best tier among the user's active nodes.
// Users without nodes get the basic rate.
type TierPolicy struct {
	db    *sql.DB
	nodes nodes.Nodes
	table map[domain.Tier]int64
}

func NewTierPolicy(db *sql.DB, n nodes.Nodes, table map[domain.Tier]int64) *TierPolicy {
	if table == nil {
		table = DefaultPayoutBps
	}

	return &TierPolicy{db: db, nodes: n, table: table}
}

func (p *TierPolicy) PayoutBps(ctx context.Context, userID uint64) (int64, error) {
	owned, err := p.nodes.ListByOwners(ctx, p.db, []uint64{userID})
	if err != nil {
		return 0, fmt.Errorf("list nodes: %w", err)
	}

	return p.bpsFor(bestTier(owned)), nil
}

func (p *TierPolicy) bpsFor(t domain.Tier) int64 {
	bps, ok := p.table[t]
	if !ok {
		return p.table[domain.TierBasic]
	}

	return bps
}

func bestTier(owned []domain.Node) domain.Tier {
	best := domain.TierBasic
	for _, n := range owned {
		if n.Active && n.Tier.Rank() > best.Rank() {
			best = n.Tier
		}
	}

	return best
}
