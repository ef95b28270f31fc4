package placement

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/repos/nodes"
	"github.com/fastprodman/matrixledger/internal/services/ledger"
)

type Engine struct {
	nodes nodes.Nodes
}

func New(n nodes.Nodes) *Engine {
	return &Engine{nodes: n}
}

// Place creates a node for owner and attaches it. Without a referrer, or
// when the referrer holds no active node of the tier, the node becomes a
// root. A lost race for the chosen slot returns domain.ErrPlacementConflict
// and the caller reruns the whole unit.
func (e *Engine) Place(ctx context.Context, tx *ledger.Tx, owner uint64, tier domain.Tier, referrer *uint64) (domain.Node, error) {
	if referrer == nil {
		return e.insertRoot(ctx, tx, owner, tier)
	}

	origin, err := e.nodes.OldestActive(ctx, tx.Tx, *referrer, tier)
	if err != nil {
		if errors.Is(err, domain.ErrNodeNotFound) {
			log.WithFields(log.Fields{
				"owner_id":    owner,
				"referrer_id": *referrer,
				"tier":        tier,
			}).Info("referrer has no active node of tier, placing as root")

			return e.insertRoot(ctx, tx, owner, tier)
		}

		return domain.Node{}, fmt.Errorf("find search origin: %w", err)
	}

	slot, _, err := FindSlot(ctx, origin, func(ctx context.Context, ids []int64) (map[int64][]domain.Node, error) {
		return e.nodes.Children(ctx, tx.Tx, ids)
	})
	if err != nil {
		return domain.Node{}, fmt.Errorf("find slot: %w", err)
	}

	// re-read under lock; a concurrent unit may have filled the slot
	_, err = e.nodes.Lock(ctx, tx.Tx, slot.ID)
	if err != nil {
		return domain.Node{}, fmt.Errorf("lock slot: %w", err)
	}

	taken, err := e.nodes.CountChildren(ctx, tx.Tx, slot.ID)
	if err != nil {
		return domain.Node{}, fmt.Errorf("recount slot: %w", err)
	}

	if taken >= domain.MaxChildren {
		return domain.Node{}, fmt.Errorf("slot %d filled concurrently: %w", slot.ID, domain.ErrPlacementConflict)
	}

	parentID := slot.ID

	n, err := e.nodes.Insert(ctx, tx.Tx, domain.Node{
		OwnerID:  owner,
		Tier:     tier,
		ParentID: &parentID,
		Position: taken,
	})
	if err != nil {
		return domain.Node{}, fmt.Errorf("attach node: %w", err)
	}

	return n, nil
}

func (e *Engine) insertRoot(ctx context.Context, tx *ledger.Tx, owner uint64, tier domain.Tier) (domain.Node, error) {
	n, err := e.nodes.Insert(ctx, tx.Tx, domain.Node{OwnerID: owner, Tier: tier})
	if err != nil {
		return domain.Node{}, fmt.Errorf("insert root: %w", err)
	}

	return n, nil
}
