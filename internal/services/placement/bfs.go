package placement

import (
	"context"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
)

// ChildLoader returns the children of each given parent ordered by position.
type ChildLoader func(ctx context.Context, parentIDs []int64) (map[int64][]domain.Node, error)

// FindSlot walks the tree under origin breadth first, level by level and
// within a level in child order, and returns the first active node with a
// free child position. The result depends only on the tree shape.
func FindSlot(ctx context.Context, origin domain.Node, load ChildLoader) (domain.Node, int, error) {
	frontier := []domain.Node{origin}

	for len(frontier) > 0 {
		ids := make([]int64, 0, len(frontier))
		for _, n := range frontier {
			ids = append(ids, n.ID)
		}

		children, err := load(ctx, ids)
		if err != nil {
			return domain.Node{}, 0, fmt.Errorf("load children: %w", err)
		}

		next := make([]domain.Node, 0, len(frontier)*domain.MaxChildren)
		for _, n := range frontier {
			kids := children[n.ID]
			if n.Active && len(kids) < domain.MaxChildren {
				return n, len(kids), nil
			}

			next = append(next, kids...)
		}

		frontier = next
	}

	return domain.Node{}, 0, fmt.Errorf("no free slot under node %d: %w", origin.ID, domain.ErrNodeNotFound)
}
