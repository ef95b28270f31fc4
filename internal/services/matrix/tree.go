package matrix

import (
	"context"
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/services/placement"
)

// TreeNode is one node of a depth-limited subtree snapshot.
type TreeNode struct {
	domain.Node
	Children []*TreeNode
}

// GetTree returns every active node of the user with its subtree, depth
// levels deep. Depth is clamped to the configured maximum.
func (s *Service) GetTree(ctx context.Context, userID uint64, depth int) ([]*TreeNode, error) {
	err := s.users.Exists(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	owned, err := s.nodes.ListByOwners(ctx, s.db, []uint64{userID})
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	roots := make([]domain.Node, 0, len(owned))
	for _, n := range owned {
		if n.Active {
			roots = append(roots, n)
		}
	}

	depth = min(max(depth, 0), s.cfg.MaxTreeDepth)

	trees, err := buildTrees(ctx, roots, depth, func(ctx context.Context, ids []int64) (map[int64][]domain.Node, error) {
		return s.nodes.Children(ctx, s.db, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	return trees, nil
}

// buildTrees loads one tree level per call to load.
func buildTrees(ctx context.Context, roots []domain.Node, depth int, load placement.ChildLoader) ([]*TreeNode, error) {
	out := make([]*TreeNode, 0, len(roots))
	frontier := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		t := &TreeNode{Node: r}
		out = append(out, t)
		frontier = append(frontier, t)
	}

	for level := 0; level < depth && len(frontier) > 0; level++ {
		ids := make([]int64, 0, len(frontier))
		for _, t := range frontier {
			ids = append(ids, t.ID)
		}

		children, err := load(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load level %d: %w", level+1, err)
		}

		next := make([]*TreeNode, 0, len(frontier)*domain.MaxChildren)
		for _, t := range frontier {
			for _, c := range children[t.ID] {
				ct := &TreeNode{Node: c}
				t.Children = append(t.Children, ct)
				next = append(next, ct)
			}
		}

		frontier = next
	}

	return out, nil
}
