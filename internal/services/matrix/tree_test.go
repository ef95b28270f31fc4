package matrix

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/fastprodman/matrixledger/internal/domain"
)

func TestBuildTrees(t *testing.T) {
	t.Parallel()

	// 1 -> 2,3 ; 2 -> 4 ; 4 -> 5
	edges := map[int64][]int64{1: {2, 3}, 2: {4}, 4: {5}}

	calls := 0
	load := func(_ context.Context, ids []int64) (map[int64][]domain.Node, error) {
		calls++

		out := make(map[int64][]domain.Node)
		for _, id := range ids {
			for pos, c := range edges[id] {
				parent := id
				out[id] = append(out[id], domain.Node{ID: c, ParentID: &parent, Position: pos, Active: true})
			}
		}

		return out, nil
	}

	tests := []struct {
		name      string
		depth     int
		wantCalls int
		wantIDs   []int64
	}{
		{name: "roots_only", depth: 0, wantCalls: 0, wantIDs: []int64{1}},
		{name: "one_level", depth: 1, wantCalls: 1, wantIDs: []int64{1, 2, 3}},
		{name: "whole_tree", depth: 3, wantCalls: 3, wantIDs: []int64{1, 2, 3, 4, 5}},
		{name: "stops_at_leaves", depth: 8, wantCalls: 4, wantIDs: []int64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0

			trees, err := buildTrees(t.Context(), []domain.Node{{ID: 1, Active: true}}, tt.depth, load)
			if err != nil {
				t.Fatalf("build: %v", err)
			}

			var got []int64
			var walk func(n *TreeNode)
			walk = func(n *TreeNode) {
				got = append(got, n.ID)
				for _, c := range n.Children {
					walk(c)
				}
			}
			for _, tr := range trees {
				walk(tr)
			}

			if calls != tt.wantCalls {
				t.Fatalf("loader calls: want %d, got %d", tt.wantCalls, calls)
			}
			slices.Sort(got)
			if !slices.Equal(got, tt.wantIDs) {
				t.Fatalf("ids: want %v, got %v", tt.wantIDs, got)
			}
		})
	}
}

func TestBuildTrees_LoaderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, err := buildTrees(t.Context(), []domain.Node{{ID: 1}}, 2, func(context.Context, []int64) (map[int64][]domain.Node, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped loader error, got %v", err)
	}
}
