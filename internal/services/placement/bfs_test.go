package placement

import (
	"context"
	"errors"
	"testing"

	"github.com/fastprodman/matrixledger/internal/domain"
)

// memTree is an in-memory forest keyed by parent id.
type memTree struct {
	nodes    map[int64]domain.Node
	children map[int64][]int64
	nextID   int64
	loads    int
}

func newMemTree() *memTree {
	return &memTree{nodes: map[int64]domain.Node{}, children: map[int64][]int64{}}
}

func (m *memTree) add(parent int64) domain.Node {
	m.nextID++
	n := domain.Node{ID: m.nextID, Active: true}
	if parent != 0 {
		p := parent
		n.ParentID = &p
		n.Position = len(m.children[parent])
		m.children[parent] = append(m.children[parent], n.ID)
	}
	m.nodes[n.ID] = n

	return n
}

func (m *memTree) load(_ context.Context, ids []int64) (map[int64][]domain.Node, error) {
	m.loads++

	out := make(map[int64][]domain.Node, len(ids))
	for _, id := range ids {
		for _, c := range m.children[id] {
			out[id] = append(out[id], m.nodes[c])
		}
	}

	return out, nil
}

func TestFindSlot_EmptyOriginIsSlot(t *testing.T) {
	t.Parallel()

	m := newMemTree()
	root := m.add(0)

	slot, pos, err := FindSlot(context.Background(), root, m.load)
	if err != nil {
		t.Fatalf("find slot: %v", err)
	}
	if slot.ID != root.ID || pos != 0 {
		t.Fatalf("want root/0, got %d/%d", slot.ID, pos)
	}
}

func TestFindSlot_SpillsBreadthFirst(t *testing.T) {
	t.Parallel()

	m := newMemTree()
	root := m.add(0)
	a := m.add(root.ID)
	b := m.add(root.ID)
	c := m.add(root.ID)

	// root is full, so the 4th placement goes under a
	slot, pos, err := FindSlot(context.Background(), root, m.load)
	if err != nil {
		t.Fatalf("find slot: %v", err)
	}
	if slot.ID != a.ID || pos != 0 {
		t.Fatalf("want a/0, got %d/%d", slot.ID, pos)
	}

	// fill a, then b must be next even though a's children are younger
	m.add(a.ID)
	m.add(a.ID)
	m.add(a.ID)

	slot, _, err = FindSlot(context.Background(), root, m.load)
	if err != nil {
		t.Fatalf("find slot: %v", err)
	}
	if slot.ID != b.ID {
		t.Fatalf("want b (%d), got %d", b.ID, slot.ID)
	}

	m.add(b.ID)
	m.add(b.ID)
	m.add(b.ID)
	m.add(c.ID)

	slot, pos, err = FindSlot(context.Background(), root, m.load)
	if err != nil {
		t.Fatalf("find slot: %v", err)
	}
	if slot.ID != c.ID || pos != 1 {
		t.Fatalf("want c/1, got %d/%d", slot.ID, pos)
	}
}

func TestFindSlot_NeverExceedsThreeChildren(t *testing.T) {
	t.Parallel()

	m := newMemTree()
	root := m.add(0)

	for range 200 {
		slot, pos, err := FindSlot(context.Background(), root, m.load)
		if err != nil {
			t.Fatalf("find slot: %v", err)
		}
		if pos != len(m.children[slot.ID]) {
			t.Fatalf("position %d does not match child count %d", pos, len(m.children[slot.ID]))
		}

		m.add(slot.ID)
	}

	for id, kids := range m.children {
		if len(kids) > domain.MaxChildren {
			t.Fatalf("node %d has %d children", id, len(kids))
		}
	}

	// 1 + 3 + 9 + 27 + 81 = 121 nodes fill four full levels; the rest are on level 5
	for id := int64(1); id <= 40; id++ {
		if len(m.children[id]) != domain.MaxChildren {
			t.Fatalf("shallow node %d not full before deeper placement", id)
		}
	}
}

func TestFindSlot_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() (*memTree, domain.Node) {
		m := newMemTree()
		root := m.add(0)
		for range 17 {
			slot, _, err := FindSlot(context.Background(), root, m.load)
			if err != nil {
				t.Fatalf("find slot: %v", err)
			}
			m.add(slot.ID)
		}

		return m, root
	}

	m1, r1 := build()
	m2, r2 := build()

	s1, p1, err1 := FindSlot(context.Background(), r1, m1.load)
	s2, p2, err2 := FindSlot(context.Background(), r2, m2.load)
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v %v", err1, err2)
	}
	if s1.ID != s2.ID || p1 != p2 {
		t.Fatalf("same shape gave different slots: %d/%d vs %d/%d", s1.ID, p1, s2.ID, p2)
	}
}

func TestFindSlot_SkipsInactive(t *testing.T) {
	t.Parallel()

	m := newMemTree()
	root := m.add(0)
	a := m.add(root.ID)
	m.add(root.ID)
	m.add(root.ID)

	inactive := m.nodes[a.ID]
	inactive.Active = false
	m.nodes[a.ID] = inactive

	slot, _, err := FindSlot(context.Background(), root, m.load)
	if err != nil {
		t.Fatalf("find slot: %v", err)
	}
	if slot.ID == a.ID {
		t.Fatal("inactive node chosen as slot")
	}
	if slot.ID != a.ID+1 {
		t.Fatalf("want next sibling %d, got %d", a.ID+1, slot.ID)
	}
}

func TestFindSlot_LoaderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, _, err := FindSlot(context.Background(), domain.Node{ID: 1, Active: true},
		func(context.Context, []int64) (map[int64][]domain.Node, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want loader error, got %v", err)
	}
}
