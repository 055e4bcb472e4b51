package graph

import (
	"errors"
	"testing"
)

func mustNode(t *testing.T, g *Graph, id NodeID, frame int, pos ...float64) {
	t.Helper()
	if err := g.AddNode(&Node{ID: id, Frame: frame, Pos: pos}); err != nil {
		t.Fatalf("AddNode(%d): %v", id, err)
	}
}

func TestAddNodeDuplicate(t *testing.T) {
	g := New()
	mustNode(t, g, 1, 0, 0, 0)

	// Same id in another frame must still fail: ids are global.
	err := g.AddNode(&Node{ID: 1, Frame: 3, Pos: []float64{5, 5}})
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
	if g.NumNodes() != 1 {
		t.Errorf("expected 1 node after failed insert, got %d", g.NumNodes())
	}
}

func TestAddNodeValidation(t *testing.T) {
	g := New()
	if err := g.AddNode(&Node{ID: 1, Frame: -1, Pos: []float64{0, 0}}); !errors.Is(err, ErrBadNode) {
		t.Errorf("negative frame: expected ErrBadNode, got %v", err)
	}
	if err := g.AddNode(&Node{ID: 2, Frame: 0}); !errors.Is(err, ErrBadNode) {
		t.Errorf("missing position: expected ErrBadNode, got %v", err)
	}
}

func TestAddEdgeValidation(t *testing.T) {
	g := New()
	mustNode(t, g, 1, 0, 0, 0)
	mustNode(t, g, 2, 1, 1, 0)
	mustNode(t, g, 3, 2, 2, 0)

	if _, err := g.AddEdge(1, 99); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("unknown target: expected ErrUnknownNode, got %v", err)
	}
	if _, err := g.AddEdge(99, 1); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("unknown source: expected ErrUnknownNode, got %v", err)
	}
	if _, err := g.AddEdge(1, 1); !errors.Is(err, ErrBadEdge) {
		t.Errorf("self-loop: expected ErrBadEdge, got %v", err)
	}
	if _, err := g.AddEdge(1, 3); !errors.Is(err, ErrBadEdge) {
		t.Errorf("frame gap 2: expected ErrBadEdge, got %v", err)
	}
	if _, err := g.AddEdge(2, 1); !errors.Is(err, ErrBadEdge) {
		t.Errorf("backward edge: expected ErrBadEdge, got %v", err)
	}

	if _, err := g.AddEdge(1, 2); err != nil {
		t.Fatalf("valid edge: %v", err)
	}
	if _, err := g.AddEdge(1, 2); !errors.Is(err, ErrDuplicateEdge) {
		t.Errorf("duplicate: expected ErrDuplicateEdge, got %v", err)
	}
}

func TestIterationOrderDeterministic(t *testing.T) {
	g := New()
	ids := []NodeID{5, 3, 9, 1, 7}
	for i, id := range ids {
		mustNode(t, g, id, i%2, float64(i), 0)
	}
	for i, n := range g.Nodes() {
		if n.ID != ids[i] {
			t.Fatalf("node order changed: position %d got %d, want %d", i, n.ID, ids[i])
		}
	}
}

func TestFramesAndRange(t *testing.T) {
	g := New()
	mustNode(t, g, 1, 4, 0, 0)
	mustNode(t, g, 2, 0, 0, 0)
	mustNode(t, g, 3, 2, 0, 0)

	frames := g.Frames()
	want := []int{0, 2, 4}
	if len(frames) != len(want) {
		t.Fatalf("Frames() = %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("Frames() = %v, want %v", frames, want)
		}
	}

	min, max, ok := g.FrameRange()
	if !ok || min != 0 || max != 4 {
		t.Errorf("FrameRange() = (%d, %d, %v), want (0, 4, true)", min, max, ok)
	}

	if _, _, ok := New().FrameRange(); ok {
		t.Error("empty graph FrameRange() reported ok")
	}
}

func TestSubgraph(t *testing.T) {
	g := New()
	mustNode(t, g, 1, 0, 0, 0)
	mustNode(t, g, 2, 1, 1, 0)
	mustNode(t, g, 3, 1, 5, 0)
	e, _ := g.AddEdge(1, 2)
	e.SetAttr(AttrDistance, 1.0)
	if _, err := g.AddEdge(1, 3); err != nil {
		t.Fatal(err)
	}

	sub, err := g.Subgraph(
		map[NodeID]bool{1: true, 2: true},
		map[EdgeKey]bool{{From: 1, To: 2}: true},
	)
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}
	if sub.NumNodes() != 2 || sub.NumEdges() != 1 {
		t.Fatalf("subgraph has %d nodes, %d edges; want 2, 1", sub.NumNodes(), sub.NumEdges())
	}
	se, ok := sub.Edge(1, 2)
	if !ok {
		t.Fatal("edge 1->2 missing from subgraph")
	}
	if d, _ := se.Attr(AttrDistance); d != 1.0 {
		t.Errorf("edge attr not copied: got %v", d)
	}

	// Mutating the copy must not touch the original.
	sn, _ := sub.Node(1)
	sn.Pos[0] = 99
	on, _ := g.Node(1)
	if on.Pos[0] == 99 {
		t.Error("subgraph shares position storage with original")
	}

	// An edge whose endpoint is excluded is a model error.
	if _, err := g.Subgraph(map[NodeID]bool{1: true}, map[EdgeKey]bool{{From: 1, To: 2}: true}); err == nil {
		t.Error("expected error for edge with excluded endpoint")
	}
}
