package track

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/ilp"
)

func addNode(t *testing.T, g *graph.Graph, id graph.NodeID, frame int, score float64, pos ...float64) {
	t.Helper()
	if err := g.AddNode(&graph.Node{ID: id, Frame: frame, Pos: pos, Score: score}); err != nil {
		t.Fatalf("AddNode(%d): %v", id, err)
	}
}

func addEdge(t *testing.T, g *graph.Graph, from, to graph.NodeID) *graph.Edge {
	t.Helper()
	e, err := g.AddEdge(from, to)
	if err != nil {
		t.Fatalf("AddEdge(%d, %d): %v", from, to, err)
	}
	src, _ := g.Node(from)
	dst, _ := g.Node(to)
	var sum float64
	for i := range src.Pos {
		d := src.Pos[i] - dst.Pos[i]
		sum += d * d
	}
	e.SetAttr(graph.AttrDistance, math.Sqrt(sum))
	return e
}

func solveGraph(t *testing.T, s *Solver) *Solution {
	t.Helper()
	sol, err := s.Solve(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.TimeLimited {
		t.Fatal("unexpected time-limited solution in test")
	}
	return sol
}

// With only non-negative costs, selecting nothing is optimal.
func TestAllPositiveCostsYieldEmptySolution(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	addNode(t, g, 2, 0, 1, 10, 0)
	addNode(t, g, 3, 1, 1, 1, 0)
	addNode(t, g, 4, 1, 1, 11, 0)
	addEdge(t, g, 1, 3)
	addEdge(t, g, 2, 4)

	s := NewSolver(g)
	s.AddCost(&EdgeSelection{Weight: 1, Constant: 0, Attr: graph.AttrDistance})
	for _, c := range DefaultConstraints() {
		s.AddConstraint(c)
	}

	sol := solveGraph(t, s)
	if sol.Graph.NumNodes() != 0 || sol.Graph.NumEdges() != 0 {
		t.Errorf("got %d nodes, %d edges; want empty solution",
			sol.Graph.NumNodes(), sol.Graph.NumEdges())
	}
	if sol.Objective != 0 {
		t.Errorf("objective = %v, want 0", sol.Objective)
	}
}

// Three detections drifting right one unit per frame form a single track.
func TestEndToEndSingleTrack(t *testing.T) {
	dets := [][]graph.Detection{
		{{Label: 1, Pos: []float64{0, 0}}},
		{{Label: 2, Pos: []float64{1, 0}}},
		{{Label: 3, Pos: []float64{2, 0}}},
	}
	g, err := graph.BuildNodes(dets, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes() {
		n.Score = 1.0
	}
	if err := graph.AddEdges(g, 5); err != nil {
		t.Fatal(err)
	}

	s := NewSolver(g)
	s.AddCost(&NodeSelection{Weight: -1, Attr: "score"})
	s.AddCost(&EdgeSelection{Weight: 1, Constant: -10, Attr: graph.AttrDistance})
	for _, c := range DefaultConstraints() {
		s.AddConstraint(c)
	}

	sol := solveGraph(t, s)
	if sol.Graph.NumNodes() != 3 || sol.Graph.NumEdges() != 2 {
		t.Fatalf("got %d nodes, %d edges; want 3 nodes, 2 edges",
			sol.Graph.NumNodes(), sol.Graph.NumEdges())
	}
	// 3 nodes at -1 each plus 2 edges at (1 - 10) each.
	if math.Abs(sol.Objective-(-21)) > 1e-9 {
		t.Errorf("objective = %v, want -21", sol.Objective)
	}

	ids, n := AssignTrackIDs(sol.Graph)
	if n != 1 {
		t.Fatalf("got %d tracks, want 1", n)
	}
	for _, node := range sol.Graph.Nodes() {
		if ids[node.ID] != 1 {
			t.Errorf("node %d has track %d, want 1", node.ID, ids[node.ID])
		}
	}
}

// A cheap split cost lets the parent keep both daughters.
func TestDivisionScenario(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	addNode(t, g, 2, 1, 1, 1, 1)
	addNode(t, g, 3, 1, 1, -1, 1)
	addEdge(t, g, 1, 2)
	addEdge(t, g, 1, 3)

	s := NewSolver(g)
	s.AddCost(&NodeSelection{Weight: -1, Attr: "score"})
	s.AddCost(&EdgeSelection{Weight: 0, Constant: -5, Attr: graph.AttrDistance})
	s.AddCost(&Split{Constant: 1})
	for _, c := range DefaultConstraints() {
		s.AddConstraint(c)
	}

	sol := solveGraph(t, s)
	if sol.Graph.NumEdges() != 2 {
		t.Fatalf("got %d selected edges, want both division edges", sol.Graph.NumEdges())
	}
	// Nodes -3, edges -10, split +1.
	if math.Abs(sol.Objective-(-12)) > 1e-9 {
		t.Errorf("objective = %v, want -12", sol.Objective)
	}

	ids, n := AssignTrackIDs(sol.Graph)
	if n != 3 {
		t.Fatalf("got %d tracks, want 3 (parent plus two daughters)", n)
	}
	if ids[2] == ids[3] {
		t.Error("daughters share a track id")
	}
	if ids[1] == ids[2] || ids[1] == ids[3] {
		t.Error("a daughter shares the parent's track id")
	}
}

// MaxChildren(1) suppresses the division even when splitting would pay.
func TestMaxChildrenOneForbidsDivision(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	addNode(t, g, 2, 1, 1, 1, 1)
	addNode(t, g, 3, 1, 1, -1, 1)
	addEdge(t, g, 1, 2)
	addEdge(t, g, 1, 3)

	s := NewSolver(g)
	s.AddCost(&EdgeSelection{Weight: 0, Constant: -5, Attr: graph.AttrDistance})
	s.AddConstraint(EdgeEndpoints{})
	s.AddConstraint(MaxParents{N: 1})
	s.AddConstraint(MaxChildren{N: 1})

	sol := solveGraph(t, s)
	if sol.Graph.NumEdges() != 1 {
		t.Errorf("got %d selected edges, want exactly 1", sol.Graph.NumEdges())
	}
}

// An isolated detection with no temporal neighbors must stay unselected when
// one-node tracks are forbidden.
func TestMinTrackLengthExcludesIsolatedNode(t *testing.T) {
	build := func() *graph.Graph {
		g := graph.New()
		addNode(t, g, 1, 0, 1, 0, 0)
		addNode(t, g, 2, 1, 1, 1, 0)
		// Frame 3 is isolated: no nodes in frames 2 or 4.
		addNode(t, g, 3, 3, 1, 50, 50)
		addEdge(t, g, 1, 2)
		return g
	}

	solveWith := func(g *graph.Graph, minLen bool) *Solution {
		s := NewSolver(g)
		s.AddCost(&NodeSelection{Weight: -1, Attr: "score"})
		s.AddCost(&EdgeSelection{Weight: 0, Constant: -1, Attr: graph.AttrDistance})
		for _, c := range DefaultConstraints() {
			s.AddConstraint(c)
		}
		if minLen {
			s.AddConstraint(MinTrackLength{})
		}
		return solveGraph(t, s)
	}

	without := solveWith(build(), false)
	if _, ok := without.Graph.Node(3); !ok {
		t.Error("without the constraint, the isolated node should be worth selecting")
	}

	with := solveWith(build(), true)
	if _, ok := with.Graph.Node(3); ok {
		t.Error("isolated node selected despite minimum track length")
	}
	// The real track must survive the constraint.
	if _, ok := with.Graph.Node(1); !ok {
		t.Error("two-node track lost under minimum track length")
	}
	if with.Graph.NumEdges() != 1 {
		t.Errorf("got %d edges, want 1", with.Graph.NumEdges())
	}
}

// Flow symmetry at interior frames forbids a track that ends mid-movie.
func TestFlowSymmetry(t *testing.T) {
	build := func() *graph.Graph {
		g := graph.New()
		addNode(t, g, 1, 0, 1, 0, 0)
		addNode(t, g, 2, 1, 1, 1, 0)
		// Far-away frame 2 node makes frame 1 interior but offers node 2 no
		// continuation.
		addNode(t, g, 3, 2, 1, 100, 100)
		addEdge(t, g, 1, 2)
		return g
	}

	s := NewSolver(build())
	s.AddCost(&EdgeSelection{Weight: 0, Constant: -5, Attr: graph.AttrDistance})
	for _, c := range DefaultConstraints() {
		s.AddConstraint(c)
	}
	sol := solveGraph(t, s)
	if sol.Graph.NumEdges() != 1 {
		t.Fatalf("without flow symmetry the edge should be selected, got %d edges", sol.Graph.NumEdges())
	}

	s = NewSolver(build())
	s.AddCost(&EdgeSelection{Weight: 0, Constant: -5, Attr: graph.AttrDistance})
	for _, c := range DefaultConstraints() {
		s.AddConstraint(c)
	}
	s.AddConstraint(FlowSymmetry{})
	sol = solveGraph(t, s)
	if sol.Graph.NumEdges() != 0 {
		t.Errorf("flow symmetry should forbid the dead-end link, got %d edges", sol.Graph.NumEdges())
	}
}

// Appear costs charge track starts, except nodes flagged as boundary starts.
func TestAppearCostAndIgnoreFlag(t *testing.T) {
	g := graph.New()
	if err := g.AddNode(&graph.Node{ID: 1, Frame: 0, Pos: []float64{0, 0}, Score: 1, IgnoreAppear: true}); err != nil {
		t.Fatal(err)
	}
	addNode(t, g, 2, 1, 1, 1, 0)
	// A second track starting mid-movie.
	addNode(t, g, 3, 1, 1, 50, 0)
	addNode(t, g, 4, 2, 1, 51, 0)
	addEdge(t, g, 1, 2)
	addEdge(t, g, 3, 4)

	s := NewSolver(g)
	s.AddCost(&EdgeSelection{Weight: 0, Constant: -3, Attr: graph.AttrDistance})
	s.AddCost(&Appear{Constant: 2})
	for _, c := range DefaultConstraints() {
		s.AddConstraint(c)
	}

	sol := solveGraph(t, s)
	if sol.Graph.NumEdges() != 2 {
		t.Fatalf("got %d edges, want 2", sol.Graph.NumEdges())
	}
	// Track 1 starts at an ignored node (free); track 3 pays the appear
	// constant: -3 + (-3 + 2) = -4.
	if math.Abs(sol.Objective-(-4)) > 1e-9 {
		t.Errorf("objective = %v, want -4", sol.Objective)
	}
}

// Structural invariants of any solution, checked by brute-force scan.
func TestSolutionInvariants(t *testing.T) {
	dets := [][]graph.Detection{
		{{Label: 1, Pos: []float64{0, 0}}, {Label: 2, Pos: []float64{3, 0}}},
		{{Label: 3, Pos: []float64{1, 0}}, {Label: 4, Pos: []float64{4, 0}}},
		{{Label: 5, Pos: []float64{2, 0}}, {Label: 6, Pos: []float64{5, 0}}},
	}
	g, err := graph.BuildNodes(dets, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes() {
		n.Score = 1.0
	}
	if err := graph.AddEdges(g, 6); err != nil {
		t.Fatal(err)
	}

	const maxParents, maxChildren = 1, 2
	s := NewSolver(g)
	s.AddCost(&NodeSelection{Weight: -1, Attr: "score"})
	s.AddCost(&EdgeSelection{Weight: 1, Constant: -4, Attr: graph.AttrDistance})
	s.AddConstraint(EdgeEndpoints{})
	s.AddConstraint(MaxParents{N: maxParents})
	s.AddConstraint(MaxChildren{N: maxChildren})

	sol := solveGraph(t, s)

	// No invented elements.
	for _, n := range sol.Graph.Nodes() {
		if _, ok := g.Node(n.ID); !ok {
			t.Errorf("solution node %d not in candidate graph", n.ID)
		}
	}
	for _, e := range sol.Graph.Edges() {
		if _, ok := g.Edge(e.From, e.To); !ok {
			t.Errorf("solution edge %d->%d not in candidate graph", e.From, e.To)
		}
		// Both endpoints selected.
		if _, ok := sol.Graph.Node(e.From); !ok {
			t.Errorf("edge %d->%d selected without its source", e.From, e.To)
		}
		if _, ok := sol.Graph.Node(e.To); !ok {
			t.Errorf("edge %d->%d selected without its target", e.From, e.To)
		}
	}
	for _, n := range sol.Graph.Nodes() {
		if d := len(sol.Graph.InEdges(n.ID)); d > maxParents {
			t.Errorf("node %d has %d selected parents, max %d", n.ID, d, maxParents)
		}
		if d := len(sol.Graph.OutEdges(n.ID)); d > maxChildren {
			t.Errorf("node %d has %d selected children, max %d", n.ID, d, maxChildren)
		}
	}
}

func TestMissingAttributeIsFatal(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	s := NewSolver(g)
	s.AddCost(&NodeSelection{Weight: 1, Attr: "nonexistent"})
	_, err := s.Solve(context.Background(), time.Minute)
	if !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("expected ErrMissingAttribute, got %v", err)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	s := NewSolver(g)
	s.AddCost(&NodeSelection{Weight: -1, Constant: 0.5, Attr: "score"})
	s.AddCost(&Appear{Constant: 2})
	s.AddCost(&Split{Constant: 3})

	w := s.Weights()
	want := []float64{-1, 0.5, 2, 3}
	if len(w) != len(want) {
		t.Fatalf("Weights() = %v, want %v", w, want)
	}
	for i := range want {
		if w[i] != want[i] {
			t.Fatalf("Weights() = %v, want %v", w, want)
		}
	}

	if err := s.SetWeights([]float64{-2, 1, 4, 6}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	w = s.Weights()
	if w[0] != -2 || w[1] != 1 || w[2] != 4 || w[3] != 6 {
		t.Errorf("after SetWeights, Weights() = %v", w)
	}

	if err := s.SetWeights([]float64{1, 2}); !errors.Is(err, ErrWeightCount) {
		t.Errorf("expected ErrWeightCount for short vector, got %v", err)
	}
	if err := s.SetWeights([]float64{1, 2, 3, 4, 5}); !errors.Is(err, ErrWeightCount) {
		t.Errorf("expected ErrWeightCount for long vector, got %v", err)
	}
}

// stubEngine returns a fixed result, for exercising the degradation path.
type stubEngine struct {
	res *ilp.Result
	err error
}

func (e stubEngine) Solve(_ context.Context, p *ilp.Problem, _ time.Duration) (*ilp.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	res := *e.res
	if res.Values == nil {
		res.Values = make([]bool, p.NumVariables())
	}
	return &res, nil
}

func TestTimeLimitedSurfaced(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	s := NewSolver(g)
	s.SetEngine(stubEngine{res: &ilp.Result{Status: ilp.StatusTimeLimit}})

	sol, err := s.Solve(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !sol.TimeLimited {
		t.Error("TimeLimited flag not surfaced")
	}
}

func TestNoIncumbentIsFatal(t *testing.T) {
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	s := NewSolver(g)
	s.SetEngine(stubEngine{err: ilp.ErrNoIncumbent})

	_, err := s.Solve(context.Background(), time.Millisecond)
	if !errors.Is(err, ilp.ErrNoIncumbent) {
		t.Errorf("expected ErrNoIncumbent to propagate, got %v", err)
	}
}
