package track

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cellscape/tracklet/graph"
)

// fitGraph builds a fully annotated candidate graph where node 1 should link
// to the near node 2, not to the far node 3.
func fitGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	addNode(t, g, 1, 0, 1, 0, 0)
	addNode(t, g, 2, 1, 1, 1, 0)
	addNode(t, g, 3, 1, 1, 5, 0)
	addEdge(t, g, 1, 2)
	addEdge(t, g, 1, 3)

	for id, gt := range map[graph.NodeID]float64{1: 1, 2: 1, 3: 0} {
		n, _ := g.Node(id)
		n.SetAttr(graph.AttrGroundTruth, gt)
	}
	e12, _ := g.Edge(1, 2)
	e12.SetAttr(graph.AttrGroundTruth, 1)
	e13, _ := g.Edge(1, 3)
	e13.SetAttr(graph.AttrGroundTruth, 0)
	return g
}

func fitSolver(g *graph.Graph) *Solver {
	s := NewSolver(g)
	s.AddCost(&NodeSelection{Attr: "score"})
	s.AddCost(&EdgeSelection{Attr: graph.AttrDistance})
	s.AddConstraint(EdgeEndpoints{})
	s.AddConstraint(MaxParents{N: 1})
	s.AddConstraint(MaxChildren{N: 1})
	return s
}

func TestFitWeightsConverges(t *testing.T) {
	g := fitGraph(t)
	s := fitSolver(g)

	res, err := FitWeights(context.Background(), s, FitOptions{
		MaxIterations: 500,
		Rate:          0.25,
		TimeLimit:     time.Minute,
	})
	if err != nil {
		t.Fatalf("FitWeights: %v", err)
	}
	if !res.Converged {
		t.Fatalf("did not converge in %d iterations; weights %v", res.Iterations, res.Weights)
	}

	// The fitted weights must reproduce the annotation through the ordinary
	// solve path.
	sol, err := s.Solve(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Solve with fitted weights: %v", err)
	}
	if _, ok := sol.Graph.Node(2); !ok {
		t.Error("fitted solution misses the true daughter")
	}
	if _, ok := sol.Graph.Node(3); ok {
		t.Error("fitted solution selects the false detection")
	}
	if _, ok := sol.Graph.Edge(1, 2); !ok {
		t.Error("fitted solution misses the true link")
	}
}

func TestFitWeightsRequiresAnnotations(t *testing.T) {
	g := graph.New()
	if err := g.AddNode(&graph.Node{ID: 1, Frame: 0, Pos: []float64{0, 0}}); err != nil {
		t.Fatal(err)
	}
	s := NewSolver(g)
	s.AddCost(&NodeSelection{Attr: "score"})

	_, err := FitWeights(context.Background(), s, FitOptions{})
	if !errors.Is(err, ErrNoAnnotations) {
		t.Errorf("expected ErrNoAnnotations, got %v", err)
	}
}

func TestCostOfMatchesObjective(t *testing.T) {
	g := fitGraph(t)
	s := fitSolver(g)
	if err := s.SetWeights([]float64{-1, 0, 1, -3}); err != nil {
		t.Fatal(err)
	}

	sol, err := s.Solve(context.Background(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	got := s.CostOf(sol.Selection())
	if diff := got - sol.Objective; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("CostOf = %v, engine objective = %v", got, sol.Objective)
	}
}
