package track

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/cellscape/tracklet/graph"
)

// ErrNoAnnotations means weight fitting found no ground-truth labels on the
// candidate graph.
var ErrNoAnnotations = errors.New("track: no ground-truth annotations on graph")

// FitOptions tunes the weight-fitting loop.
type FitOptions struct {
	MaxIterations  int           // default 100
	Rate           float64       // subgradient step size, default 0.1
	Regularization float64       // L2 shrink per step, default 0
	TimeLimit      time.Duration // per inner solve, default 1m
}

// FitResult is the outcome of weight fitting.
type FitResult struct {
	Weights    []float64
	Iterations int
	// Converged is true when the final solve reproduces the ground truth on
	// every annotated node and edge.
	Converged bool
}

// FitWeights fits the weights of the solver's attached costs to partial
// ground-truth annotations by iterative re-solving: solve with the current
// weights, compare the selection against the annotations, and step the
// weights along the feature difference until the solver reproduces the
// annotated labels. Annotations are the graph.AttrGroundTruth scalar on
// nodes and edges (1 positive, 0 negative, absent means unannotated; both
// positive and negative labels are needed for a useful fit). The solve path
// itself is unchanged; only the weight vector mutates between iterations.
func FitWeights(ctx context.Context, s *Solver, opts FitOptions) (*FitResult, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100
	}
	if opts.Rate <= 0 {
		opts.Rate = 0.1
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = time.Minute
	}

	gtSel, annotatedNodes, annotatedEdges := groundTruthSelection(s.g)
	if len(annotatedNodes) == 0 && len(annotatedEdges) == 0 {
		return nil, ErrNoAnnotations
	}
	gtFeatures := s.features(gtSel)

	w := s.Weights()
	result := &FitResult{}
	for iter := 0; iter < opts.MaxIterations; iter++ {
		result.Iterations = iter + 1

		sol, err := s.Solve(ctx, opts.TimeLimit)
		if err != nil {
			return nil, fmt.Errorf("track: fit iteration %d: %w", iter, err)
		}
		solSel := restrictSelection(sol.Selection(), annotatedNodes, annotatedEdges)

		if mismatches(gtSel, solSel, annotatedNodes, annotatedEdges) == 0 {
			result.Converged = true
			break
		}

		// Step against the hinge subgradient: lower the cost of the ground
		// truth relative to the current (wrong) optimum.
		solFeatures := s.features(solSel)
		for i := range w {
			w[i] -= opts.Rate * (gtFeatures[i] - solFeatures[i])
			w[i] -= opts.Rate * opts.Regularization * w[i]
		}
		if err := s.SetWeights(w); err != nil {
			return nil, err
		}
	}

	result.Weights = append([]float64(nil), w...)
	return result, nil
}

// groundTruthSelection collects the positively annotated elements plus the
// annotated universe.
func groundTruthSelection(g *graph.Graph) (sel Selection, nodes map[graph.NodeID]bool, edges map[graph.EdgeKey]bool) {
	sel = Selection{Nodes: make(map[graph.NodeID]bool), Edges: make(map[graph.EdgeKey]bool)}
	nodes = make(map[graph.NodeID]bool)
	edges = make(map[graph.EdgeKey]bool)
	for _, n := range g.Nodes() {
		if v, ok := n.Attr(graph.AttrGroundTruth); ok {
			nodes[n.ID] = true
			if v != 0 {
				sel.Nodes[n.ID] = true
			}
		}
	}
	for _, e := range g.Edges() {
		if v, ok := e.Attr(graph.AttrGroundTruth); ok {
			edges[e.Key()] = true
			if v != 0 {
				sel.Edges[e.Key()] = true
			}
		}
	}
	return sel, nodes, edges
}

func restrictSelection(sel Selection, nodes map[graph.NodeID]bool, edges map[graph.EdgeKey]bool) Selection {
	out := Selection{Nodes: make(map[graph.NodeID]bool), Edges: make(map[graph.EdgeKey]bool)}
	for id := range sel.Nodes {
		if nodes[id] && sel.Nodes[id] {
			out.Nodes[id] = true
		}
	}
	for key := range sel.Edges {
		if edges[key] && sel.Edges[key] {
			out.Edges[key] = true
		}
	}
	return out
}

func mismatches(gt, sol Selection, nodes map[graph.NodeID]bool, edges map[graph.EdgeKey]bool) int {
	count := 0
	for id := range nodes {
		if gt.Nodes[id] != sol.Nodes[id] {
			count++
		}
	}
	for key := range edges {
		if gt.Edges[key] != sol.Edges[key] {
			count++
		}
	}
	return count
}

// CostOf evaluates the total cost the solver's current weights assign to a
// selection. Exposed for diagnostics around weight fitting.
func (s *Solver) CostOf(sel Selection) float64 {
	return floats.Dot(s.Weights(), s.features(sel))
}
