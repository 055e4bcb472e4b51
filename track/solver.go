package track

import (
	"context"
	"fmt"
	"time"

	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/ilp"
)

// Solution is the subgraph whose selection variables were 1 in the engine's
// assignment. TimeLimited distinguishes a proven optimum from the best
// incumbent at the wall-clock cutoff; it is surfaced, never hidden.
type Solution struct {
	Graph       *graph.Graph
	Objective   float64
	TimeLimited bool
}

// Solver assembles the binary program for a candidate graph from attached
// costs and constraints and runs the engine. The graph is read-only from
// here on; construction, attachment, and solving are strictly sequential
// phases.
type Solver struct {
	g           *graph.Graph
	costs       []Cost
	constraints []Constraint
	engine      ilp.Engine
}

// NewSolver returns a solver for the graph using the default branch-and-bound
// engine.
func NewSolver(g *graph.Graph) *Solver {
	return &Solver{g: g, engine: ilp.BranchBound{}}
}

// SetEngine swaps the solving engine, e.g. for an external ILP backend.
func (s *Solver) SetEngine(e ilp.Engine) { s.engine = e }

// AddCost attaches a cost term. Any number of terms may be attached; their
// contributions are summed.
func (s *Solver) AddCost(c Cost) { s.costs = append(s.costs, c) }

// AddConstraint attaches a constraint generator.
func (s *Solver) AddConstraint(c Constraint) { s.constraints = append(s.constraints, c) }

// Graph returns the candidate graph the solver was built over.
func (s *Solver) Graph() *graph.Graph { return s.g }

// Weights returns the concatenated weight vectors of all attached costs, in
// attachment order.
func (s *Solver) Weights() []float64 {
	var w []float64
	for _, c := range s.costs {
		w = append(w, c.Weights()...)
	}
	return w
}

// SetWeights overwrites the weights of all attached costs from one flat
// vector, in attachment order.
func (s *Solver) SetWeights(w []float64) error {
	off := 0
	for _, c := range s.costs {
		n := len(c.Weights())
		if off+n > len(w) {
			return fmt.Errorf("%w: have %d values for costs wanting more", ErrWeightCount, len(w))
		}
		if err := c.SetWeights(w[off : off+n]); err != nil {
			return err
		}
		off += n
	}
	if off != len(w) {
		return fmt.Errorf("%w: %d values, costs consumed %d", ErrWeightCount, len(w), off)
	}
	return nil
}

// features returns the concatenated feature vector of a selection, aligned
// with Weights().
func (s *Solver) features(sel Selection) []float64 {
	var f []float64
	for _, c := range s.costs {
		f = append(f, c.Features(s.g, sel)...)
	}
	return f
}

// Solve assembles and solves the program, blocking for at most timeLimit,
// and extracts the selected subgraph. On timeout the best feasible incumbent
// is returned with TimeLimited set. A timeout with no incumbent, or a proven
// infeasibility, is a fatal model error: the constraint set always admits
// the empty selection.
func (s *Solver) Solve(ctx context.Context, timeLimit time.Duration) (*Solution, error) {
	p := ilp.NewProblem()
	vars, err := newVariables(s.g, p)
	if err != nil {
		return nil, fmt.Errorf("track: creating variables: %w", err)
	}
	for _, c := range s.costs {
		if err := c.Apply(s.g, vars, p); err != nil {
			return nil, fmt.Errorf("track: applying cost: %w", err)
		}
	}
	for _, c := range s.constraints {
		if err := c.Apply(s.g, vars, p); err != nil {
			return nil, fmt.Errorf("track: applying constraint: %w", err)
		}
	}

	res, err := s.engine.Solve(ctx, p, timeLimit)
	if err != nil {
		return nil, fmt.Errorf("track: solve: %w", err)
	}

	keepNodes := make(map[graph.NodeID]bool)
	for id, v := range vars.NodeSelected {
		if res.Value(v) {
			keepNodes[id] = true
		}
	}
	keepEdges := make(map[graph.EdgeKey]bool)
	for key, v := range vars.EdgeSelected {
		if res.Value(v) {
			keepEdges[key] = true
		}
	}
	sub, err := s.g.Subgraph(keepNodes, keepEdges)
	if err != nil {
		return nil, fmt.Errorf("track: extracting solution: %w", err)
	}
	return &Solution{
		Graph:       sub,
		Objective:   res.Objective,
		TimeLimited: res.Status == ilp.StatusTimeLimit,
	}, nil
}

// Selection returns the solution's node and edge sets in Selection form.
func (sol *Solution) Selection() Selection {
	sel := Selection{
		Nodes: make(map[graph.NodeID]bool, sol.Graph.NumNodes()),
		Edges: make(map[graph.EdgeKey]bool, sol.Graph.NumEdges()),
	}
	for _, n := range sol.Graph.Nodes() {
		sel.Nodes[n.ID] = true
	}
	for _, e := range sol.Graph.Edges() {
		sel.Edges[e.Key()] = true
	}
	return sel
}
