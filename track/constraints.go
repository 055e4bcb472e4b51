package track

import (
	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/ilp"
)

// Constraint emits linear constraints enforcing topological feasibility of
// the selected subgraph. Generators are independent: adding or omitting one
// never requires changes to another. Constraints only see the graph topology
// and the decision variables, never node or edge attributes.
type Constraint interface {
	Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error
}

// EdgeEndpoints forces both endpoints of every selected edge to be selected.
type EdgeEndpoints struct{}

func (EdgeEndpoints) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, e := range g.Edges() {
		ev := v.EdgeSelected[e.Key()]
		for _, end := range []graph.NodeID{e.From, e.To} {
			if err := p.AddConstraint(ilp.Constraint{
				Terms: []ilp.Term{{Var: ev, Coef: 1}, {Var: v.NodeSelected[end], Coef: -1}},
				Sense: ilp.LessEqual,
				RHS:   0,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// MaxParents bounds the number of selected incoming edges per node. N=1
// forbids track merges.
type MaxParents struct {
	N int
}

func (c MaxParents) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, n := range g.Nodes() {
		in := g.InEdges(n.ID)
		if len(in) <= c.N {
			continue
		}
		con := ilp.Constraint{Sense: ilp.LessEqual, RHS: float64(c.N)}
		for _, e := range in {
			con.Terms = append(con.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: 1})
		}
		if err := p.AddConstraint(con); err != nil {
			return err
		}
	}
	return nil
}

// MaxChildren bounds the number of selected outgoing edges per node. N=2
// allows at most one division.
type MaxChildren struct {
	N int
}

func (c MaxChildren) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, n := range g.Nodes() {
		out := g.OutEdges(n.ID)
		if len(out) <= c.N {
			continue
		}
		con := ilp.Constraint{Sense: ilp.LessEqual, RHS: float64(c.N)}
		for _, e := range out {
			con.Terms = append(con.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: 1})
		}
		if err := p.AddConstraint(con); err != nil {
			return err
		}
	}
	return nil
}

// FlowSymmetry forces the selected in-degree to equal the selected out-degree
// at every node in an interior frame (strictly between the first and last
// frame). A stricter prior than the degree bounds alone: use it when
// divisions and appearances are suppressed rather than merely discouraged.
type FlowSymmetry struct{}

func (FlowSymmetry) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	min, max, ok := g.FrameRange()
	if !ok {
		return nil
	}
	for _, n := range g.Nodes() {
		if n.Frame <= min || n.Frame >= max {
			continue
		}
		con := ilp.Constraint{Sense: ilp.Equal, RHS: 0}
		for _, e := range g.InEdges(n.ID) {
			con.Terms = append(con.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: 1})
		}
		for _, e := range g.OutEdges(n.ID) {
			con.Terms = append(con.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: -1})
		}
		if len(con.Terms) == 0 {
			continue
		}
		if err := p.AddConstraint(con); err != nil {
			return err
		}
	}
	return nil
}

// MinTrackLength forbids one-node tracks: a node whose appears indicator is
// set must have at least one selected outgoing edge. Only length 1 is
// supported.
type MinTrackLength struct{}

func (MinTrackLength) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, n := range g.Nodes() {
		con := ilp.Constraint{Sense: ilp.LessEqual, RHS: 0}
		con.Terms = append(con.Terms, ilp.Term{Var: v.NodeAppears[n.ID], Coef: 1})
		for _, e := range g.OutEdges(n.ID) {
			con.Terms = append(con.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: -1})
		}
		if err := p.AddConstraint(con); err != nil {
			return err
		}
	}
	return nil
}

// DefaultConstraints is the standard non-merging, division-allowing model:
// selected edges imply their endpoints, at most one parent, at most two
// children.
func DefaultConstraints() []Constraint {
	return []Constraint{
		EdgeEndpoints{},
		MaxParents{N: 1},
		MaxChildren{N: 2},
	}
}

// Compile-time interface checks.
var (
	_ Constraint = EdgeEndpoints{}
	_ Constraint = MaxParents{}
	_ Constraint = MaxChildren{}
	_ Constraint = FlowSymmetry{}
	_ Constraint = MinTrackLength{}
)
