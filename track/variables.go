// Package track turns a candidate graph into a binary linear program, solves
// it, and projects the selected subgraph into per-frame track identifiers.
package track

import (
	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/ilp"
)

// Variables holds the binary decision variables for one solve: a selection
// variable per node and per edge, plus an "appears" and a "splits" indicator
// per node. They exist only between assembly and extraction.
type Variables struct {
	NodeSelected map[graph.NodeID]ilp.VarID
	EdgeSelected map[graph.EdgeKey]ilp.VarID
	NodeAppears  map[graph.NodeID]ilp.VarID
	NodeSplits   map[graph.NodeID]ilp.VarID
}

// newVariables creates all decision variables and ties the appears/splits
// indicators to the selection variables with linear linkage constraints, so
// the engine can never set them inconsistently with the selection.
func newVariables(g *graph.Graph, p *ilp.Problem) (*Variables, error) {
	v := &Variables{
		NodeSelected: make(map[graph.NodeID]ilp.VarID, g.NumNodes()),
		EdgeSelected: make(map[graph.EdgeKey]ilp.VarID, g.NumEdges()),
		NodeAppears:  make(map[graph.NodeID]ilp.VarID, g.NumNodes()),
		NodeSplits:   make(map[graph.NodeID]ilp.VarID, g.NumNodes()),
	}
	for _, n := range g.Nodes() {
		v.NodeSelected[n.ID] = p.NewVariable()
		v.NodeAppears[n.ID] = p.NewVariable()
		v.NodeSplits[n.ID] = p.NewVariable()
	}
	for _, e := range g.Edges() {
		v.EdgeSelected[e.Key()] = p.NewVariable()
	}
	for _, n := range g.Nodes() {
		if err := v.linkAppears(g, p, n.ID); err != nil {
			return nil, err
		}
		if err := v.linkSplits(g, p, n.ID); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// linkAppears forces appears(v) == selected(v) AND no selected incoming edge:
//
//	appears + Σin >= selected
//	appears <= selected
//	nIn*appears + Σin <= nIn
func (v *Variables) linkAppears(g *graph.Graph, p *ilp.Problem, id graph.NodeID) error {
	sel := v.NodeSelected[id]
	app := v.NodeAppears[id]
	in := g.InEdges(id)

	lower := ilp.Constraint{Sense: ilp.GreaterEqual, RHS: 0}
	lower.Terms = append(lower.Terms, ilp.Term{Var: app, Coef: 1}, ilp.Term{Var: sel, Coef: -1})
	for _, e := range in {
		lower.Terms = append(lower.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: 1})
	}
	if err := p.AddConstraint(lower); err != nil {
		return err
	}

	if err := p.AddConstraint(ilp.Constraint{
		Terms: []ilp.Term{{Var: app, Coef: 1}, {Var: sel, Coef: -1}},
		Sense: ilp.LessEqual,
		RHS:   0,
	}); err != nil {
		return err
	}

	if len(in) > 0 {
		upper := ilp.Constraint{Sense: ilp.LessEqual, RHS: float64(len(in))}
		upper.Terms = append(upper.Terms, ilp.Term{Var: app, Coef: float64(len(in))})
		for _, e := range in {
			upper.Terms = append(upper.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: 1})
		}
		if err := p.AddConstraint(upper); err != nil {
			return err
		}
	}
	return nil
}

// linkSplits forces splits(v) == 1 exactly when two outgoing edges are
// selected:
//
//	splits >= Σout - 1
//	2*splits <= Σout
//
// The lower bound also makes more than two selected children infeasible,
// which matches the max-children=2 division model.
func (v *Variables) linkSplits(g *graph.Graph, p *ilp.Problem, id graph.NodeID) error {
	spl := v.NodeSplits[id]
	out := g.OutEdges(id)

	lower := ilp.Constraint{Sense: ilp.GreaterEqual, RHS: -1}
	lower.Terms = append(lower.Terms, ilp.Term{Var: spl, Coef: 1})
	for _, e := range out {
		lower.Terms = append(lower.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: -1})
	}
	if err := p.AddConstraint(lower); err != nil {
		return err
	}

	upper := ilp.Constraint{Sense: ilp.LessEqual, RHS: 0}
	upper.Terms = append(upper.Terms, ilp.Term{Var: spl, Coef: 2})
	for _, e := range out {
		upper.Terms = append(upper.Terms, ilp.Term{Var: v.EdgeSelected[e.Key()], Coef: -1})
	}
	return p.AddConstraint(upper)
}
