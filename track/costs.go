package track

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/ilp"
)

var (
	// ErrMissingAttribute means an attribute cost referenced a scalar that a
	// node or edge does not carry. Attributes are fixed at construction
	// time, so this is a model defect, not a data condition.
	ErrMissingAttribute = errors.New("track: missing attribute")
	// ErrWeightCount means SetWeights received a vector of the wrong length.
	ErrWeightCount = errors.New("track: weight vector length mismatch")
)

// Cost contributes linear objective terms over the decision variables. All
// contributions are additive; the solver minimizes their sum. Weights exposes
// the tunable parameters as a flat vector so they can be overwritten
// externally (e.g. by weight fitting) before solving; Features returns, for a
// given selection, the per-parameter feature sums such that the cost's total
// contribution equals Weights()·Features().
type Cost interface {
	Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error
	Weights() []float64
	SetWeights(w []float64) error
	Features(g *graph.Graph, sel Selection) []float64
}

// Selection is a concrete choice of nodes and edges, used for feature
// extraction during weight fitting.
type Selection struct {
	Nodes map[graph.NodeID]bool
	Edges map[graph.EdgeKey]bool
}

// Appears reports whether the node starts a track under this selection:
// selected with no selected incoming edge.
func (s Selection) Appears(g *graph.Graph, id graph.NodeID) bool {
	if !s.Nodes[id] {
		return false
	}
	for _, e := range g.InEdges(id) {
		if s.Edges[e.Key()] {
			return false
		}
	}
	return true
}

// Splits reports whether the node divides under this selection: two selected
// outgoing edges.
func (s Selection) Splits(g *graph.Graph, id graph.NodeID) bool {
	count := 0
	for _, e := range g.OutEdges(id) {
		if s.Edges[e.Key()] {
			count++
		}
	}
	return count >= 2
}

// NodeSelection charges Weight*attr + Constant for every selected node. With
// a quality score attribute and a negative weight, confident detections pay
// for their own selection.
type NodeSelection struct {
	Weight   float64
	Constant float64
	Attr     string // node attribute name, e.g. "score"
}

func (c *NodeSelection) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, n := range g.Nodes() {
		val, ok := n.Attr(c.Attr)
		if !ok {
			return fmt.Errorf("%w: node %d has no %q", ErrMissingAttribute, n.ID, c.Attr)
		}
		if err := p.AddObjective(v.NodeSelected[n.ID], c.Weight*val+c.Constant); err != nil {
			return err
		}
	}
	return nil
}

func (c *NodeSelection) Weights() []float64 { return []float64{c.Weight, c.Constant} }

func (c *NodeSelection) SetWeights(w []float64) error {
	if len(w) != 2 {
		return fmt.Errorf("%w: node selection wants 2, got %d", ErrWeightCount, len(w))
	}
	c.Weight, c.Constant = w[0], w[1]
	return nil
}

func (c *NodeSelection) Features(g *graph.Graph, sel Selection) []float64 {
	var attrSum, count float64
	for id := range sel.Nodes {
		if !sel.Nodes[id] {
			continue
		}
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		val, _ := n.Attr(c.Attr)
		attrSum += val
		count++
	}
	return []float64{attrSum, count}
}

// EdgeSelection charges Weight*attr + Constant for every selected edge, using
// a scalar cached on the edge (e.g. drift-adjusted distance).
type EdgeSelection struct {
	Weight   float64
	Constant float64
	Attr     string // edge attribute name, e.g. graph.AttrDriftDistance
}

func (c *EdgeSelection) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, e := range g.Edges() {
		val, ok := e.Attr(c.Attr)
		if !ok {
			return fmt.Errorf("%w: edge %d->%d has no %q", ErrMissingAttribute, e.From, e.To, c.Attr)
		}
		if err := p.AddObjective(v.EdgeSelected[e.Key()], c.Weight*val+c.Constant); err != nil {
			return err
		}
	}
	return nil
}

func (c *EdgeSelection) Weights() []float64 { return []float64{c.Weight, c.Constant} }

func (c *EdgeSelection) SetWeights(w []float64) error {
	if len(w) != 2 {
		return fmt.Errorf("%w: edge selection wants 2, got %d", ErrWeightCount, len(w))
	}
	c.Weight, c.Constant = w[0], w[1]
	return nil
}

func (c *EdgeSelection) Features(g *graph.Graph, sel Selection) []float64 {
	var attrSum, count float64
	for key := range sel.Edges {
		if !sel.Edges[key] {
			continue
		}
		e, ok := g.Edge(key.From, key.To)
		if !ok {
			continue
		}
		val, _ := e.Attr(c.Attr)
		attrSum += val
		count++
	}
	return []float64{attrSum, count}
}

// EdgeDistance charges Weight*dist + Constant per selected edge, computing
// the Euclidean distance from the endpoint positions rather than a cached
// attribute. Distance is always positive, so a useful configuration pairs a
// positive weight with a negative constant; otherwise the empty selection
// wins.
type EdgeDistance struct {
	Weight   float64
	Constant float64
}

func (c *EdgeDistance) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, e := range g.Edges() {
		src, _ := g.Node(e.From)
		dst, _ := g.Node(e.To)
		d := floats.Distance(src.Pos, dst.Pos, 2)
		if err := p.AddObjective(v.EdgeSelected[e.Key()], c.Weight*d+c.Constant); err != nil {
			return err
		}
	}
	return nil
}

func (c *EdgeDistance) Weights() []float64 { return []float64{c.Weight, c.Constant} }

func (c *EdgeDistance) SetWeights(w []float64) error {
	if len(w) != 2 {
		return fmt.Errorf("%w: edge distance wants 2, got %d", ErrWeightCount, len(w))
	}
	c.Weight, c.Constant = w[0], w[1]
	return nil
}

func (c *EdgeDistance) Features(g *graph.Graph, sel Selection) []float64 {
	var distSum, count float64
	for key := range sel.Edges {
		if !sel.Edges[key] {
			continue
		}
		src, ok := g.Node(key.From)
		dst, ok2 := g.Node(key.To)
		if !ok || !ok2 {
			continue
		}
		distSum += floats.Distance(src.Pos, dst.Pos, 2)
		count++
	}
	return []float64{distSum, count}
}

// Appear charges a fixed constant for every track start. Nodes flagged
// IgnoreAppear are exempt, so tracks entering at the first frame or at the
// edge of the field of view are not penalized for the imaging boundary.
type Appear struct {
	Constant float64
}

func (c *Appear) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, n := range g.Nodes() {
		if n.IgnoreAppear {
			continue
		}
		if err := p.AddObjective(v.NodeAppears[n.ID], c.Constant); err != nil {
			return err
		}
	}
	return nil
}

func (c *Appear) Weights() []float64 { return []float64{c.Constant} }

func (c *Appear) SetWeights(w []float64) error {
	if len(w) != 1 {
		return fmt.Errorf("%w: appear wants 1, got %d", ErrWeightCount, len(w))
	}
	c.Constant = w[0]
	return nil
}

func (c *Appear) Features(g *graph.Graph, sel Selection) []float64 {
	var count float64
	for id := range sel.Nodes {
		n, ok := g.Node(id)
		if !ok || n.IgnoreAppear {
			continue
		}
		if sel.Appears(g, id) {
			count++
		}
	}
	return []float64{count}
}

// Split charges a fixed constant for every division, discouraging spurious
// splits while leaving true ones available when the rest of the track pays
// for them.
type Split struct {
	Constant float64
}

func (c *Split) Apply(g *graph.Graph, v *Variables, p *ilp.Problem) error {
	for _, n := range g.Nodes() {
		if err := p.AddObjective(v.NodeSplits[n.ID], c.Constant); err != nil {
			return err
		}
	}
	return nil
}

func (c *Split) Weights() []float64 { return []float64{c.Constant} }

func (c *Split) SetWeights(w []float64) error {
	if len(w) != 1 {
		return fmt.Errorf("%w: split wants 1, got %d", ErrWeightCount, len(w))
	}
	c.Constant = w[0]
	return nil
}

func (c *Split) Features(g *graph.Graph, sel Selection) []float64 {
	var count float64
	for id := range sel.Nodes {
		if !sel.Nodes[id] {
			continue
		}
		if sel.Splits(g, id) {
			count++
		}
	}
	return []float64{count}
}

// Compile-time interface checks.
var (
	_ Cost = (*NodeSelection)(nil)
	_ Cost = (*EdgeSelection)(nil)
	_ Cost = (*EdgeDistance)(nil)
	_ Cost = (*Appear)(nil)
	_ Cost = (*Split)(nil)
)
