package graph

import (
	"gonum.org/v1/gonum/stat"
)

// EstimateDrift estimates a constant scene drift as the per-dimension mean of
// the shortest-candidate-edge displacement out of every node. Only nodes with
// at least one outgoing candidate edge contribute, so AddEdges must run
// first. Returns a zero vector when the graph has no edges.
func EstimateDrift(g *Graph) []float64 {
	var dims int
	for _, n := range g.Nodes() {
		dims = len(n.Pos)
		break
	}
	drift := make([]float64, dims)
	if dims == 0 {
		return drift
	}

	samples := make([][]float64, dims)
	for _, n := range g.Nodes() {
		best := bestOutEdge(g, n.ID)
		if best == nil {
			continue
		}
		dst, _ := g.Node(best.To)
		for d := 0; d < dims; d++ {
			samples[d] = append(samples[d], dst.Pos[d]-n.Pos[d])
		}
	}
	if len(samples[0]) == 0 {
		return drift
	}
	for d := 0; d < dims; d++ {
		drift[d] = stat.Mean(samples[d], nil)
	}
	return drift
}

// bestOutEdge returns the outgoing edge with the smallest cached distance.
func bestOutEdge(g *Graph, id NodeID) *Edge {
	var (
		best     *Edge
		bestDist float64
	)
	for _, e := range g.OutEdges(id) {
		d, ok := e.Attr(AttrDistance)
		if !ok {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}
