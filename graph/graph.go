// Package graph builds and holds the candidate graph for tracking-by-detection:
// one node per detection, one directed edge per hypothesized link between
// temporally adjacent frames. The graph is constructed once, then handed
// read-only to the solver.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Construction errors. These indicate malformed input and abort graph
// construction immediately; there is no recovery path.
var (
	ErrDuplicateNode = errors.New("graph: duplicate node id")
	ErrUnknownNode   = errors.New("graph: unknown node id")
	ErrDuplicateEdge = errors.New("graph: duplicate edge")
	ErrBadEdge       = errors.New("graph: invalid edge")
	ErrBadNode       = errors.New("graph: invalid node")
)

// Well-known attribute names cached on candidate edges.
const (
	AttrDistance      = "distance"
	AttrDriftDistance = "drift_distance"
	AttrGroundTruth   = "gt"
)

// NodeID identifies a detection. IDs are unique across the whole graph, not
// per frame, and are stable across the candidate and solution stages.
type NodeID int64

// Node is one detection in one frame.
type Node struct {
	ID    NodeID
	Frame int
	Pos   []float64 // 2D or 3D world coordinates
	Score float64   // detection quality, sampled at build time

	// IgnoreAppear marks a node whose track start should not be charged an
	// appear cost, e.g. detections in the first frame or near the border of
	// the field of view. The predicate is caller-supplied.
	IgnoreAppear bool

	// Attrs holds additional named scalars referenced by attribute costs.
	Attrs map[string]float64
}

// Attr returns the named scalar attribute. "score" resolves to the Score
// field; other names resolve through the extension map.
func (n *Node) Attr(name string) (float64, bool) {
	if name == "score" {
		return n.Score, true
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// SetAttr stores a named scalar on the node.
func (n *Node) SetAttr(name string, v float64) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]float64)
	}
	n.Attrs[name] = v
}

// clone returns a deep copy of the node.
func (n *Node) clone() *Node {
	cp := *n
	cp.Pos = append([]float64(nil), n.Pos...)
	if n.Attrs != nil {
		cp.Attrs = make(map[string]float64, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	return &cp
}

// EdgeKey identifies a candidate edge by its endpoints.
type EdgeKey struct {
	From, To NodeID
}

// Edge is a hypothesized link from a detection in frame t to a detection in
// frame t+1.
type Edge struct {
	From, To NodeID
	Attrs    map[string]float64
}

// Key returns the edge's identifying key.
func (e *Edge) Key() EdgeKey { return EdgeKey{From: e.From, To: e.To} }

// Attr returns the named scalar attribute cached on the edge.
func (e *Edge) Attr(name string) (float64, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// SetAttr stores a named scalar on the edge.
func (e *Edge) SetAttr(name string, v float64) {
	if e.Attrs == nil {
		e.Attrs = make(map[string]float64)
	}
	e.Attrs[name] = v
}

func (e *Edge) clone() *Edge {
	cp := *e
	if e.Attrs != nil {
		cp.Attrs = make(map[string]float64, len(e.Attrs))
		for k, v := range e.Attrs {
			cp.Attrs[k] = v
		}
	}
	return &cp
}

// Graph is a directed acyclic candidate graph. Edges only connect nodes
// exactly one frame apart. Iteration order over nodes and edges is
// deterministic (insertion order) so repeated solves are reproducible.
type Graph struct {
	nodes     map[NodeID]*Node
	nodeOrder []NodeID
	edges     map[EdgeKey]*Edge
	edgeOrder []EdgeKey
	out       map[NodeID][]*Edge
	in        map[NodeID][]*Edge
	frames    map[int][]NodeID
}

// New returns an empty candidate graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[NodeID]*Node),
		edges:  make(map[EdgeKey]*Edge),
		out:    make(map[NodeID][]*Edge),
		in:     make(map[NodeID][]*Edge),
		frames: make(map[int][]NodeID),
	}
}

// AddNode inserts a node. A duplicate id or a negative frame is a fatal
// construction error.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrBadNode)
	}
	if n.Frame < 0 {
		return fmt.Errorf("%w: node %d has negative frame %d", ErrBadNode, n.ID, n.Frame)
	}
	if len(n.Pos) == 0 {
		return fmt.Errorf("%w: node %d has no position", ErrBadNode, n.ID)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, n.ID)
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	g.frames[n.Frame] = append(g.frames[n.Frame], n.ID)
	return nil
}

// AddEdge inserts a candidate edge from one node to another. Both endpoints
// must exist, the target must be exactly one frame after the source, and
// self-loops and duplicates are rejected.
func (g *Graph) AddEdge(from, to NodeID) (*Edge, error) {
	src, ok := g.nodes[from]
	if !ok {
		return nil, fmt.Errorf("%w: edge source %d", ErrUnknownNode, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return nil, fmt.Errorf("%w: edge target %d", ErrUnknownNode, to)
	}
	if from == to {
		return nil, fmt.Errorf("%w: self-loop on node %d", ErrBadEdge, from)
	}
	if dst.Frame != src.Frame+1 {
		return nil, fmt.Errorf("%w: %d (frame %d) -> %d (frame %d), frames must be adjacent",
			ErrBadEdge, from, src.Frame, to, dst.Frame)
	}
	key := EdgeKey{From: from, To: to}
	if _, exists := g.edges[key]; exists {
		return nil, fmt.Errorf("%w: %d -> %d", ErrDuplicateEdge, from, to)
	}
	e := &Edge{From: from, To: to}
	g.edges[key] = e
	g.edgeOrder = append(g.edgeOrder, key)
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	return e, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge between the given endpoints.
func (g *Graph) Edge(from, to NodeID) (*Edge, bool) {
	e, ok := g.edges[EdgeKey{From: from, To: to}]
	return e, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodeOrder))
	for i, id := range g.nodeOrder {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edgeOrder))
	for i, key := range g.edgeOrder {
		out[i] = g.edges[key]
	}
	return out
}

// OutEdges returns the candidate edges leaving the node.
func (g *Graph) OutEdges(id NodeID) []*Edge { return g.out[id] }

// InEdges returns the candidate edges entering the node.
func (g *Graph) InEdges(id NodeID) []*Edge { return g.in[id] }

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Frames returns the sorted list of frame indices that contain nodes.
func (g *Graph) Frames() []int {
	out := make([]int, 0, len(g.frames))
	for t := range g.frames {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// FrameNodes returns the node ids in the given frame, in insertion order.
func (g *Graph) FrameNodes(t int) []NodeID { return g.frames[t] }

// FrameRange returns the lowest and highest frame containing nodes. ok is
// false for an empty graph.
func (g *Graph) FrameRange() (min, max int, ok bool) {
	frames := g.Frames()
	if len(frames) == 0 {
		return 0, 0, false
	}
	return frames[0], frames[len(frames)-1], true
}

// Subgraph returns a new graph containing deep copies of the nodes whose ids
// are in keepNodes and the edges whose keys are in keepEdges. Edges with an
// endpoint outside keepNodes are rejected.
func (g *Graph) Subgraph(keepNodes map[NodeID]bool, keepEdges map[EdgeKey]bool) (*Graph, error) {
	sub := New()
	for _, id := range g.nodeOrder {
		if keepNodes[id] {
			if err := sub.AddNode(g.nodes[id].clone()); err != nil {
				return nil, err
			}
		}
	}
	for _, key := range g.edgeOrder {
		if !keepEdges[key] {
			continue
		}
		e, err := sub.AddEdge(key.From, key.To)
		if err != nil {
			return nil, err
		}
		for k, v := range g.edges[key].Attrs {
			e.SetAttr(k, v)
		}
	}
	return sub, nil
}
