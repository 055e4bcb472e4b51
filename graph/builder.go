package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/cellscape/tracklet/spatial"
)

// Detection is one object instance reported by an upstream detector for one
// frame. The Label becomes the node id and must be unique across all frames.
type Detection struct {
	Label        int64
	Pos          []float64
	IgnoreAppear bool
}

// ScoreMap looks up a detection-quality score for a position in a frame. The
// map may be at a lower resolution than the detection coordinates; the
// implementation is responsible for scaling.
type ScoreMap interface {
	ScoreAt(frame int, pos []float64) float64
}

// GridScoreMap is a dense 2D score map, possibly downsampled relative to the
// detection coordinate system. Scale is the downsampling factor: a detection
// position is divided by Scale before indexing into the grid.
type GridScoreMap struct {
	Frames [][][]float64 // [frame][row][col]
	Scale  float64
}

// ScoreAt samples the grid at the scaled position, clamping to the grid
// bounds. Positions outside the mapped frames score zero.
func (m *GridScoreMap) ScoreAt(frame int, pos []float64) float64 {
	if m == nil || frame < 0 || frame >= len(m.Frames) || len(pos) < 2 {
		return 0
	}
	grid := m.Frames[frame]
	if len(grid) == 0 || len(grid[0]) == 0 {
		return 0
	}
	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	r := int(pos[0] / scale)
	c := int(pos[1] / scale)
	if r < 0 {
		r = 0
	} else if r >= len(grid) {
		r = len(grid) - 1
	}
	if c < 0 {
		c = 0
	} else if c >= len(grid[r]) {
		c = len(grid[r]) - 1
	}
	return grid[r][c]
}

// BuildNodes creates a candidate graph with one node per detection and no
// edges. The outer slice index is the frame number. When scores is non-nil,
// each node's Score is sampled from it at the node's position. A duplicate
// label anywhere in the input is a fatal construction error.
func BuildNodes(frames [][]Detection, scores ScoreMap) (*Graph, error) {
	g := New()
	for t, dets := range frames {
		for _, det := range dets {
			n := &Node{
				ID:           NodeID(det.Label),
				Frame:        t,
				Pos:          append([]float64(nil), det.Pos...),
				IgnoreAppear: det.IgnoreAppear,
			}
			if scores != nil {
				n.Score = scores.ScoreAt(t, n.Pos)
			}
			if err := g.AddNode(n); err != nil {
				return nil, fmt.Errorf("frame %d: %w", t, err)
			}
		}
	}
	return g, nil
}

// AddEdges connects every node to all nodes in the next frame within
// maxEdgeDistance (Euclidean), using a k-d tree per frame pair so the cost is
// proportional to the number of close pairs. Frame pairs with no detections
// in the next frame are skipped: that is a track boundary, not a fault. The
// Euclidean distance is cached on each new edge under AttrDistance.
func AddEdges(g *Graph, maxEdgeDistance float64) error {
	if maxEdgeDistance <= 0 {
		return fmt.Errorf("graph: max edge distance must be positive, got %v", maxEdgeDistance)
	}
	frames := g.Frames()
	var (
		prevIndex *spatial.Index
		prevFrame = -1
	)
	for _, t := range frames {
		ids := g.FrameNodes(t)
		var cur *spatial.Index
		if prevIndex != nil && prevFrame == t {
			cur = prevIndex
		} else {
			var err error
			cur, err = frameIndex(g, ids)
			if err != nil {
				return fmt.Errorf("frame %d: %w", t, err)
			}
		}
		nextIDs := g.FrameNodes(t + 1)
		if len(nextIDs) == 0 {
			prevIndex, prevFrame = nil, -1
			continue
		}
		next, err := frameIndex(g, nextIDs)
		if err != nil {
			return fmt.Errorf("frame %d: %w", t+1, err)
		}
		matches, err := cur.QueryWithin(next, maxEdgeDistance)
		if err != nil {
			return fmt.Errorf("frames %d->%d: %w", t, t+1, err)
		}
		for i, nbrs := range matches {
			src, _ := g.Node(ids[i])
			for _, j := range nbrs {
				dst, _ := g.Node(nextIDs[j])
				e, err := g.AddEdge(src.ID, dst.ID)
				if err != nil {
					return err
				}
				e.SetAttr(AttrDistance, floats.Distance(src.Pos, dst.Pos, 2))
			}
		}
		prevIndex, prevFrame = next, t+1
	}
	return nil
}

func frameIndex(g *Graph, ids []NodeID) (*spatial.Index, error) {
	positions := make([][]float64, len(ids))
	for i, id := range ids {
		n, _ := g.Node(id)
		positions[i] = n.Pos
	}
	return spatial.NewIndex(positions)
}

// MarkBoundaryAppears flags nodes whose appearance should not be charged:
// every node in the earliest frame, plus any node the caller's predicate
// accepts (typically nodes near the field-of-view border, where objects
// genuinely enter the scene). A nil predicate flags the first frame only.
func MarkBoundaryAppears(g *Graph, boundary func(n *Node) bool) {
	frames := g.Frames()
	if len(frames) == 0 {
		return
	}
	first := frames[0]
	for _, n := range g.Nodes() {
		if n.Frame == first || (boundary != nil && boundary(n)) {
			n.IgnoreAppear = true
		}
	}
}

// AnnotateDrift caches, on every edge, the distance between the edge target
// and the position the source would reach under the given constant drift.
// The value is stored under AttrDriftDistance. Drift must match the position
// dimensionality.
func AnnotateDrift(g *Graph, drift []float64) error {
	expected := make([]float64, len(drift))
	for _, e := range g.Edges() {
		src, _ := g.Node(e.From)
		dst, _ := g.Node(e.To)
		if len(src.Pos) != len(drift) {
			return fmt.Errorf("graph: drift has %d dims, node %d has %d", len(drift), src.ID, len(src.Pos))
		}
		copy(expected, src.Pos)
		floats.Add(expected, drift)
		e.SetAttr(AttrDriftDistance, floats.Distance(expected, dst.Pos, 2))
	}
	return nil
}
