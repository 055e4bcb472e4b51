package track

import (
	"sort"

	"github.com/cellscape/tracklet/graph"
)

// AssignTrackIDs converts a solution subgraph into contiguous track labels.
// Every outgoing edge of a division node (out-degree > 1) is cut; each weakly
// connected component of the remainder is one track, numbered from 1 in order
// of its earliest (frame, node id). A division node therefore stays on the
// parent track at its own frame, and each daughter branch starts a fresh id.
// The transform is deterministic and idempotent on its own output.
func AssignTrackIDs(sol *graph.Graph) (map[graph.NodeID]int64, int) {
	adj := make(map[graph.NodeID][]graph.NodeID, sol.NumNodes())
	for _, e := range retainedEdges(sol) {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}

	order := make([]*graph.Node, 0, sol.NumNodes())
	order = append(order, sol.Nodes()...)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Frame != order[j].Frame {
			return order[i].Frame < order[j].Frame
		}
		return order[i].ID < order[j].ID
	})

	ids := make(map[graph.NodeID]int64, sol.NumNodes())
	var next int64
	for _, n := range order {
		if _, seen := ids[n.ID]; seen {
			continue
		}
		next++
		// BFS over the undirected remainder.
		queue := []graph.NodeID{n.ID}
		ids[n.ID] = next
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nbr := range adj[cur] {
				if _, seen := ids[nbr]; !seen {
					ids[nbr] = next
					queue = append(queue, nbr)
				}
			}
		}
	}
	return ids, int(next)
}

// retainedEdges returns the solution edges that survive division splitting.
func retainedEdges(sol *graph.Graph) []*graph.Edge {
	var kept []*graph.Edge
	for _, e := range sol.Edges() {
		if len(sol.OutEdges(e.From)) > 1 {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// SplitDivisions returns a copy of the solution subgraph with every division
// node's outgoing edges removed; the tracks of AssignTrackIDs are exactly the
// weakly connected components of this graph.
func SplitDivisions(sol *graph.Graph) (*graph.Graph, error) {
	keepNodes := make(map[graph.NodeID]bool, sol.NumNodes())
	for _, n := range sol.Nodes() {
		keepNodes[n.ID] = true
	}
	keepEdges := make(map[graph.EdgeKey]bool)
	for _, e := range retainedEdges(sol) {
		keepEdges[e.Key()] = true
	}
	return sol.Subgraph(keepNodes, keepEdges)
}

// Segmentation is a dense per-frame labeling: [frame][row][col] holds the
// detection label at that pixel, 0 for background.
type Segmentation [][][]int64

// RelabelSegmentation rewrites a dense labeling so that every region whose
// detection is part of the solution carries its track id, and every
// unselected region is dropped to background. ids is the mapping from
// AssignTrackIDs.
func RelabelSegmentation(seg Segmentation, ids map[graph.NodeID]int64) Segmentation {
	out := make(Segmentation, len(seg))
	for t, grid := range seg {
		out[t] = make([][]int64, len(grid))
		for r, row := range grid {
			out[t][r] = make([]int64, len(row))
			for c, label := range row {
				if label == 0 {
					continue
				}
				if tid, ok := ids[graph.NodeID(label)]; ok {
					out[t][r][c] = tid
				}
			}
		}
	}
	return out
}
