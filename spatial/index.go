// Package spatial provides a per-frame nearest-neighbor index over detection
// positions, backed by a k-d tree. An Index is built once over a fixed list
// of positions and is read-only afterwards.
package spatial

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrDimensionMismatch is returned when positions of differing dimension are
// mixed within one index or across a query pair.
var ErrDimensionMismatch = errors.New("spatial: dimension mismatch")

// point is one indexed position together with its offset in the input list,
// so query results can be mapped back to the caller's ordering.
type point struct {
	pos []float64
	idx int
}

// Compare returns the signed distance of p from the plane through q along
// dimension d.
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	return p.pos[d] - q.pos[d]
}

// Dims returns the dimensionality of the point.
func (p point) Dims() int { return len(p.pos) }

// Distance returns the squared Euclidean distance between p and c. The k-d
// tree compares these against squared radii, avoiding square roots during
// traversal.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	var sum float64
	for i := range p.pos {
		d := p.pos[i] - q.pos[i]
		sum += d * d
	}
	return sum
}

// points implements kdtree.Interface for tree construction.
type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{points: p, Dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane is a helper for partitioning points along one dimension.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool { return p.points[i].pos[p.Dim] < p.points[j].pos[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

// Index answers range queries over a fixed set of positions.
type Index struct {
	pts  points
	tree *kdtree.Tree
	dims int
}

// NewIndex builds an index over the given positions. All positions must share
// the same non-zero dimensionality. An empty position list yields a valid
// empty index.
func NewIndex(positions [][]float64) (*Index, error) {
	ix := &Index{}
	if len(positions) == 0 {
		return ix, nil
	}
	ix.dims = len(positions[0])
	if ix.dims == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional position", ErrDimensionMismatch)
	}
	ix.pts = make(points, len(positions))
	for i, pos := range positions {
		if len(pos) != ix.dims {
			return nil, fmt.Errorf("%w: position %d has %d dims, want %d",
				ErrDimensionMismatch, i, len(pos), ix.dims)
		}
		ix.pts[i] = point{pos: pos, idx: i}
	}
	// Building rearranges the slice, so give the tree its own copy to keep
	// p.idx aligned with the caller's input order.
	cp := make(points, len(ix.pts))
	copy(cp, ix.pts)
	ix.tree = kdtree.New(cp, false)
	return ix, nil
}

// Len returns the number of indexed positions.
func (ix *Index) Len() int { return len(ix.pts) }

// Dims returns the dimensionality of the indexed positions, or 0 for an
// empty index.
func (ix *Index) Dims() int { return ix.dims }

// Position returns the i-th indexed position in input order.
func (ix *Index) Position(i int) []float64 { return ix.pts[i].pos }

// QueryWithin returns, for every position in ix (in input order), the input
// indices of positions in other within Euclidean distance maxDist. Each
// result slice is sorted ascending. Cost is proportional to the number of
// close pairs, not to the product of the index sizes.
func (ix *Index) QueryWithin(other *Index, maxDist float64) ([][]int, error) {
	matches := make([][]int, len(ix.pts))
	if other == nil || other.Len() == 0 {
		return matches, nil
	}
	if ix.Len() > 0 && ix.dims != other.dims {
		return nil, fmt.Errorf("%w: query %d dims against index of %d dims",
			ErrDimensionMismatch, ix.dims, other.dims)
	}
	for i, p := range ix.pts {
		keep := kdtree.NewDistKeeper(maxDist * maxDist)
		other.tree.NearestSet(keep, p)
		var found []int
		for _, cd := range keep.Heap {
			if cd.Comparable == nil {
				continue
			}
			found = append(found, cd.Comparable.(point).idx)
		}
		sort.Ints(found)
		matches[i] = found
	}
	return matches, nil
}
