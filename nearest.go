package pbfextract

import (
	"github.com/kyroy/kdtree"
)

// indexedPoint is a planar point carrying its position in the reference set.
type indexedPoint struct {
	x, y float64
	pos  int
}

func (p *indexedPoint) Dimensions() int {
	return 2
}

func (p *indexedPoint) Dimension(i int) float64 {
	if i == 0 {
		return p.x
	}
	return p.y
}

// NearestIndex answers nearest-point queries over a fixed reference set in
// planar coordinates. It is built once and never mutated afterwards, which
// makes unsynchronized concurrent queries safe. Rebuild it when the
// reference set changes.
type NearestIndex struct {
	tree *kdtree.KDTree
	size int
}

// NewNearestIndex builds the index over planar (x, y) reference points.
func NewNearestIndex(points [][2]float64) *NearestIndex {
	wrapped := make([]kdtree.Point, len(points))
	for i, p := range points {
		wrapped[i] = &indexedPoint{x: p[0], y: p[1], pos: i}
	}
	return &NearestIndex{tree: kdtree.New(wrapped), size: len(points)}
}

// Len returns the number of reference points.
func (n *NearestIndex) Len() int {
	return n.size
}

// Nearest returns the position of the reference point closest to (x, y) and
// the squared planar distance to it. The index must not be empty.
func (n *NearestIndex) Nearest(x, y float64) (int, float64) {
	neighbors := n.tree.KNN(&indexedPoint{x: x, y: y}, 1)
	nearest := neighbors[0].(*indexedPoint)
	dx := nearest.x - x
	dy := nearest.y - y
	return nearest.pos, dx*dx + dy*dy
}
