package cloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// pivotRandoms is the sample size used when choosing split planes.
const pivotRandoms = 100

// indexedPoint is a kd-tree element that remembers its position in the
// original slice, so Nearest can return an index rather than a coordinate.
type indexedPoint struct {
	kdtree.Point
	idx int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.Point.Compare(unwrapIndexed(c), d)
}
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return p.Point.Distance(unwrapIndexed(c))
}

// unwrapIndexed reduces an indexedPoint to its embedded kdtree.Point so the
// library's Point methods can type-assert their argument.
func unwrapIndexed(c kdtree.Comparable) kdtree.Comparable {
	if ip, ok := c.(indexedPoint); ok {
		return ip.Point
	}
	return c
}

// indexedPoints implements kdtree.Interface over indexedPoint values.
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p indexedPoints) Len() int                      { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return indexedPlane{indexedPoints: p, Dim: d}.Pivot()
}
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// indexedPlane sorts indexedPoints along a single dimension.
type indexedPlane struct {
	indexedPoints
	kdtree.Dim
}

func (p indexedPlane) Less(i, j int) bool {
	return p.indexedPoints[i].Point[p.Dim] < p.indexedPoints[j].Point[p.Dim]
}
func (p indexedPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfRandoms(p, pivotRandoms)) }
func (p indexedPlane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p indexedPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// NearestIndex answers nearest-neighbour queries against a fixed point set.
// Construction is O(n log n); queries do not mutate the tree, so a built
// index may be shared by concurrent readers.
type NearestIndex struct {
	tree *kdtree.Tree
}

// NewNearestIndex builds a nearest-neighbour index over the given points.
func NewNearestIndex(points []Point) *NearestIndex {
	data := make(indexedPoints, len(points))
	for i, p := range points {
		data[i] = indexedPoint{
			Point: kdtree.Point{float64(p.X), float64(p.Y), float64(p.Z)},
			idx:   i,
		}
	}
	return &NearestIndex{tree: kdtree.New(data, false)}
}

// Nearest returns the index of the closest point in the set and its
// Euclidean distance to q. A query against an empty index returns -1.
func (n *NearestIndex) Nearest(q Point) (int, float64) {
	got, dist2 := n.tree.Nearest(indexedPoint{
		Point: kdtree.Point{float64(q.X), float64(q.Y), float64(q.Z)},
		idx:   -1,
	})
	if got == nil {
		return -1, math.Inf(1)
	}
	return got.(indexedPoint).idx, math.Sqrt(dist2)
}
