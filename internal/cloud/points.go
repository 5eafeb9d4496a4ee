package cloud

// Point is a position in Cartesian frame coordinates (meters).
// Raw sensor data is float32; distance arithmetic is done in float64.
type Point struct {
	X, Y, Z float32
}

// DistSq returns the squared Euclidean distance between two points.
func DistSq(a, b Point) float64 {
	dx := float64(a.X) - float64(b.X)
	dy := float64(a.Y) - float64(b.Y)
	dz := float64(a.Z) - float64(b.Z)
	return dx*dx + dy*dy + dz*dz
}

// RadiusCrop returns the indices of all points strictly inside the sphere of
// the given radius around center. A point lying exactly on the boundary is
// excluded.
func RadiusCrop(points []Point, center Point, radius float64) []int {
	if len(points) == 0 {
		return nil
	}
	r2 := radius * radius
	inds := make([]int, 0, len(points))
	for i, p := range points {
		if DistSq(p, center) < r2 {
			inds = append(inds, i)
		}
	}
	return inds
}
