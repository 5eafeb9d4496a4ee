package cloud

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestNearestIndex_SinglePoint(t *testing.T) {
	idx := NewNearestIndex([]Point{{X: 1, Y: 2, Z: 3}})
	i, d := idx.Nearest(Point{X: 1, Y: 2, Z: 4})
	if i != 0 {
		t.Fatalf("nearest index = %d, want 0", i)
	}
	if math.Abs(d-1.0) > 1e-9 {
		t.Fatalf("nearest distance = %f, want 1.0", d)
	}
}

func TestNearestIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 0))
	points := make([]Point, 1000)
	for i := range points {
		points[i] = Point{
			X: float32(rng.Float64() * 10),
			Y: float32(rng.Float64() * 10),
			Z: float32(rng.Float64() * 10),
		}
	}
	idx := NewNearestIndex(points)

	for q := 0; q < 200; q++ {
		query := Point{
			X: float32(rng.Float64() * 10),
			Y: float32(rng.Float64() * 10),
			Z: float32(rng.Float64() * 10),
		}
		best := -1
		bestD := math.Inf(1)
		for i, p := range points {
			if d := DistSq(p, query); d < bestD {
				bestD = d
				best = i
			}
		}
		got, gotD := idx.Nearest(query)
		// Accept a different index only at exactly equal distance.
		if got != best && math.Abs(gotD-math.Sqrt(bestD)) > 1e-9 {
			t.Fatalf("query %d: kd-tree found %d at %f, brute force %d at %f",
				q, got, gotD, best, math.Sqrt(bestD))
		}
	}
}
