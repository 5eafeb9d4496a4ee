package cloud

import "math"

// voxelKey identifies one occupied cell of the subsampling grid.
type voxelKey struct {
	x, y, z int32
}

// voxelAccum accumulates the points of one cell until aggregation.
type voxelAccum struct {
	count      int
	sumX       float64
	sumY       float64
	sumZ       float64
	featSums   []float64
	labelCount map[int32]int
}

// GridSubsample quantises points into cubic cells of the given size and
// replaces each occupied cell with a single aggregated point: the cell
// centroid, the mean of each feature column, and the majority label (ties
// broken by the lowest label id).
//
// features and labels may be nil; when present, they must be parallel to
// points. Output order is the first-seen order of occupied cells, so the
// result is deterministic for a given input order. A cell size <= 0 returns
// the inputs unchanged.
func GridSubsample(points []Point, features [][]float32, labels []int32, cellSize float64) ([]Point, [][]float32, []int32) {
	if len(points) == 0 || cellSize <= 0 {
		return points, features, labels
	}

	order := make([]voxelKey, 0, len(points)/4)
	cells := make(map[voxelKey]*voxelAccum, len(points)/4)

	for i, p := range points {
		k := voxelKey{
			x: int32(math.Floor(float64(p.X) / cellSize)),
			y: int32(math.Floor(float64(p.Y) / cellSize)),
			z: int32(math.Floor(float64(p.Z) / cellSize)),
		}
		acc, ok := cells[k]
		if !ok {
			acc = &voxelAccum{}
			if features != nil {
				acc.featSums = make([]float64, len(features[i]))
			}
			if labels != nil {
				acc.labelCount = make(map[int32]int, 4)
			}
			cells[k] = acc
			order = append(order, k)
		}
		acc.count++
		acc.sumX += float64(p.X)
		acc.sumY += float64(p.Y)
		acc.sumZ += float64(p.Z)
		if features != nil {
			for j, f := range features[i] {
				acc.featSums[j] += float64(f)
			}
		}
		if labels != nil {
			acc.labelCount[labels[i]]++
		}
	}

	outPts := make([]Point, len(order))
	var outFeats [][]float32
	var outLabels []int32
	if features != nil {
		outFeats = make([][]float32, len(order))
	}
	if labels != nil {
		outLabels = make([]int32, len(order))
	}

	for i, k := range order {
		acc := cells[k]
		n := float64(acc.count)
		outPts[i] = Point{
			X: float32(acc.sumX / n),
			Y: float32(acc.sumY / n),
			Z: float32(acc.sumZ / n),
		}
		if features != nil {
			row := make([]float32, len(acc.featSums))
			for j, s := range acc.featSums {
				row[j] = float32(s / n)
			}
			outFeats[i] = row
		}
		if labels != nil {
			outLabels[i] = majorityLabel(acc.labelCount)
		}
	}

	return outPts, outFeats, outLabels
}

// majorityLabel returns the most frequent label; ties go to the lowest id so
// the vote is deterministic.
func majorityLabel(counts map[int32]int) int32 {
	var best int32
	bestCount := -1
	for label, c := range counts {
		if c > bestCount || (c == bestCount && label < best) {
			best = label
			bestCount = c
		}
	}
	return best
}
