package pipeline

import (
	"math/rand/v2"

	"github.com/banshee-data/pointbatch/internal/cloud"
	"github.com/banshee-data/pointbatch/internal/sampler"
)

// CenterStrategy picks the crop center for a sample from the first merged
// frame's points. One variant per mode, selected at builder construction.
type CenterStrategy interface {
	Pick(rng *rand.Rand, seq, frame int, points []cloud.Point, labels []int32, slot sampler.Slot) int
}

// RandomCenter picks a uniformly random point. Used for validation and as
// the training strategy when class balancing is off.
type RandomCenter struct{}

// Pick implements CenterStrategy.
func (RandomCenter) Pick(rng *rand.Rand, _, _ int, points []cloud.Point, _ []int32, _ sampler.Slot) int {
	return rng.IntN(len(points))
}

// ClassCenter picks uniformly among points whose label matches the slot's
// class hint, falling back to a uniform pick when the frame has none (the
// statistics cache can be stale after a taxonomy change).
type ClassCenter struct{}

// Pick implements CenterStrategy.
func (ClassCenter) Pick(rng *rand.Rand, _, _ int, points []cloud.Point, labels []int32, slot sampler.Slot) int {
	if slot.Label == sampler.NoLabel || len(labels) != len(points) {
		return rng.IntN(len(points))
	}
	matches := make([]int, 0, 256)
	for i, l := range labels {
		if l == slot.Label {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return rng.IntN(len(points))
	}
	return matches[rng.IntN(len(matches))]
}

// PredictionSource exposes which points of a frame already carry predictions
// from a previous inference pass.
type PredictionSource interface {
	// Predicted returns a per-point predicted mask for the frame, or
	// ok=false when no predictions are available.
	Predicted(sequence, frame int) (mask []bool, ok bool)
}

// unpredictedBias is the unpredicted/predicted ratio above which test-mode
// center selection targets unpredicted points.
const unpredictedBias = 1.5

// UnpredictedCenter prefers a point not yet covered by prior predictions
// when enough of the frame remains unpredicted; otherwise, and whenever the
// prediction cache is missing, it picks uniformly at random.
type UnpredictedCenter struct {
	Predictions PredictionSource
}

// Pick implements CenterStrategy.
func (u UnpredictedCenter) Pick(rng *rand.Rand, seq, frame int, points []cloud.Point, _ []int32, _ sampler.Slot) int {
	if u.Predictions == nil {
		return rng.IntN(len(points))
	}
	mask, ok := u.Predictions.Predicted(seq, frame)
	if !ok || len(mask) != len(points) {
		return rng.IntN(len(points))
	}

	unpredicted := make([]int, 0, len(points))
	predicted := 0
	for i, p := range mask {
		if p {
			predicted++
		} else {
			unpredicted = append(unpredicted, i)
		}
	}
	if predicted == 0 || float64(len(unpredicted))/float64(predicted) > unpredictedBias {
		if len(unpredicted) > 0 {
			return unpredicted[rng.IntN(len(unpredicted))]
		}
	}
	return rng.IntN(len(points))
}

// centerStrategyFor returns the strategy matching a mode, per the dispatch
// the split name used to select.
func centerStrategyFor(mode Mode, balanceClasses bool, preds PredictionSource) CenterStrategy {
	switch {
	case mode == ModeTest:
		return UnpredictedCenter{Predictions: preds}
	case mode == ModeTraining && balanceClasses:
		return ClassCenter{}
	default:
		return RandomCenter{}
	}
}
