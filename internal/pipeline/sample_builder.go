package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/pointbatch/internal/augment"
	"github.com/banshee-data/pointbatch/internal/cloud"
	"github.com/banshee-data/pointbatch/internal/monitoring"
	"github.com/banshee-data/pointbatch/internal/sampler"
)

// ErrTooFewPoints is the soft-rejection signal: the subsampled cloud is too
// small to be a useful sample, so the caller should pull the next slot.
var ErrTooFewPoints = errors.New("subsampled point count below viability floor")

// reprojInnerFraction shrinks the reprojection mask radius slightly below
// the crop radius so boundary artifacts never enter evaluation.
const reprojInnerFraction = 0.99

// Sample is one processed training example.
type Sample struct {
	Points   []cloud.Point
	Features [][]float32
	Labels   []int32

	Sequence int
	Frame    int
	Center   cloud.Point
	Scale    [3]float32
	Rotation [9]float32

	// Validation/test only: reprojection of the cropped full-resolution
	// frame onto the subsampled points. ProjInds holds, for every true
	// entry of ProjMask in order, the index of the nearest subsampled
	// point. OrigLabels are the full-resolution labels.
	ProjInds   []int32
	ProjMask   []bool
	OrigLabels []int32
}

// BuilderConfig wires a SampleBuilder.
type BuilderConfig struct {
	Pipeline       Config
	Mode           Mode
	Source         FrameSource
	Frames         *FrameIndex
	BalanceClasses bool
	Predictions    PredictionSource
	Observer       monitoring.StageObserver
	Seed           uint64
}

// SampleBuilder turns epoch-plan slots into Samples: frame merging, sphere
// cropping, voxel subsampling, point-cap enforcement, reprojection and
// augmentation. A builder is single-worker state; construct one per worker.
type SampleBuilder struct {
	cfg    Config
	mode   Mode
	src    FrameSource
	frames *FrameIndex
	center CenterStrategy
	aug    *augment.Augmentor
	rng    *rand.Rand
	obs    monitoring.StageObserver
}

// NewSampleBuilder validates the configuration and builds a worker-local
// sample builder.
func NewSampleBuilder(bc BuilderConfig) (*SampleBuilder, error) {
	if bc.Source == nil {
		return nil, fmt.Errorf("sample builder needs a frame source")
	}
	if bc.Frames == nil {
		return nil, fmt.Errorf("sample builder needs a frame index")
	}
	if _, err := ParseMode(string(bc.Mode)); err != nil {
		return nil, err
	}
	if err := bc.Pipeline.Validate(bc.Source.HasIntensity()); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(bc.Seed, 0x51f3c8a2d7b94e01))
	aug, err := augment.New(bc.Pipeline.Augment, rng)
	if err != nil {
		return nil, err
	}
	obs := bc.Observer
	if obs == nil {
		obs = monitoring.NopObserver{}
	}
	return &SampleBuilder{
		cfg:    bc.Pipeline,
		mode:   bc.Mode,
		src:    bc.Source,
		frames: bc.Frames,
		center: centerStrategyFor(bc.Mode, bc.BalanceClasses, bc.Predictions),
		aug:    aug,
		rng:    rng,
		obs:    obs,
	}, nil
}

// BuildSample processes one slot into a Sample. A result wrapping
// ErrTooFewPoints is a soft rejection; any other error is fatal for the
// worker.
func (b *SampleBuilder) BuildSample(ctx context.Context, slot sampler.Slot) (*Sample, error) {
	seq, base := b.frames.At(slot.Frame)
	radius := b.cfg.Radius(b.mode)

	var (
		mergedPts    []cloud.Point
		mergedFeats  [][]float32
		mergedLabels []int32
		origPts      []cloud.Point
		origLabels   []int32
		center       cloud.Point
	)

	start := time.Now()
	merged := 0
	// Walk backward from the base frame; running off the start of the
	// sequence truncates the merge early.
	for inc := 0; merged < b.cfg.FrameMerge && base-inc >= 0; inc++ {
		frame := base - inc
		pts, intens, labels, err := b.src.Load(ctx, seq, frame)
		if err != nil {
			return nil, fmt.Errorf("failed to load frame (%d, %d): %w", seq, frame, err)
		}
		if len(pts) == 0 {
			if inc == 0 {
				return nil, fmt.Errorf("%w: frame (%d, %d) is empty", ErrTooFewPoints, seq, frame)
			}
			merged++
			continue
		}
		if labels == nil {
			labels = make([]int32, len(pts))
		}

		if b.cfg.FrameMerge > 1 {
			tr, err := b.src.Transform(ctx, seq, frame)
			if err != nil {
				return nil, fmt.Errorf("failed to load transform (%d, %d): %w", seq, frame, err)
			}
			pts = tr.ApplyAll(pts)
		}

		if b.mode != ModeTraining && inc == 0 {
			origPts = pts
			origLabels = labels
		}

		// The crop center is chosen once, on the most recent frame, and
		// reused for every merged frame.
		if radius < UnboundedRadius && inc == 0 {
			center = pts[b.center.Pick(b.rng, seq, frame, pts, labels, slot)]
		}

		var inds []int
		if radius < UnboundedRadius {
			inds = cloud.RadiusCrop(pts, center, radius)
		} else {
			inds = make([]int, len(pts))
			for i := range inds {
				inds[i] = i
			}
		}
		// Shuffle the survivors so storage order never leaks into training.
		b.rng.Shuffle(len(inds), func(i, j int) { inds[i], inds[j] = inds[j], inds[i] })

		for _, i := range inds {
			p := pts[i]
			mergedPts = append(mergedPts, p)
			if intens != nil {
				mergedFeats = append(mergedFeats, []float32{p.X, p.Y, p.Z, intens[i]})
			} else {
				mergedFeats = append(mergedFeats, []float32{p.X, p.Y, p.Z})
			}
			mergedLabels = append(mergedLabels, labels[i])
		}
		merged++
	}
	b.obs.ObserveStage("merge", time.Since(start))

	start = time.Now()
	subPts, subFeats, subLabels := cloud.GridSubsample(mergedPts, mergedFeats, mergedLabels, b.cfg.VoxelSize)
	b.obs.ObserveStage("subsample", time.Since(start))

	if len(subPts) < minViablePoints {
		return nil, fmt.Errorf("%w: %d points from frame (%d, %d)", ErrTooFewPoints, len(subPts), seq, base)
	}

	// Drop a random subset when over the per-sample cap; this doubles as
	// augmentation and keeps worst-case memory bounded.
	if maxPts := b.cfg.MaxPoints(b.mode); len(subPts) > maxPts {
		keep := b.rng.Perm(len(subPts))[:maxPts]
		capPts := make([]cloud.Point, maxPts)
		capFeats := make([][]float32, maxPts)
		capLabels := make([]int32, maxPts)
		for i, idx := range keep {
			capPts[i] = subPts[idx]
			capFeats[i] = subFeats[idx]
			capLabels[i] = subLabels[idx]
		}
		subPts, subFeats, subLabels = capPts, capFeats, capLabels
	}

	s := &Sample{
		Points:   subPts,
		Features: subFeats,
		Labels:   subLabels,
		Sequence: seq,
		Frame:    base,
		Center:   center,
	}

	if b.mode != ModeTraining {
		start = time.Now()
		s.ProjMask, s.ProjInds = b.reproject(origPts, subPts, center, radius)
		s.OrigLabels = origLabels
		b.obs.ObserveStage("reproject", time.Since(start))
	}

	start = time.Now()
	s.Points, s.Scale, s.Rotation = b.aug.Apply(subPts)
	b.obs.ObserveStage("augment", time.Since(start))

	return s, nil
}

// reproject maps the cropped full-resolution points back onto the
// subsampled cloud: a mask of originals within the conservative inner
// radius, and for each masked point the nearest subsampled point.
func (b *SampleBuilder) reproject(origPts, subPts []cloud.Point, center cloud.Point, radius float64) ([]bool, []int32) {
	if len(origPts) == 0 {
		return nil, nil
	}
	inner := reprojInnerFraction * radius
	inner2 := inner * inner

	mask := make([]bool, len(origPts))
	nn := cloud.NewNearestIndex(subPts)
	inds := make([]int32, 0, len(origPts)/2)
	for i, p := range origPts {
		if cloud.DistSq(p, center) >= inner2 {
			continue
		}
		mask[i] = true
		idx, _ := nn.Nearest(p)
		inds = append(inds, int32(idx))
	}
	return mask, inds
}
