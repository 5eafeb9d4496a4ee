package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pointbatch/internal/monitoring"
	"github.com/banshee-data/pointbatch/internal/sampler"
)

// BatchAssembler streams samples from one worker's SampleBuilder into
// budget-bounded batches. Like the builder it is worker-local; only the
// shared sampler serialises across workers.
type BatchAssembler struct {
	cfg      Config
	mode     Mode
	sampler  *sampler.PotentialSampler
	builder  *SampleBuilder
	neighbor NeighborBuilder
	obs      monitoring.StageObserver
}

// NewBatchAssembler wires an assembler to a shared sampler and a
// worker-local builder.
func NewBatchAssembler(cfg Config, mode Mode, s *sampler.PotentialSampler, b *SampleBuilder, nb NeighborBuilder) (*BatchAssembler, error) {
	if s == nil || b == nil {
		return nil, fmt.Errorf("batch assembler needs a sampler and a sample builder")
	}
	if nb == nil {
		nb = NopNeighborBuilder{}
	}
	return &BatchAssembler{
		cfg:      cfg,
		mode:     mode,
		sampler:  s,
		builder:  b,
		neighbor: nb,
		obs:      b.obs,
	}, nil
}

// BuildBatch accumulates samples until the running point total exceeds
// pointBudget. The budget is a soft ceiling: it is checked only after a
// sample is added, so a single oversized sample may alone exceed it.
// Consecutive soft rejections past the retry cap become a hard error.
func (a *BatchAssembler) BuildBatch(ctx context.Context, pointBudget int) (*Batch, error) {
	var samples []*Sample
	total := 0
	rejected := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slot := a.sampler.NextSlot()
		s, err := a.builder.BuildSample(ctx, slot)
		if errors.Is(err, ErrTooFewPoints) {
			rejected++
			if rejected > a.cfg.RetryCap {
				return nil, fmt.Errorf("gave up after %d consecutive rejected samples: %w", rejected, err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		rejected = 0

		samples = append(samples, s)
		total += len(s.Points)
		if total > pointBudget {
			break
		}
	}

	start := time.Now()
	batch, err := a.assemble(samples)
	a.obs.ObserveStage("assemble", time.Since(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	labels64 := make([]int64, len(batch.Labels))
	for i, l := range batch.Labels {
		labels64[i] = int64(l)
	}
	layers, err := a.neighbor.Build(batch.Points, batch.Features, labels64, batch.Lengths)
	a.obs.ObserveStage("neighbors", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("neighbor index construction failed: %w", err)
	}
	batch.Layers = layers
	return batch, nil
}

// assemble concatenates samples into the flat batch representation and
// builds the configured feature columns.
func (a *BatchAssembler) assemble(samples []*Sample) (*Batch, error) {
	b := &Batch{ID: uuid.New().String()}

	for _, s := range samples {
		b.Points = append(b.Points, s.Points...)
		b.Labels = append(b.Labels, s.Labels...)
		b.Lengths = append(b.Lengths, int32(len(s.Points)))
		b.Scales = append(b.Scales, s.Scale)
		b.Rotations = append(b.Rotations, s.Rotation)
		b.FrameIDs = append(b.FrameIDs, [2]int32{int32(s.Sequence), int32(s.Frame)})
		b.Centers = append(b.Centers, s.Center)
		if a.mode != ModeTraining {
			b.ProjInds = append(b.ProjInds, s.ProjInds)
			b.ProjMasks = append(b.ProjMasks, s.ProjMask)
			b.OrigLabels = append(b.OrigLabels, s.OrigLabels)
		}
	}

	features, err := a.stackFeatures(samples)
	if err != nil {
		return nil, err
	}
	b.Features = features
	return b, nil
}

// stackFeatures builds the per-point input features from the configured
// subset of {bias, height, intensity, coordinates}. Raw feature rows are
// [x, y, z] or [x, y, z, intensity].
func (a *BatchAssembler) stackFeatures(samples []*Sample) ([][]float32, error) {
	var out [][]float32
	for _, s := range samples {
		for _, raw := range s.Features {
			var row []float32
			switch a.cfg.FeatureDim {
			case 1:
				row = []float32{1}
			case 2:
				row = []float32{1, raw[2]}
			case 3:
				if len(raw) < 4 {
					return nil, fmt.Errorf("feature dimension 3 needs an intensity channel")
				}
				row = []float32{1, raw[2], raw[3]}
			case 4:
				row = []float32{1, raw[0], raw[1], raw[2]}
			case 5:
				if len(raw) < 4 {
					return nil, fmt.Errorf("feature dimension 5 needs an intensity channel")
				}
				row = []float32{1, raw[0], raw[1], raw[2], raw[3]}
			default:
				return nil, fmt.Errorf("invalid feature dimension %d (accepted: 1, 2, 3, 4, 5)", a.cfg.FeatureDim)
			}
			out = append(out, row)
		}
	}
	return out, nil
}
