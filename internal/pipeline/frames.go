package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/pointbatch/internal/cloud"
)

// FrameSource resolves (sequence, frame) pairs into point data. Labels must
// already be remapped through the class taxonomy; Intensity may be nil when
// the sensor provides no reflectance-like channel. Implementations must be
// safe for concurrent use by multiple workers.
type FrameSource interface {
	// Load returns the frame's points, optional per-point intensity and
	// optional per-point labels.
	Load(ctx context.Context, sequence, frame int) (points []cloud.Point, intensity []float32, labels []int32, err error)
	// Transform returns the rigid transform placing the frame in the common
	// reference frame. Only consulted when frame merging is enabled.
	Transform(ctx context.Context, sequence, frame int) (cloud.Rigid, error)
	// HasIntensity reports whether Load returns an intensity channel.
	HasIntensity() bool
}

// FrameIndex is the stable flat enumeration of all (sequence, frame) pairs
// of the active split. It is built once at startup and read-only afterwards.
type FrameIndex struct {
	pairs [][2]int
}

// NewFrameIndex enumerates sequences in order; seqLens[i] is the frame count
// of sequence i.
func NewFrameIndex(seqLens []int) (*FrameIndex, error) {
	fi := &FrameIndex{}
	for seq, n := range seqLens {
		if n < 0 {
			return nil, fmt.Errorf("sequence %d has negative frame count %d", seq, n)
		}
		for f := 0; f < n; f++ {
			fi.pairs = append(fi.pairs, [2]int{seq, f})
		}
	}
	if len(fi.pairs) == 0 {
		return nil, fmt.Errorf("frame index is empty; no frames in the active split")
	}
	return fi, nil
}

// Len returns the total frame count across all sequences.
func (fi *FrameIndex) Len() int { return len(fi.pairs) }

// At resolves a global frame index into its (sequence, frame) pair.
func (fi *FrameIndex) At(i int) (sequence, frame int) {
	p := fi.pairs[i]
	return p[0], p[1]
}
