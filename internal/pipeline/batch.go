package pipeline

import "github.com/banshee-data/pointbatch/internal/cloud"

// Batch is an ordered concatenation of samples into flat arrays plus
// per-sample length markers. Metadata index i always corresponds to the
// i-th concatenated sample, in draw order.
type Batch struct {
	// ID identifies the batch in logs and reports.
	ID string

	// Flat arrays; sum(Lengths) == len(Points) == len(Features) == len(Labels).
	Points   []cloud.Point
	Features [][]float32
	Labels   []int32
	Lengths  []int32

	// Per-sample metadata, parallel to Lengths.
	Scales    [][3]float32
	Rotations [][9]float32
	FrameIDs  [][2]int32
	Centers   []cloud.Point

	// Validation/test metadata, parallel to Lengths. Nil in training mode.
	ProjInds   [][]int32
	ProjMasks  [][]bool
	OrigLabels [][]int32

	// Layers is the opaque multi-resolution neighbor/pooling structure from
	// the external neighbor builder. The pipeline never inspects it.
	Layers any
}

// TotalPoints returns the summed point count of all samples in the batch.
func (b *Batch) TotalPoints() int {
	total := 0
	for _, l := range b.Lengths {
		total += int(l)
	}
	return total
}

// Samples returns the number of samples stacked into the batch.
func (b *Batch) Samples() int { return len(b.Lengths) }

// VisitArrays applies fn uniformly to every array-valued field of the
// batch, named. Device-transfer and pinning hooks use this to move a batch
// without knowing its layout.
func (b *Batch) VisitArrays(fn func(name string, data any)) {
	fn("points", b.Points)
	fn("features", b.Features)
	fn("labels", b.Labels)
	fn("lengths", b.Lengths)
	fn("scales", b.Scales)
	fn("rotations", b.Rotations)
	fn("frame_ids", b.FrameIDs)
	fn("centers", b.Centers)
	if b.ProjInds != nil {
		fn("proj_inds", b.ProjInds)
	}
	if b.ProjMasks != nil {
		fn("proj_masks", b.ProjMasks)
	}
	if b.OrigLabels != nil {
		fn("orig_labels", b.OrigLabels)
	}
}
