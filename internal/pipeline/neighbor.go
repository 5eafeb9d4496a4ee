package pipeline

import "github.com/banshee-data/pointbatch/internal/cloud"

// NeighborBuilder constructs the multi-resolution neighbor and pooling
// indices the point-convolution network consumes. The pipeline treats the
// result as opaque and forwards it unmodified on the Batch.
type NeighborBuilder interface {
	Build(points []cloud.Point, features [][]float32, labels []int64, lengths []int32) (any, error)
}

// NopNeighborBuilder returns nil layers. Used by tests and dry runs that
// exercise the pipeline without a downstream network.
type NopNeighborBuilder struct{}

// Build implements NeighborBuilder.
func (NopNeighborBuilder) Build([]cloud.Point, [][]float32, []int64, []int32) (any, error) {
	return nil, nil
}
