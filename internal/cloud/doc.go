// Package cloud provides the point-level primitives used by the batch
// pipeline: sphere cropping, voxel-grid subsampling, rigid transforms and
// nearest-neighbour queries over subsampled clouds.
//
// All functions in this package are pure: they never retain references to
// their inputs and hold no state, so they are safe to call from any number
// of workers concurrently.
package cloud
