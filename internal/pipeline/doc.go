// Package pipeline assembles spatially bounded, class-aware training
// batches from large point-cloud frames.
//
// A PotentialSampler (package sampler) decides which frames are drawn each
// epoch; worker-local SampleBuilders merge, crop, subsample and augment one
// frame draw into a Sample; worker-local BatchAssemblers accumulate samples
// until a point budget is exceeded and hand the flattened arrays to the
// external neighbor-index builder. Workers share nothing but the sampler.
package pipeline
