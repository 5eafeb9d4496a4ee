package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/pointbatch/internal/monitoring"
	"github.com/banshee-data/pointbatch/internal/stats"
	"github.com/banshee-data/pointbatch/internal/taxonomy"
)

// FrameMode returns the statistics cache key component for a merge count.
func FrameMode(frameMerge int) string {
	if frameMerge > 1 {
		return "multi"
	}
	return "single"
}

// EnsureClassStats returns the class statistics for a split, computing and
// caching them with one full labeled pass when the cache has no entry.
// The pass is long but runs once per (split, frame mode).
func EnsureClassStats(ctx context.Context, store *stats.Store, src FrameSource, frames *FrameIndex, tax *taxonomy.Taxonomy, split string, frameMerge int) (*stats.SplitStats, error) {
	mode := FrameMode(frameMerge)
	if store != nil {
		cached, ok, err := store.Load(split, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to load class statistics cache: %w", err)
		}
		if ok {
			return cached, nil
		}
	}

	monitoring.Logf("stats: preparing class frames for split=%s mode=%s (long but one time only)", split, mode)

	st := &stats.SplitStats{
		Split:       split,
		FrameMode:   mode,
		ClassFrames: make(map[int32][]int),
		Proportions: make(map[int32]int64),
	}
	for _, label := range tax.UsedLabelValues() {
		st.Proportions[label] = 0
	}

	for i := 0; i < frames.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq, frame := frames.At(i)
		_, _, labels, err := src.Load(ctx, seq, frame)
		if err != nil {
			return nil, fmt.Errorf("failed to load frame (%d, %d) for statistics: %w", seq, frame, err)
		}
		present := make(map[int32]int64)
		for _, l := range labels {
			present[l]++
		}
		for label, count := range present {
			if tax.IsIgnored(label) {
				continue
			}
			st.ClassFrames[label] = append(st.ClassFrames[label], i)
			st.Proportions[label] += count
		}
	}

	if store != nil {
		if err := store.Save(st); err != nil {
			return nil, fmt.Errorf("failed to persist class statistics: %w", err)
		}
	}
	return st, nil
}
