package monitoring

import (
	"sync"
	"time"
)

// StageObserver receives the duration of each pipeline stage (merge, crop,
// subsample, reproject, augment, assemble, neighbors). Implementations must
// be safe for concurrent use; they are called from every worker.
type StageObserver interface {
	ObserveStage(stage string, d time.Duration)
}

// NopObserver discards all observations.
type NopObserver struct{}

// ObserveStage implements StageObserver.
func (NopObserver) ObserveStage(string, time.Duration) {}

// StageTimings aggregates per-stage call counts and total durations. Useful
// for benchmarks and the bench CLI summary.
type StageTimings struct {
	mu     sync.Mutex
	totals map[string]time.Duration
	counts map[string]int64
}

// NewStageTimings returns an empty aggregating observer.
func NewStageTimings() *StageTimings {
	return &StageTimings{
		totals: make(map[string]time.Duration),
		counts: make(map[string]int64),
	}
}

// ObserveStage implements StageObserver.
func (s *StageTimings) ObserveStage(stage string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[stage] += d
	s.counts[stage]++
}

// Mean returns the mean duration of a stage, or zero if never observed.
func (s *StageTimings) Mean(stage string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[stage] == 0 {
		return 0
	}
	return s.totals[stage] / time.Duration(s.counts[stage])
}

// Stages returns the observed stage names in unspecified order.
func (s *StageTimings) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.totals))
	for stage := range s.totals {
		out = append(out, stage)
	}
	return out
}
