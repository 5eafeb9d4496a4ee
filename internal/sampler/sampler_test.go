package sampler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{FrameCount: 0, PlanLength: 10})
	assert.Error(t, err)
	_, err = New(Config{FrameCount: 10, PlanLength: 0})
	assert.Error(t, err)
}

func TestNew_PotentialsStrictlyPositive(t *testing.T) {
	s, err := New(Config{FrameCount: 500, PlanLength: 10, Seed: 1})
	require.NoError(t, err)
	for i, p := range s.Potentials() {
		if p < 0.1 || p >= 0.2 {
			t.Fatalf("initial potential %d = %f outside [0.1, 0.2)", i, p)
		}
	}
}

func TestBeginEpoch_MinPotentialInvariant(t *testing.T) {
	s, err := New(Config{FrameCount: 100, PlanLength: 20, Seed: 2})
	require.NoError(t, err)

	before := s.Potentials()
	plan, err := s.BeginEpoch(false)
	require.NoError(t, err)
	require.Len(t, plan, 20)

	selected := make(map[int]bool)
	maxSelected := 0.0
	for _, slot := range plan {
		selected[slot.Frame] = true
		if before[slot.Frame] > maxSelected {
			maxSelected = before[slot.Frame]
		}
		assert.Equal(t, NoLabel, slot.Label)
	}
	for f, p := range before {
		if !selected[f] && p < maxSelected {
			t.Fatalf("frame %d (potential %f) was skipped while a higher-potential frame (%f) was selected", f, p, maxSelected)
		}
	}
}

func TestBeginEpoch_SelectedPotentialsBumped(t *testing.T) {
	s, err := New(Config{FrameCount: 50, PlanLength: 10, Seed: 3})
	require.NoError(t, err)

	plan, err := s.BeginEpoch(false)
	require.NoError(t, err)
	after := s.Potentials()
	for _, slot := range plan {
		// ceil(p in [0.1,0.2)) = 1, plus an increment in [0.1, 0.2).
		if after[slot.Frame] < 1.1 || after[slot.Frame] >= 1.2 {
			t.Fatalf("frame %d potential after draw = %f, want [1.1, 1.2)", slot.Frame, after[slot.Frame])
		}
	}
}

func TestBeginEpoch_RepeatedEpochsCoverAllFrames(t *testing.T) {
	const frames = 30
	s, err := New(Config{FrameCount: frames, PlanLength: 10, Seed: 4})
	require.NoError(t, err)

	drawn := make(map[int]int)
	for epoch := 0; epoch < 6; epoch++ {
		plan, err := s.BeginEpoch(false)
		require.NoError(t, err)
		for _, slot := range plan {
			drawn[slot.Frame]++
		}
	}
	// 6 epochs x 10 slots over 30 frames: min-potential selection must have
	// visited every frame exactly twice.
	require.Len(t, drawn, frames)
	for f, c := range drawn {
		assert.Equalf(t, 2, c, "frame %d drawn %d times", f, c)
	}
}

func TestBeginEpoch_PadsWhenPlanExceedsFrames(t *testing.T) {
	s, err := New(Config{FrameCount: 4, PlanLength: 11, Seed: 5})
	require.NoError(t, err)

	plan, err := s.BeginEpoch(false)
	require.NoError(t, err)
	require.Len(t, plan, 11)

	counts := make(map[int]int)
	for _, slot := range plan {
		require.GreaterOrEqual(t, slot.Frame, 0)
		require.Less(t, slot.Frame, 4)
		counts[slot.Frame]++
	}
	// Permutation padding keeps repeats near-uniform: ceil/floor of 11/4.
	for f, c := range counts {
		if c < 2 || c > 3 {
			t.Fatalf("frame %d repeated %d times in padded plan, want 2 or 3", f, c)
		}
	}
}

func TestBeginEpoch_BalancedCounts(t *testing.T) {
	classFrames := map[int32][]int{
		1: {0, 1, 2, 3},
		2: {4, 5, 6},
		3: {7, 8, 9, 10, 11},
	}
	s, err := New(Config{FrameCount: 12, PlanLength: 9, ClassFrames: classFrames, Seed: 6})
	require.NoError(t, err)

	plan, err := s.BeginEpoch(true)
	require.NoError(t, err)
	require.Len(t, plan, 9)

	perClass := make(map[int32]int)
	for _, slot := range plan {
		perClass[slot.Label]++
		assert.Containsf(t, classFrames[slot.Label], slot.Frame,
			"frame %d scheduled for class %d it does not contain", slot.Frame, slot.Label)
	}
	// 9/3+1 = 4 draws generated per class, shuffled and truncated to 9, so
	// every class contributes at least 9 - 2*4 = 1 and at most 4.
	total := 0
	for label, c := range perClass {
		assert.GreaterOrEqualf(t, c, 1, "class %d missing from plan", label)
		assert.LessOrEqualf(t, c, 4, "class %d over-represented", label)
		total += c
	}
	assert.Equal(t, 9, total)
}

func TestBeginEpoch_BalancedEmptyClassFails(t *testing.T) {
	s, err := New(Config{
		FrameCount:  10,
		PlanLength:  6,
		ClassFrames: map[int32][]int{1: {0, 1}, 2: {}},
		Seed:        7,
	})
	require.NoError(t, err)

	_, err = s.BeginEpoch(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class 2")
}

func TestBeginEpoch_BalancedWithoutClassFramesFails(t *testing.T) {
	s, err := New(Config{FrameCount: 10, PlanLength: 6, Seed: 8})
	require.NoError(t, err)
	_, err = s.BeginEpoch(true)
	assert.Error(t, err)
}

func TestNextSlot_VisitsEverySlotOnce(t *testing.T) {
	s, err := New(Config{FrameCount: 40, PlanLength: 17, Seed: 9})
	require.NoError(t, err)
	plan, err := s.BeginEpoch(false)
	require.NoError(t, err)

	seen := make([]Slot, 0, len(plan))
	for i := 0; i < len(plan); i++ {
		seen = append(seen, s.NextSlot())
	}
	assert.Equal(t, plan, seen, "one traversal must visit plan slots in order")

	// The cursor wraps: the next call returns the first slot again.
	assert.Equal(t, plan[0], s.NextSlot())
}

func TestNextSlot_ConcurrentWorkersConsumeDisjointSlots(t *testing.T) {
	const workers = 8
	const perWorker = 50
	// More frames than slots so every plan slot is a distinct frame.
	s, err := New(Config{FrameCount: workers*perWorker + 100, PlanLength: workers * perWorker, Seed: 10})
	require.NoError(t, err)
	_, err = s.BeginEpoch(false)
	require.NoError(t, err)

	var mu sync.Mutex
	counts := make(map[Slot]int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]Slot, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, s.NextSlot())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, slot := range local {
				counts[slot]++
			}
		}()
	}
	wg.Wait()

	// workers*perWorker calls over a plan of the same length: exactly one
	// full traversal, no slot duplicated or skipped.
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, workers*perWorker, total)
	assert.Len(t, counts, workers*perWorker)
	for slot, c := range counts {
		assert.Equalf(t, 1, c, "slot %+v consumed %d times", slot, c)
	}
}

func TestNextSlot_BeforeBeginEpochPanics(t *testing.T) {
	s, err := New(Config{FrameCount: 5, PlanLength: 5, Seed: 11})
	require.NoError(t, err)
	assert.Panics(t, func() { s.NextSlot() })
}
