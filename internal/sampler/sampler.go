// Package sampler schedules which frames are drawn each epoch.
//
// Every frame carries a potential score. Drawing a frame raises its
// potential, so min-potential selection gives round-robin-with-jitter
// coverage of the dataset: frames drawn recently become comparatively less
// likely to be selected again. An optional class-balanced mode restricts
// per-class selections to frames known to contain that class.
//
// The sampler is the only shared mutable state in the batch pipeline. All
// workers pull slots from one epoch plan through NextSlot, whose critical
// section is O(1): read a slot, advance the cursor.
package sampler

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// NoLabel marks a plan slot with no class hint (unbalanced sampling).
const NoLabel int32 = -1

// Slot is one entry of an epoch plan: the global frame index to draw and,
// in class-balanced mode, the class the sample should center on.
type Slot struct {
	Frame int
	Label int32
}

// Config configures a PotentialSampler.
type Config struct {
	// FrameCount is the number of frames in the active split.
	FrameCount int
	// PlanLength is the number of slots generated per epoch. It already
	// includes the slack factor for rejected samples.
	PlanLength int
	// ClassFrames maps each non-ignored class label to the frames known to
	// contain it. Required only for class-balanced epochs.
	ClassFrames map[int32][]int
	// Seed makes potential initialisation and plan generation reproducible.
	Seed uint64
}

// PotentialSampler owns the per-frame potentials, the epoch plan and the
// shared cursor. BeginEpoch is called by the coordinating context between
// epochs; NextSlot may be called by any worker.
type PotentialSampler struct {
	mu         sync.Mutex
	potentials []float64
	plan       []Slot
	cursor     int

	planLen     int
	classLabels []int32 // sorted label values with eligible frame lists
	classFrames map[int32][]int

	rng *rand.Rand
	inc distuv.Uniform
}

// New creates a sampler with potentials initialised uniformly in [0.1, 0.2).
func New(cfg Config) (*PotentialSampler, error) {
	if cfg.FrameCount <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", cfg.FrameCount)
	}
	if cfg.PlanLength <= 0 {
		return nil, fmt.Errorf("plan length must be positive, got %d", cfg.PlanLength)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0x9e3779b97f4a7c15))
	s := &PotentialSampler{
		potentials:  make([]float64, cfg.FrameCount),
		plan:        make([]Slot, 0, cfg.PlanLength),
		planLen:     cfg.PlanLength,
		classFrames: cfg.ClassFrames,
		rng:         rng,
		inc:         distuv.Uniform{Min: 0.1, Max: 0.2, Src: rng},
	}
	for i := range s.potentials {
		s.potentials[i] = s.inc.Rand()
	}
	for label := range cfg.ClassFrames {
		s.classLabels = append(s.classLabels, label)
	}
	slices.Sort(s.classLabels)

	return s, nil
}

// BeginEpoch resets the cursor and generates a fresh epoch plan of the
// configured length. It must not run concurrently with NextSlot.
//
// Unbalanced mode selects the lowest-potential frames, ties broken by frame
// order. Balanced mode selects planLen/classes+1 lowest-potential frames per
// non-ignored class among that class's eligible frames, then shuffles the
// concatenation and truncates. A non-ignored class with no eligible frames
// is a configuration error.
func (s *PotentialSampler) BeginEpoch(balanceClasses bool) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = 0
	s.plan = s.plan[:0]

	if !balanceClasses {
		inds := s.selectLowest(allFrames(len(s.potentials)), s.planLen)
		s.bumpPotentials(inds)
		for _, f := range inds {
			s.plan = append(s.plan, Slot{Frame: f, Label: NoLabel})
		}
		return s.planCopy(), nil
	}

	if len(s.classLabels) == 0 {
		return nil, fmt.Errorf("class-balanced sampling requested but no class frame lists were provided")
	}

	perClass := s.planLen/len(s.classLabels) + 1
	for _, label := range s.classLabels {
		eligible := s.classFrames[label]
		if len(eligible) == 0 {
			return nil, fmt.Errorf("class %d appears in no frame of the dataset; check the class statistics", label)
		}
		inds := s.selectLowest(eligible, perClass)
		s.bumpPotentials(inds)
		for _, f := range inds {
			s.plan = append(s.plan, Slot{Frame: f, Label: label})
		}
	}

	s.rng.Shuffle(len(s.plan), func(i, j int) {
		s.plan[i], s.plan[j] = s.plan[j], s.plan[i]
	})
	if len(s.plan) > s.planLen {
		s.plan = s.plan[:s.planLen]
	}
	return s.planCopy(), nil
}

// NextSlot hands out the next slot of the current epoch plan, advancing the
// shared cursor modulo plan length. This is the single serialisation point
// across all workers.
func (s *PotentialSampler) NextSlot() Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plan) == 0 {
		panic("sampler: NextSlot called before BeginEpoch")
	}
	slot := s.plan[s.cursor]
	s.cursor++
	if s.cursor >= len(s.plan) {
		s.cursor -= len(s.plan)
	}
	return slot
}

// PlanLength returns the configured number of slots per epoch.
func (s *PotentialSampler) PlanLength() int { return s.planLen }

// Potentials returns a snapshot of the potential array.
func (s *PotentialSampler) Potentials() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.potentials))
	copy(out, s.potentials)
	return out
}

// selectLowest picks n entries of candidates ordered by ascending potential,
// ties broken by candidate order. When n exceeds the candidate count the
// selection is padded by fresh random permutations of all candidates.
func (s *PotentialSampler) selectLowest(candidates []int, n int) []int {
	if n < len(candidates) {
		order := make([]int, len(candidates))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return s.potentials[candidates[order[a]]] < s.potentials[candidates[order[b]]]
		})
		out := make([]int, n)
		for i := 0; i < n; i++ {
			out[i] = candidates[order[i]]
		}
		return out
	}

	out := make([]int, 0, n)
	for len(out) < n {
		for _, p := range s.rng.Perm(len(candidates)) {
			if len(out) == n {
				break
			}
			out = append(out, candidates[p])
		}
	}
	return out
}

// bumpPotentials floor-rounds each drawn frame's potential up to the next
// integer, then adds a fresh increment in [0.1, 0.2). Each frame is bumped
// once even if it appears several times in the selection.
func (s *PotentialSampler) bumpPotentials(inds []int) {
	seen := make(map[int]bool, len(inds))
	for _, f := range inds {
		if seen[f] {
			continue
		}
		seen[f] = true
		s.potentials[f] = math.Ceil(s.potentials[f]) + s.inc.Rand()
	}
}

func (s *PotentialSampler) planCopy() []Slot {
	out := make([]Slot, len(s.plan))
	copy(out, s.plan)
	return out
}

func allFrames(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
