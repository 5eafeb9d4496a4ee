package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/pointbatch/internal/cloud"
)

// MemoryFrame is one frame held by a MemorySource.
type MemoryFrame struct {
	Points    []cloud.Point
	Intensity []float32
	Labels    []int32
	Transform cloud.Rigid
}

// MemorySource is an in-memory FrameSource. Tests and dry runs load it with
// synthetic frames; it can also stand in for a slow source while tuning the
// pipeline. All methods are safe for concurrent readers once loading stops.
type MemorySource struct {
	mu           sync.RWMutex
	frames       map[[2]int]*MemoryFrame
	hasIntensity bool
}

// NewMemorySource returns an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{frames: make(map[[2]int]*MemoryFrame)}
}

// Add registers a frame under (sequence, frame). A zero Transform is
// replaced by the identity.
func (m *MemorySource) Add(sequence, frame int, f MemoryFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Transform == (cloud.Rigid{}) {
		f.Transform = cloud.Identity
	}
	if f.Intensity != nil {
		m.hasIntensity = true
	}
	m.frames[[2]int{sequence, frame}] = &f
}

// Load implements FrameSource.
func (m *MemorySource) Load(ctx context.Context, sequence, frame int) ([]cloud.Point, []float32, []int32, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.frames[[2]int{sequence, frame}]
	if !ok {
		return nil, nil, nil, fmt.Errorf("no frame (%d, %d) in memory source", sequence, frame)
	}
	return f.Points, f.Intensity, f.Labels, nil
}

// Transform implements FrameSource.
func (m *MemorySource) Transform(ctx context.Context, sequence, frame int) (cloud.Rigid, error) {
	if err := ctx.Err(); err != nil {
		return cloud.Rigid{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.frames[[2]int{sequence, frame}]
	if !ok {
		return cloud.Rigid{}, fmt.Errorf("no frame (%d, %d) in memory source", sequence, frame)
	}
	return f.Transform, nil
}

// HasIntensity implements FrameSource.
func (m *MemorySource) HasIntensity() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasIntensity
}
