package stats

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoad_AbsentKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Load("training", "single")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := &SplitStats{
		Split:     "training",
		FrameMode: "single",
		ClassFrames: map[int32][]int{
			1: {0, 2, 5},
			2: {1, 2},
			3: {4},
		},
		Proportions: map[int32]int64{1: 1200, 2: 94, 3: 7},
	}
	require.NoError(t, s.Save(want))

	got, ok, err := s.Load("training", "single")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	// A different key stays independent.
	_, ok, err = s.Load("training", "multi")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSave_ReplacesExisting(t *testing.T) {
	s := openTestStore(t)

	first := &SplitStats{
		Split: "validation", FrameMode: "single",
		ClassFrames: map[int32][]int{1: {0, 1, 2}},
		Proportions: map[int32]int64{1: 10},
	}
	require.NoError(t, s.Save(first))

	second := &SplitStats{
		Split: "validation", FrameMode: "single",
		ClassFrames: map[int32][]int{2: {7}},
		Proportions: map[int32]int64{2: 3},
	}
	require.NoError(t, s.Save(second))

	got, ok, err := s.Load("validation", "single")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("replacement (-want +got):\n%s", diff)
	}
}
