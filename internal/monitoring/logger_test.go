package monitoring

import (
	"testing"
	"time"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op logger that never calls back.
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestStageTimings(t *testing.T) {
	st := NewStageTimings()
	st.ObserveStage("subsample", 10*time.Millisecond)
	st.ObserveStage("subsample", 30*time.Millisecond)
	st.ObserveStage("augment", 5*time.Millisecond)

	if got := st.Mean("subsample"); got != 20*time.Millisecond {
		t.Errorf("mean subsample = %v, want 20ms", got)
	}
	if got := st.Mean("augment"); got != 5*time.Millisecond {
		t.Errorf("mean augment = %v, want 5ms", got)
	}
	if got := st.Mean("never"); got != 0 {
		t.Errorf("mean of unobserved stage = %v, want 0", got)
	}
	if got := len(st.Stages()); got != 2 {
		t.Errorf("stage count = %d, want 2", got)
	}
}
