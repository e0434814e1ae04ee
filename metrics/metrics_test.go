package metrics

import (
	"testing"
	"time"
)

func TestTimerDurationIsPositive(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	if timer.Duration() <= 0 {
		t.Fatalf("expected positive duration, got %v", timer.Duration())
	}
}

func TestHandlerNotNil(t *testing.T) {
	if Handler() == nil {
		t.Fatal("expected a non-nil handler")
	}
}

func TestObserveDurationVecDoesNotPanic(t *testing.T) {
	timer := NewTimer()
	timer.ObserveDurationVec(BackendOpDuration, "memory", "add")
}
