package playback

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"pa-alarm/internal/domain"
)

func TestRamp_At(t *testing.T) {
	r := Ramp{From: 0, To: 0.8, Steps: 20, Interval: 50 * time.Millisecond}
	if r.At(0) != 0 {
		t.Fatalf("At(0) = %v", r.At(0))
	}
	if got := r.At(10); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("At(10) = %v, want 0.4", got)
	}
	if r.At(20) != 0.8 || r.At(99) != 0.8 {
		t.Fatalf("end value = %v", r.At(20))
	}
	if r.Duration() != time.Second {
		t.Fatalf("Duration = %v", r.Duration())
	}

	down := Ramp{From: 0.6, To: 0, Steps: 15}
	prev := down.At(0)
	for i := 1; i <= 15; i++ {
		v := down.At(i)
		if v > prev {
			t.Fatalf("step %d rose %v -> %v", i, prev, v)
		}
		prev = v
	}
	if prev != 0 {
		t.Fatalf("fade-out ends at %v", prev)
	}
}

func TestFade_CompletesAndFinishesOnce(t *testing.T) {
	var steps, finishes atomic.Int32
	f := startFade(Ramp{From: 0, To: 1, Steps: 5, Interval: time.Millisecond}, domain.FadeIn,
		func(*Fade, float64) bool { steps.Add(1); return true },
		func(*Fade) { finishes.Add(1) })

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("fade did not complete")
	}
	if steps.Load() != 5 || finishes.Load() != 1 {
		t.Fatalf("steps=%d finishes=%d", steps.Load(), finishes.Load())
	}
	f.Cancel()
	f.Cancel()
}

func TestFade_CancelIsIdempotentAndSkipsFinish(t *testing.T) {
	var finishes atomic.Int32
	f := startFade(Ramp{From: 1, To: 0, Steps: 10, Interval: time.Hour}, domain.FadeOut,
		func(*Fade, float64) bool { return true },
		func(*Fade) { finishes.Add(1) })

	f.Cancel()
	f.Cancel()
	<-f.Done()
	f.Cancel()
	if finishes.Load() != 0 {
		t.Fatal("cancelled fade ran its finish hook")
	}

	var nilFade *Fade
	nilFade.Cancel()
	if nilFade.Direction() != domain.FadeNone {
		t.Fatal("nil fade should report no direction")
	}
}

func TestFade_StepAbort(t *testing.T) {
	var steps atomic.Int32
	f := startFade(Ramp{From: 0, To: 1, Steps: 10, Interval: time.Millisecond}, domain.FadeIn,
		func(*Fade, float64) bool { return steps.Add(1) < 3 },
		func(*Fade) { t.Error("aborted fade finished") })
	<-f.Done()
	if steps.Load() != 3 {
		t.Fatalf("steps = %d, want 3", steps.Load())
	}
}
