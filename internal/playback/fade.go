package playback

import (
	"sync"
	"time"

	"pa-alarm/internal/domain"
)

// Ramp is a linear volume ramp over a fixed number of discrete steps.
type Ramp struct {
	From     float64
	To       float64
	Steps    int
	Interval time.Duration
}

// At returns the volume after step steps. Step 0 is From and step Steps is To.
func (r Ramp) At(step int) float64 {
	if r.Steps <= 0 || step >= r.Steps {
		return domain.ClampVolume(r.To)
	}
	if step <= 0 {
		return domain.ClampVolume(r.From)
	}
	v := r.From + (r.To-r.From)*float64(step)/float64(r.Steps)
	return domain.ClampVolume(v)
}

// Duration is the wall time the ramp takes to complete.
func (r Ramp) Duration() time.Duration {
	if r.Steps <= 0 {
		return 0
	}
	return time.Duration(r.Steps) * r.Interval
}

// Fade is a running ramp. A fade either completes, in which case its finish
// hook runs once, or is cancelled, in which case no further step is applied.
type Fade struct {
	ramp   Ramp
	dir    domain.FadeDirection
	cancel chan struct{}
	once   sync.Once
	done   chan struct{}
}

// stepFunc applies one ramp value. Returning false aborts the fade.
type stepFunc func(f *Fade, v float64) bool

// startFade launches the ramp on its own goroutine.
func startFade(r Ramp, dir domain.FadeDirection, step stepFunc, finish func(f *Fade)) *Fade {
	f := &Fade{
		ramp:   r,
		dir:    dir,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go f.run(step, finish)
	return f
}

func (f *Fade) run(step stepFunc, finish func(f *Fade)) {
	defer close(f.done)

	if f.ramp.Steps <= 0 {
		if step(f, f.ramp.To) {
			finish(f)
		}
		return
	}

	ticker := time.NewTicker(f.ramp.Interval)
	defer ticker.Stop()

	for i := 1; i <= f.ramp.Steps; i++ {
		select {
		case <-f.cancel:
			return
		case <-ticker.C:
		}
		if !step(f, f.ramp.At(i)) {
			return
		}
	}
	finish(f)
}

// Cancel stops the fade. It is safe to call any number of times from any
// goroutine.
func (f *Fade) Cancel() {
	if f == nil {
		return
	}
	f.once.Do(func() { close(f.cancel) })
}

// Done is closed once the fade goroutine has exited.
func (f *Fade) Done() <-chan struct{} {
	return f.done
}

// Direction reports whether this is a fade-in or a fade-out.
func (f *Fade) Direction() domain.FadeDirection {
	if f == nil {
		return domain.FadeNone
	}
	return f.dir
}
