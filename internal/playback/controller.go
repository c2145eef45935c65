package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
)

// Options tunes the fade ramps.
type Options struct {
	FadeInSteps     int
	FadeInInterval  time.Duration
	FadeOutSteps    int
	FadeOutInterval time.Duration
}

// DefaultOptions gives a ~1s fade-in and a ~450ms fade-out.
func DefaultOptions() Options {
	return Options{
		FadeInSteps:     20,
		FadeInInterval:  50 * time.Millisecond,
		FadeOutSteps:    15,
		FadeOutInterval: 30 * time.Millisecond,
	}
}

type session struct {
	sound       domain.Sound
	loopsPlayed int
	loopsTarget int
}

// Controller owns the audio device and runs the playback state machine:
//
//	Idle      --Play-->            FadingIn --ramp done--> Playing
//	FadingIn/Playing --end, loops left--> restart clip, same state
//	FadingIn/Playing --end, last loop-->  FadingOut --ramp done--> Idle
//	any       --Stop-->            FadingOut --> Idle (Idle at once if silent)
//
// Play and Stop are serialized; at most one session and one fade exist.
type Controller struct {
	device  domain.AudioDevice
	catalog domain.Catalog
	opts    Options

	// opMu serializes Play and Stop so a preempting Play awaits the previous
	// session's fade-out before starting its own.
	opMu sync.Mutex

	mu      sync.Mutex
	state   domain.PlaybackState
	session session
	fade    *Fade
	target  float64
	idle    chan struct{}

	onTransition func(from, to domain.PlaybackState)
	onError      func(error)
}

// NewController binds the controller to device. The device's ended and error
// callbacks are taken over by the controller.
func NewController(device domain.AudioDevice, catalog domain.Catalog, opts Options) *Controller {
	idle := make(chan struct{})
	close(idle)
	c := &Controller{
		device:  device,
		catalog: catalog,
		opts:    opts,
		state:   domain.StateIdle,
		target:  domain.DefaultVolume,
		idle:    idle,
	}
	device.OnEnded(c.handleEnded)
	device.OnError(c.handleDeviceError)
	return c
}

// OnTransition registers a hook called on every state change. It runs with
// the controller lock held and must not call back into the controller.
func (c *Controller) OnTransition(fn func(from, to domain.PlaybackState)) {
	c.mu.Lock()
	c.onTransition = fn
	c.mu.Unlock()
}

// OnError registers a hook for asynchronous device failures.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Play tears down any active session and starts soundID for loops plays.
// It returns once the new clip has started or the device refused it.
func (c *Controller) Play(ctx context.Context, soundID domain.SoundID, loops int) error {
	sound, ok := c.catalog.Lookup(soundID)
	if !ok {
		return &domain.ValidationError{Field: "soundId", Reason: fmt.Sprintf("unknown sound %q", soundID)}
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.stopAndWait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.device.SetSource(sound.Locator); err != nil {
		return classify(err)
	}
	c.device.SetVolume(0)
	if err := c.device.Play(); err != nil {
		c.device.Pause()
		return classify(err)
	}

	c.session = session{sound: sound, loopsPlayed: 1, loopsTarget: domain.ClampLoop(loops)}
	c.idle = make(chan struct{})
	c.setStateLocked(domain.StateFadingIn)

	ramp := Ramp{From: 0, To: c.target, Steps: c.opts.FadeInSteps, Interval: c.opts.FadeInInterval}
	c.fade = startFade(ramp, domain.FadeIn, c.applyStep, c.finishFadeIn)
	logging.Infof("playback: %s started (%d loop(s))", sound.ID, c.session.loopsTarget)
	return nil
}

// Stop fades out the active session and waits until the controller is idle.
// A silent or paused device is stopped at once.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stopAndWait(ctx)
}

// WaitIdle blocks until no session is active.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetVolume changes the target volume. A session that is steadily playing
// picks it up at once; ramps in flight keep their own endpoints.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = domain.ClampVolume(v)
	if c.state == domain.StatePlaying && c.fade == nil {
		c.device.SetVolume(c.target)
	}
}

// Volume returns the target volume.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Status returns a snapshot of the current session.
func (c *Controller) Status() domain.PlaybackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := domain.PlaybackStatus{
		State:        c.state,
		Fade:         c.fade.Direction(),
		TargetVolume: c.target,
	}
	if c.state != domain.StateIdle {
		st.SoundID = c.session.sound.ID
		st.LoopsPlayed = c.session.loopsPlayed
		st.LoopsTarget = c.session.loopsTarget
		st.Volume = c.device.Volume()
	}
	return st
}

// stopAndWait drives the controller to Idle. Callers hold opMu.
func (c *Controller) stopAndWait(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch c.state {
		case domain.StateIdle:
			c.mu.Unlock()
			return nil
		case domain.StateFadingIn, domain.StatePlaying:
			if c.device.Paused() || c.device.Volume() <= 0 {
				c.haltLocked()
				c.mu.Unlock()
				return nil
			}
			c.beginFadeOutLocked()
		}
		done := c.fade.Done()
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) beginFadeOutLocked() {
	c.fade.Cancel()
	ramp := Ramp{From: c.device.Volume(), To: 0, Steps: c.opts.FadeOutSteps, Interval: c.opts.FadeOutInterval}
	c.setStateLocked(domain.StateFadingOut)
	c.fade = startFade(ramp, domain.FadeOut, c.applyStep, c.finishFadeOut)
}

// haltLocked stops without a ramp.
func (c *Controller) haltLocked() {
	c.fade.Cancel()
	c.fade = nil
	c.device.Pause()
	c.device.SetVolume(0)
	c.session = session{}
	c.setStateLocked(domain.StateIdle)
}

func (c *Controller) applyStep(f *Fade, v float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fade != f {
		return false
	}
	c.device.SetVolume(v)
	logging.Tracef("playback: fade %s step %.3f", f.Direction(), v)
	return true
}

func (c *Controller) finishFadeIn(f *Fade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fade != f {
		return
	}
	c.fade = nil
	// the target may have moved while ramping
	c.device.SetVolume(c.target)
	c.setStateLocked(domain.StatePlaying)
}

func (c *Controller) finishFadeOut(f *Fade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fade != f {
		return
	}
	c.haltLocked()
}

// handleEnded is the natural end-of-clip transition.
func (c *Controller) handleEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.StateIdle, domain.StateFadingOut:
		return
	}
	if c.session.loopsPlayed < c.session.loopsTarget {
		if err := c.device.Restart(); err != nil {
			logging.Warnf("playback: restart %s: %v", c.session.sound.ID, err)
			c.haltLocked()
			c.reportLocked(classify(err))
			return
		}
		c.session.loopsPlayed++
		logging.Debugf("playback: %s loop %d/%d", c.session.sound.ID, c.session.loopsPlayed, c.session.loopsTarget)
		return
	}
	c.beginFadeOutLocked()
}

func (c *Controller) handleDeviceError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateIdle {
		return
	}
	logging.Warnf("playback: device error: %v", err)
	c.haltLocked()
	c.reportLocked(classify(err))
}

func (c *Controller) reportLocked(err error) {
	if c.onError != nil {
		go c.onError(err)
	}
}

func (c *Controller) setStateLocked(next domain.PlaybackState) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	if next == domain.StateIdle {
		close(c.idle)
	}
	logging.Debugf("playback: %s -> %s", prev, next)
	if c.onTransition != nil {
		c.onTransition(prev, next)
	}
}

// classify folds device failures into the two playback error kinds.
func classify(err error) error {
	if errors.Is(err, domain.ErrPlaybackDenied) || errors.Is(err, domain.ErrPlaybackUnsupported) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPlaybackUnsupported, err)
}
