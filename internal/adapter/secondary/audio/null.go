package audio

import (
	"fmt"
	"sync"
	"time"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
)

// NullDevice is a silent device for hosts without sound output. Each clip
// "plays" for ClipLength and then reports its end.
type NullDevice struct {
	ClipLength time.Duration

	mu      sync.Mutex
	source  string
	volume  float64
	playing bool
	timer   *time.Timer
	gen     uint64
	onEnded func()
}

// NewNullDevice returns a device whose clips last clipLength.
func NewNullDevice(clipLength time.Duration) *NullDevice {
	return &NullDevice{ClipLength: clipLength}
}

func (d *NullDevice) Unlock() error { return nil }

func (d *NullDevice) SetSource(locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.source = locator
	return nil
}

func (d *NullDevice) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.source == "" {
		return fmt.Errorf("%w: no source selected", domain.ErrPlaybackUnsupported)
	}
	d.stopLocked()
	gen := d.gen
	d.playing = true
	d.timer = time.AfterFunc(d.ClipLength, func() { d.ended(gen) })
	logging.Debugf("audio: (silent) playing %s", d.source)
	return nil
}

func (d *NullDevice) Restart() error { return d.Play() }

func (d *NullDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *NullDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.playing
}

func (d *NullDevice) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = domain.ClampVolume(v)
	d.mu.Unlock()
}

func (d *NullDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *NullDevice) OnEnded(fn func()) {
	d.mu.Lock()
	d.onEnded = fn
	d.mu.Unlock()
}

func (d *NullDevice) OnError(func(error)) {}

func (d *NullDevice) stopLocked() {
	d.gen++
	d.playing = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *NullDevice) ended(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.playing = false
	fn := d.onEnded
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

var _ domain.AudioDevice = (*NullDevice)(nil)
