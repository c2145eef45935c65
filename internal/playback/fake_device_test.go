package playback

import (
	"sync"

	"pa-alarm/internal/domain"
)

type volumeWrite struct {
	session int
	v       float64
}

// fakeDevice records every call the controller makes.
type fakeDevice struct {
	mu sync.Mutex

	sessions  int
	sources   []string
	plays     int
	restarts  int
	pauses    int
	paused    bool
	volume    float64
	writes    []volumeWrite
	playAtVol []float64

	sourceErr error
	playErr   error

	onEnded func()
	onError func(error)
}

func (d *fakeDevice) Unlock() error { return nil }

func (d *fakeDevice) SetSource(locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sourceErr != nil {
		return d.sourceErr
	}
	d.sessions++
	d.sources = append(d.sources, locator)
	d.paused = true
	return nil
}

func (d *fakeDevice) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playErr != nil {
		return d.playErr
	}
	d.plays++
	d.paused = false
	d.playAtVol = append(d.playAtVol, d.volume)
	return nil
}

func (d *fakeDevice) Restart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restarts++
	d.paused = false
	return nil
}

func (d *fakeDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauses++
	d.paused = true
}

func (d *fakeDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *fakeDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = v
	d.writes = append(d.writes, volumeWrite{session: d.sessions, v: v})
}

func (d *fakeDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *fakeDevice) OnEnded(fn func())      { d.onEnded = fn }
func (d *fakeDevice) OnError(fn func(error)) { d.onError = fn }

// end simulates the clip reaching its natural end.
func (d *fakeDevice) end() { d.onEnded() }

func (d *fakeDevice) snapshotWrites() []volumeWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]volumeWrite(nil), d.writes...)
}

func (d *fakeDevice) counts() (plays, restarts, pauses int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays, d.restarts, d.pauses
}

var _ domain.AudioDevice = (*fakeDevice)(nil)
