package audio

import (
	"fmt"
	"math"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"github.com/spf13/afero"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
)

// SampleRate is the output rate every clip is resampled to.
const SampleRate = beep.SampleRate(44100)

// BeepDevice plays catalog clips through the system speaker.
// Clips are decoded once and kept in memory.
type BeepDevice struct {
	fs   afero.Fs
	base string

	mu       sync.Mutex
	ready    bool
	buffers  map[string]*beep.Buffer
	current  *beep.Buffer
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	volume   float64
	finished bool
	gen      uint64

	onEnded func()
}

// NewBeepDevice loads clips from base on fs.
func NewBeepDevice(fs afero.Fs, base string) *BeepDevice {
	return &BeepDevice{
		fs:      fs,
		base:    base,
		buffers: make(map[string]*beep.Buffer),
	}
}

// Unlock initialises the speaker. Failing to open the output means playback
// is denied until a later unlock succeeds.
func (d *BeepDevice) Unlock() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if err := speaker.Init(SampleRate, SampleRate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPlaybackDenied, err)
	}
	d.ready = true
	logging.Infof("audio: speaker ready at %d Hz", SampleRate)
	return nil
}

// SetSource selects the clip for the next Play.
func (d *BeepDevice) SetSource(locator string) error {
	buf, err := d.load(locator)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.current = buf
	return nil
}

// Play starts the current clip from the beginning.
func (d *BeepDevice) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return fmt.Errorf("%w: audio output not unlocked", domain.ErrPlaybackDenied)
	}
	if d.current == nil {
		return fmt.Errorf("%w: no source selected", domain.ErrPlaybackUnsupported)
	}
	d.startLocked()
	return nil
}

// Restart is Play for the clip already selected.
func (d *BeepDevice) Restart() error {
	return d.Play()
}

func (d *BeepDevice) startLocked() {
	d.gen++
	gen := d.gen
	// the callback runs on the speaker goroutine with the speaker locked
	stream := beep.Seq(d.current.Streamer(0, d.current.Len()), beep.Callback(func() {
		go d.ended(gen)
	}))
	d.vol = &effects.Volume{Streamer: stream, Base: 2}
	applyVolume(d.vol, d.volume)
	d.ctrl = &beep.Ctrl{Streamer: d.vol}
	d.finished = false

	speaker.Clear()
	speaker.Play(d.ctrl)
}

func (d *BeepDevice) stopLocked() {
	d.gen++
	if d.ready {
		speaker.Clear()
	}
	d.ctrl = nil
	d.vol = nil
}

func (d *BeepDevice) ended(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.finished = true
	fn := d.onEnded
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Pause halts output. Pending end-of-clip notifications are dropped.
func (d *BeepDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

// Paused reports whether nothing is audible.
func (d *BeepDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctrl == nil || d.finished {
		return true
	}
	speaker.Lock()
	defer speaker.Unlock()
	return d.ctrl.Paused
}

// SetVolume sets the linear output level in [0, 1].
func (d *BeepDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = domain.ClampVolume(v)
	if d.vol == nil {
		return
	}
	speaker.Lock()
	applyVolume(d.vol, d.volume)
	speaker.Unlock()
}

// Volume returns the linear output level.
func (d *BeepDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *BeepDevice) OnEnded(fn func()) {
	d.mu.Lock()
	d.onEnded = fn
	d.mu.Unlock()
}

// OnError is a no-op: clips are decoded up front and play from memory, so
// nothing fails after Play has returned.
func (d *BeepDevice) OnError(func(error)) {}

// applyVolume maps a linear level onto beep's exponential volume.
func applyVolume(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

// load decodes locator once and caches the resampled PCM.
func (d *BeepDevice) load(locator string) (*beep.Buffer, error) {
	d.mu.Lock()
	if buf, ok := d.buffers[locator]; ok {
		d.mu.Unlock()
		return buf, nil
	}
	d.mu.Unlock()

	name := filepath.Join(d.base, locator)
	f, err := d.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrPlaybackUnsupported, name, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(path.Ext(locator)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: unknown format %q", domain.ErrPlaybackUnsupported, path.Ext(locator))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrPlaybackUnsupported, name, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Resample(4, format.SampleRate, SampleRate, streamer))
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrPlaybackUnsupported, name, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrPlaybackUnsupported, name)
	}
	logging.Debugf("audio: decoded %s (%s)", name, SampleRate.D(buf.Len()).Round(time.Millisecond))

	d.mu.Lock()
	d.buffers[locator] = buf
	d.mu.Unlock()
	return buf, nil
}

// Preload decodes every catalog clip so format problems surface at startup.
func (d *BeepDevice) Preload(catalog domain.Catalog) error {
	for _, s := range catalog.All() {
		if _, err := d.load(s.Locator); err != nil {
			return fmt.Errorf("sound %s: %w", s.ID, err)
		}
	}
	return nil
}

var _ domain.AudioDevice = (*BeepDevice)(nil)
