package usecase

import (
	"context"
	"sync"

	"pa-alarm/internal/domain"
)

type fakeKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	sets   int
	setErr error
	getErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (k *fakeKV) Get(key string) ([]byte, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.getErr != nil {
		return nil, false, k.getErr
	}
	v, ok := k.data[key]
	return v, ok, nil
}

func (k *fakeKV) Set(key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sets++
	if k.setErr != nil {
		return k.setErr
	}
	k.data[key] = append([]byte(nil), value...)
	return nil
}

func (k *fakeKV) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

func (k *fakeKV) value(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return string(v), ok
}

type playCall struct {
	sound domain.SoundID
	loops int
}

type fakePlayer struct {
	mu      sync.Mutex
	plays   []playCall
	stops   int
	volume  float64
	playErr error
	onError func(error)
	// hold runs at the start of Play, outside the fake's lock.
	hold func()
}

func (p *fakePlayer) Play(_ context.Context, sound domain.SoundID, loops int) error {
	if p.hold != nil {
		p.hold()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.plays = append(p.plays, playCall{sound, loops})
	return nil
}

func (p *fakePlayer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *fakePlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayer) Status() domain.PlaybackStatus {
	return domain.PlaybackStatus{State: domain.StateIdle, TargetVolume: p.Volume()}
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakePlayer) OnError(fn func(error)) { p.onError = fn }

func (p *fakePlayer) calls() []playCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playCall(nil), p.plays...)
}

type fakeUnlocker struct{ err error }

func (u *fakeUnlocker) Unlock() error { return u.err }

type fakeLock struct {
	mu       sync.Mutex
	released int
}

func (l *fakeLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

type fakePower struct {
	lock *fakeLock
	err  error
}

func (p *fakePower) Acquire(string) (domain.PowerLock, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.lock, nil
}
