package usecase

import (
	"sync"
	"time"

	"pa-alarm/internal/domain"
)

// EventKind classifies what an Event reports.
type EventKind string

const (
	EventTick      EventKind = "tick"
	EventFired     EventKind = "fired"
	EventArmed     EventKind = "armed"
	EventDisarmed  EventKind = "disarmed"
	EventPlayback  EventKind = "playback"
	EventSchedules EventKind = "schedules"
	EventNotice    EventKind = "notice"
)

// Event is published to subscribers. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	At       time.Time
	Next     domain.NextEvent
	HasNext  bool
	Schedule domain.Schedule
	State    domain.PlaybackState
	Message  string
	Err      error
}

// broadcaster fans events out to subscribers. Slow subscribers lose events
// rather than stall the clock.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
