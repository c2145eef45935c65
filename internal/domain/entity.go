package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String formats the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int64 {
	return int64(t.Hour)*3600 + int64(t.Minute)*60
}

// DaySet is a set of weekdays stored as a bitmask (bit 0 = Sunday).
type DaySet uint8

const allDays DaySet = 1<<7 - 1

// Weekdays is Monday to Friday.
const Weekdays DaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday

// NewDaySet builds a set from weekday indices. Duplicates collapse.
func NewDaySet(days ...int) (DaySet, error) {
	var s DaySet
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, &ValidationError{Field: "days", Reason: fmt.Sprintf("weekday %d out of range 0-6", d)}
		}
		s |= 1 << uint(d)
	}
	return s, nil
}

// Contains reports whether d is in the set.
func (s DaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// With returns the set with d added.
func (s DaySet) With(d time.Weekday) DaySet { return (s | 1<<uint(d)) & allDays }

// Without returns the set with d removed.
func (s DaySet) Without(d time.Weekday) DaySet { return s &^ (1 << uint(d)) }

// Len returns the number of days in the set.
func (s DaySet) Len() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Contains(d) {
			n++
		}
	}
	return n
}

// Empty reports whether no day is set.
func (s DaySet) Empty() bool { return s&allDays == 0 }

// Days returns the weekdays in ascending order.
func (s DaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// Ints returns the weekday indices in ascending order.
func (s DaySet) Ints() []int {
	days := s.Days()
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	sort.Ints(out)
	return out
}

func (s DaySet) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

// Schedule is one recurring alarm rule.
type Schedule struct {
	ID        string
	Time      TimeOfDay
	SoundID   SoundID
	Days      DaySet
	Enabled   bool
	LoopCount int
}

// CronExpr renders the schedule as a five-field cron expression.
func (s Schedule) CronExpr() string {
	days := s.Days.Ints()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%d %d * * %s", s.Time.Minute, s.Time.Hour, strings.Join(parts, ","))
}

// Settings holds user preferences that travel with the schedules.
type Settings struct {
	Volume float64
}

// DefaultVolume is used when no volume has been stored.
const DefaultVolume = 0.8

// DefaultSettings returns the initial settings.
func DefaultSettings() Settings {
	return Settings{Volume: DefaultVolume}
}

// PlaybackState is the state of the playback controller.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateFadingIn
	StatePlaying
	StateFadingOut
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFadingIn:
		return "fading-in"
	case StatePlaying:
		return "playing"
	case StateFadingOut:
		return "fading-out"
	default:
		return "unknown"
	}
}

// FadeDirection tells which ramp, if any, is in flight.
type FadeDirection int

const (
	FadeNone FadeDirection = iota
	FadeIn
	FadeOut
)

func (f FadeDirection) String() string {
	switch f {
	case FadeIn:
		return "in"
	case FadeOut:
		return "out"
	default:
		return "none"
	}
}

// PlaybackStatus is a point-in-time view of the playback session.
type PlaybackStatus struct {
	State        PlaybackState
	SoundID      SoundID
	LoopsPlayed  int
	LoopsTarget  int
	Fade         FadeDirection
	Volume       float64
	TargetVolume float64
}

// Snapshot represents a complete view of the alarm system.
type Snapshot struct {
	Now       time.Time
	Armed     bool
	Next      NextEvent
	HasNext   bool
	Playback  PlaybackStatus
	Settings  Settings
	Schedules []Schedule
	Degraded  bool
	LastFired time.Time
	LastError error
}
