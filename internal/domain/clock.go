package domain

import "time"

// ClockState is the trigger clock's arming state and minute guard.
// Transitions are pure; the interactor owns the value.
type ClockState struct {
	Armed       bool
	LastMatched time.Time
}

// ShouldMatch reports whether the tick at now may run the matcher: the
// system is armed, now is the first second of a minute, and that minute has
// not been matched yet.
func (c ClockState) ShouldMatch(now time.Time) bool {
	if !c.Armed || now.Second() != 0 {
		return false
	}
	return !minuteOf(now).Equal(c.LastMatched)
}

// MarkMatched records now's minute. Callers mark before matching so a failing
// match cannot repeat within the minute.
func (c ClockState) MarkMatched(now time.Time) ClockState {
	c.LastMatched = minuteOf(now)
	return c
}

// Arm returns the armed state.
func (c ClockState) Arm() ClockState {
	c.Armed = true
	return c
}

// Disarm returns the disarmed state. The guard is kept.
func (c ClockState) Disarm() ClockState {
	c.Armed = false
	return c
}

// minuteOf truncates to the calendar minute in now's location, keeping the
// date so the same HH:MM on another day is a different minute.
func minuteOf(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
}
