package domain

import "time"

const (
	secondsPerDay  = 86400
	secondsPerWeek = 7 * secondsPerDay
)

// NextEvent is the earliest upcoming firing.
type NextEvent struct {
	Schedule     Schedule
	SecondsUntil int64
	At           time.Time
}

// ComputeNext finds the earliest future (weekday, time) among schedules.
// Callers pass only enabled schedules. A slot earlier today, or exactly now,
// is deferred to the same weekday next week, so 0 < SecondsUntil <= one week.
// Ties keep the first candidate in slice order, then weekday order.
func ComputeNext(now time.Time, schedules []Schedule) (NextEvent, bool) {
	nowSec := int64(now.Hour())*3600 + int64(now.Minute())*60 + int64(now.Second())
	today := int(now.Weekday())

	var (
		best      NextEvent
		bestDelta int64
		found     bool
	)
	for _, sch := range schedules {
		tod := sch.Time.Seconds()
		for _, d := range sch.Days.Days() {
			offset := (int(d) - today + 7) % 7
			if offset == 0 && tod <= nowSec {
				offset = 7
			}
			delta := int64(offset)*secondsPerDay + tod - nowSec
			if delta <= 0 {
				continue
			}
			if !found || delta < bestDelta {
				found = true
				bestDelta = delta
				best = NextEvent{
					Schedule:     sch,
					SecondsUntil: delta,
					At: time.Date(now.Year(), now.Month(), now.Day()+offset,
						sch.Time.Hour, sch.Time.Minute, 0, 0, now.Location()),
				}
			}
		}
	}
	return best, found
}
