package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Loop count bounds.
const (
	MinLoopCount = 1
	MaxLoopCount = 10
)

var timePattern = regexp.MustCompile(`^([0-1]\d|2[0-3]):[0-5]\d$`)

// ParseTimeOfDay parses an HH:MM string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if !timePattern.MatchString(s) {
		return TimeOfDay{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not HH:MM", s)}
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// MustTimeOfDay is ParseTimeOfDay for constants.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ClampLoop forces n into [MinLoopCount, MaxLoopCount].
func ClampLoop(n int) int {
	if n < MinLoopCount {
		return MinLoopCount
	}
	if n > MaxLoopCount {
		return MaxLoopCount
	}
	return n
}

// ClampVolume forces v into [0, 1].
func ClampVolume(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SchedulePatch carries field-level updates; nil fields are left untouched.
type SchedulePatch struct {
	Time      *string
	SoundID   *SoundID
	Days      []int
	Enabled   *bool
	LoopCount *int
}

// ScheduleService holds the pure rules for schedules.
// It has no side effects and no dependencies on external concerns.
type ScheduleService struct {
	catalog Catalog
}

// NewScheduleService creates a service bound to catalog.
func NewScheduleService(catalog Catalog) *ScheduleService {
	return &ScheduleService{catalog: catalog}
}

// Catalog returns the sound catalog the service validates against.
func (s *ScheduleService) Catalog() Catalog {
	return s.catalog
}

// NewDefault returns {08:00, catalog[0], Mon–Fri, enabled, loop=1} without an id.
func (s *ScheduleService) NewDefault() Schedule {
	return Schedule{
		Time:      TimeOfDay{Hour: 8},
		SoundID:   s.catalog.First().ID,
		Days:      Weekdays,
		Enabled:   true,
		LoopCount: 1,
	}
}

// BuiltinSchedules returns the set used when nothing has been stored.
func (s *ScheduleService) BuiltinSchedules() []Schedule {
	morning := s.NewDefault()
	morning.SoundID = "chime"
	evening := s.NewDefault()
	evening.Time = TimeOfDay{Hour: 17}
	evening.SoundID = "alarm"
	out := []Schedule{morning, evening}
	for i := range out {
		if _, ok := s.catalog.Lookup(out[i].SoundID); !ok {
			out[i].SoundID = s.catalog.First().ID
		}
	}
	return out
}

// Validate checks every invariant of a schedule.
func (s *ScheduleService) Validate(sch Schedule) error {
	if sch.Time.Hour < 0 || sch.Time.Hour > 23 || sch.Time.Minute < 0 || sch.Time.Minute > 59 {
		return &ValidationError{Field: "time", Reason: fmt.Sprintf("%s out of range", sch.Time)}
	}
	if _, ok := s.catalog.Lookup(sch.SoundID); !ok {
		return &ValidationError{Field: "soundId", Reason: fmt.Sprintf("unknown sound %q", sch.SoundID)}
	}
	if sch.Days.Empty() {
		return &ValidationError{Field: "days", Reason: "at least one day is required"}
	}
	if sch.LoopCount < MinLoopCount || sch.LoopCount > MaxLoopCount {
		return &ValidationError{Field: "loopCount", Reason: fmt.Sprintf("%d outside %d-%d", sch.LoopCount, MinLoopCount, MaxLoopCount)}
	}
	return nil
}

// Normalize clamps the loop count and validates the rest.
func (s *ScheduleService) Normalize(sch Schedule) (Schedule, error) {
	sch.LoopCount = ClampLoop(sch.LoopCount)
	if err := s.Validate(sch); err != nil {
		return Schedule{}, err
	}
	return sch, nil
}

// ApplyPatch returns sch with the patch applied. Each field is validated (or
// clamped) on its own; on error sch is returned untouched.
func (s *ScheduleService) ApplyPatch(sch Schedule, p SchedulePatch) (Schedule, error) {
	out := sch
	if p.Time != nil {
		t, err := ParseTimeOfDay(*p.Time)
		if err != nil {
			return sch, err
		}
		out.Time = t
	}
	if p.SoundID != nil {
		if _, ok := s.catalog.Lookup(*p.SoundID); !ok {
			return sch, &ValidationError{Field: "soundId", Reason: fmt.Sprintf("unknown sound %q", *p.SoundID)}
		}
		out.SoundID = *p.SoundID
	}
	if p.Days != nil {
		days, err := NewDaySet(p.Days...)
		if err != nil {
			return sch, err
		}
		if days.Empty() {
			return sch, &ValidationError{Field: "days", Reason: "at least one day is required"}
		}
		out.Days = days
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.LoopCount != nil {
		out.LoopCount = ClampLoop(*p.LoopCount)
	}
	return out, nil
}

// ToggleDay adds or removes day. Removing the last day is rejected.
func (s *ScheduleService) ToggleDay(sch Schedule, day time.Weekday) (Schedule, error) {
	if day < time.Sunday || day > time.Saturday {
		return sch, &ValidationError{Field: "days", Reason: fmt.Sprintf("weekday %d out of range 0-6", day)}
	}
	if sch.Days.Contains(day) {
		next := sch.Days.Without(day)
		if next.Empty() {
			return sch, &ValidationError{Field: "days", Reason: "cannot remove the last day"}
		}
		sch.Days = next
		return sch, nil
	}
	sch.Days = sch.Days.With(day)
	return sch, nil
}
