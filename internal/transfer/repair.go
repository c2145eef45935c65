package transfer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pa-alarm/internal/domain"
)

var defaultTime = domain.TimeOfDay{Hour: 8}

// repair turns one raw entry into a schedule. Missing or mistyped fields get
// the default value; a time or sound that is present but wrong, or a day
// list with no valid weekday, discards the entry.
func repair(raw json.RawMessage, svc *domain.ScheduleService) (domain.Schedule, []string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.Schedule{}, nil, errors.New("not an object")
	}

	var fixes []string
	sch := svc.NewDefault()

	if id, ok := stringField(fields, "id"); ok && id != "" {
		if _, err := uuid.Parse(id); err == nil {
			sch.ID = id
		} else {
			fixes = append(fixes, "id regenerated")
		}
	}

	switch s, ok := stringField(fields, "time"); {
	case !ok || s == "":
		sch.Time = defaultTime
		fixes = append(fixes, "time defaulted")
	default:
		t, err := domain.ParseTimeOfDay(s)
		if err != nil {
			return domain.Schedule{}, nil, err
		}
		sch.Time = t
	}

	switch s, ok := stringField(fields, "soundId"); {
	case !ok || s == "":
		sch.SoundID = svc.Catalog().First().ID
		fixes = append(fixes, "sound defaulted")
	default:
		if _, found := svc.Catalog().Lookup(domain.SoundID(s)); !found {
			return domain.Schedule{}, nil, &domain.ValidationError{Field: "soundId", Reason: fmt.Sprintf("unknown sound %q", s)}
		}
		sch.SoundID = domain.SoundID(s)
	}

	days, dayFixes, err := repairDays(fields["days"])
	if err != nil {
		return domain.Schedule{}, nil, err
	}
	sch.Days = days
	fixes = append(fixes, dayFixes...)

	var enabled bool
	if raw, ok := fields["enabled"]; ok && string(raw) != "null" && json.Unmarshal(raw, &enabled) == nil {
		sch.Enabled = enabled
	} else {
		sch.Enabled = true
		fixes = append(fixes, "enabled defaulted")
	}

	loop, ok := numberField(fields, "loopCount")
	if !ok {
		loop, ok = numberField(fields, "loop")
	}
	switch {
	case !ok:
		sch.LoopCount = domain.MinLoopCount
	case int(loop) != domain.ClampLoop(int(loop)):
		sch.LoopCount = domain.ClampLoop(int(loop))
		fixes = append(fixes, "loop count clamped")
	default:
		sch.LoopCount = int(loop)
	}

	if err := svc.Validate(sch); err != nil {
		return domain.Schedule{}, nil, err
	}
	return sch, fixes, nil
}

func repairDays(raw json.RawMessage) (domain.DaySet, []string, error) {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil || items == nil {
		return domain.Weekdays, []string{"days defaulted"}, nil
	}
	var set domain.DaySet
	var fixes []string
	for _, item := range items {
		var d float64
		if json.Unmarshal(item, &d) != nil || d != float64(int(d)) || d < 0 || d > 6 {
			fixes = append(fixes, fmt.Sprintf("day %s ignored", item))
			continue
		}
		day, _ := domain.NewDaySet(int(d))
		if set&day != 0 {
			fixes = append(fixes, fmt.Sprintf("duplicate day %d", int(d)))
		}
		set |= day
	}
	if set.Empty() {
		return 0, nil, &domain.ValidationError{Field: "days", Reason: "no valid weekday"}
	}
	return set, fixes, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}
