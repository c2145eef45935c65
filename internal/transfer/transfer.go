// Package transfer converts schedules to and from their JSON form, both for
// the persisted list and for export files.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"pa-alarm/internal/domain"
)

// Version is written into every export envelope.
const Version = "3.1"

// Record is the wire shape of one schedule.
type Record struct {
	ID        string `json:"id,omitempty"`
	Time      string `json:"time"`
	SoundID   string `json:"soundId"`
	Days      []int  `json:"days"`
	Enabled   bool   `json:"enabled"`
	LoopCount int    `json:"loopCount"`
}

// SettingsRecord is the wire shape of the settings block.
type SettingsRecord struct {
	Volume float64 `json:"volume"`
}

// Envelope is the export file layout.
type Envelope struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	Schedules  []Record       `json:"schedules"`
	Settings   SettingsRecord `json:"settings"`
}

// FromSchedule converts a domain schedule.
func FromSchedule(s domain.Schedule) Record {
	return Record{
		ID:        s.ID,
		Time:      s.Time.String(),
		SoundID:   string(s.SoundID),
		Days:      s.Days.Ints(),
		Enabled:   s.Enabled,
		LoopCount: s.LoopCount,
	}
}

func fromSchedules(schedules []domain.Schedule) []Record {
	out := make([]Record, len(schedules))
	for i, s := range schedules {
		out[i] = FromSchedule(s)
	}
	return out
}

// Export renders the envelope for schedules and settings.
func Export(schedules []domain.Schedule, settings domain.Settings, now time.Time) ([]byte, error) {
	env := Envelope{
		Version:    Version,
		ExportedAt: now.UTC().Truncate(time.Second),
		Schedules:  fromSchedules(schedules),
		Settings:   SettingsRecord{Volume: settings.Volume},
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// EncodeSchedules renders the persisted form: a bare JSON array.
func EncodeSchedules(schedules []domain.Schedule) ([]byte, error) {
	data, err := json.Marshal(fromSchedules(schedules))
	if err != nil {
		return nil, fmt.Errorf("marshal schedules: %w", err)
	}
	return data, nil
}

// Result is the outcome of decoding a schedule list.
type Result struct {
	Schedules []domain.Schedule
	// Volume is set when the input carried a settings block.
	Volume *float64
	// Repaired counts entries that were kept after filling in defaults.
	Repaired int
	// Discarded counts entries that could not be used.
	Discarded int
	// Problems lists every repaired or discarded entry.
	Problems *multierror.Error
}

// Import decodes an export file or a legacy bare array. Entries are repaired
// or dropped one by one; a file with the wrong shape or without a single
// usable entry is rejected with domain.ErrImportMalformed.
func Import(data []byte, svc *domain.ScheduleService) (Result, error) {
	res, err := decode(data, svc)
	if err != nil {
		return res, err
	}
	if len(res.Schedules) == 0 {
		if res.Problems != nil {
			return res, fmt.Errorf("%w: no valid schedule: %v", domain.ErrImportMalformed, res.Problems)
		}
		return res, fmt.Errorf("%w: no schedules", domain.ErrImportMalformed)
	}
	return res, nil
}

// DecodeSchedules reads the persisted form with the same repair rules as
// Import. An empty list is valid here.
func DecodeSchedules(data []byte, svc *domain.ScheduleService) (Result, error) {
	return decode(data, svc)
}

func decode(data []byte, svc *domain.ScheduleService) (Result, error) {
	var res Result

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return res, fmt.Errorf("%w: empty input", domain.ErrImportMalformed)
	}

	var entries []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return res, fmt.Errorf("%w: %v", domain.ErrImportMalformed, err)
		}
	case '{':
		var env struct {
			Schedules json.RawMessage `json:"schedules"`
			Settings  *struct {
				Volume *float64 `json:"volume"`
			} `json:"settings"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return res, fmt.Errorf("%w: %v", domain.ErrImportMalformed, err)
		}
		if len(env.Schedules) == 0 || env.Schedules[0] != '[' {
			return res, fmt.Errorf("%w: schedules must be an array", domain.ErrImportMalformed)
		}
		if err := json.Unmarshal(env.Schedules, &entries); err != nil {
			return res, fmt.Errorf("%w: %v", domain.ErrImportMalformed, err)
		}
		if env.Settings != nil && env.Settings.Volume != nil {
			v := domain.ClampVolume(*env.Settings.Volume)
			res.Volume = &v
		}
	default:
		return res, fmt.Errorf("%w: expected an array or an object", domain.ErrImportMalformed)
	}

	seen := make(map[string]bool, len(entries))
	for i, raw := range entries {
		sch, fixes, err := repair(raw, svc)
		if err != nil {
			res.Discarded++
			res.Problems = multierror.Append(res.Problems, fmt.Errorf("entry %d dropped: %w", i, err))
			continue
		}
		if sch.ID != "" && seen[sch.ID] {
			sch.ID = ""
			fixes = append(fixes, "duplicate id")
		}
		if sch.ID != "" {
			seen[sch.ID] = true
		}
		if len(fixes) > 0 {
			res.Repaired++
			res.Problems = multierror.Append(res.Problems, fmt.Errorf("entry %d repaired: %v", i, fixes))
		}
		res.Schedules = append(res.Schedules, sch)
	}
	return res, nil
}
