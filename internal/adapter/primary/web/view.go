package web

import (
	"time"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/transfer"
	"pa-alarm/internal/usecase"
)

type statusView struct {
	Now       time.Time         `json:"now"`
	Armed     bool              `json:"armed"`
	Degraded  bool              `json:"degraded"`
	Next      *nextView         `json:"next"`
	Playback  playbackView      `json:"playback"`
	Volume    float64           `json:"volume"`
	Schedules []transfer.Record `json:"schedules"`
	// ScheduleCount and EnabledCount feed the page's summary line.
	ScheduleCount int         `json:"scheduleCount"`
	EnabledCount  int         `json:"enabledCount"`
	Sounds        []soundView `json:"sounds,omitempty"`
	LastFired     *time.Time  `json:"lastFired,omitempty"`
	LastError     string      `json:"lastError,omitempty"`
}

type nextView struct {
	ScheduleID   string    `json:"scheduleId"`
	Time         string    `json:"time"`
	SoundID      string    `json:"soundId"`
	At           time.Time `json:"at"`
	SecondsUntil int64     `json:"secondsUntil"`
	Countdown    string    `json:"countdown"`
	Relative     string    `json:"relative"`
}

type playbackView struct {
	State       string  `json:"state"`
	SoundID     string  `json:"soundId,omitempty"`
	LoopsPlayed int     `json:"loopsPlayed"`
	LoopsTarget int     `json:"loopsTarget"`
	Fade        string  `json:"fade"`
	Volume      float64 `json:"volume"`
}

type soundView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type importView struct {
	Imported  int      `json:"imported"`
	Repaired  int      `json:"repaired"`
	Discarded int      `json:"discarded"`
	Problems  []string `json:"problems"`
}

// wsMessage is one frame on /api/ws.
type wsMessage struct {
	Kind    string           `json:"kind"`
	At      time.Time        `json:"at"`
	Status  *statusView      `json:"status,omitempty"`
	Next    *nextView        `json:"next,omitempty"`
	State   string           `json:"state,omitempty"`
	Fired   *transfer.Record `json:"fired,omitempty"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type schedulePayload struct {
	Time      *string `json:"time"`
	SoundID   *string `json:"soundId"`
	Days      []int   `json:"days"`
	Enabled   *bool   `json:"enabled"`
	LoopCount *int    `json:"loopCount"`
}

func (p schedulePayload) patch() domain.SchedulePatch {
	patch := domain.SchedulePatch{
		Time:      p.Time,
		Days:      p.Days,
		Enabled:   p.Enabled,
		LoopCount: p.LoopCount,
	}
	if p.SoundID != nil {
		id := domain.SoundID(*p.SoundID)
		patch.SoundID = &id
	}
	return patch
}

type playPayload struct {
	SoundID string `json:"soundId"`
	Loops   *int   `json:"loops"`
}

func snapshotToView(snap domain.Snapshot) statusView {
	v := statusView{
		Now:       snap.Now,
		Armed:     snap.Armed,
		Degraded:  snap.Degraded,
		Playback:  playbackToView(snap.Playback),
		Volume:    snap.Settings.Volume,
		Schedules: schedulesToView(snap.Schedules),
	}
	v.ScheduleCount = len(snap.Schedules)
	for _, sch := range snap.Schedules {
		if sch.Enabled {
			v.EnabledCount++
		}
	}
	if snap.HasNext {
		v.Next = nextToView(snap.Next)
	}
	if !snap.LastFired.IsZero() {
		v.LastFired = ptr(snap.LastFired)
	}
	if snap.LastError != nil {
		v.LastError = snap.LastError.Error()
	}
	return v
}

func nextToView(next domain.NextEvent) *nextView {
	short, relative := countdown(next)
	return &nextView{
		ScheduleID:   next.Schedule.ID,
		Time:         next.Schedule.Time.String(),
		SoundID:      string(next.Schedule.SoundID),
		At:           next.At,
		SecondsUntil: next.SecondsUntil,
		Countdown:    short,
		Relative:     relative,
	}
}

func playbackToView(p domain.PlaybackStatus) playbackView {
	return playbackView{
		State:       p.State.String(),
		SoundID:     string(p.SoundID),
		LoopsPlayed: p.LoopsPlayed,
		LoopsTarget: p.LoopsTarget,
		Fade:        p.Fade.String(),
		Volume:      p.Volume,
	}
}

func schedulesToView(all []domain.Schedule) []transfer.Record {
	out := make([]transfer.Record, len(all))
	for i, s := range all {
		out[i] = transfer.FromSchedule(s)
	}
	return out
}

func catalogToView(c domain.Catalog) []soundView {
	sounds := c.All()
	out := make([]soundView, len(sounds))
	for i, s := range sounds {
		out[i] = soundView{ID: string(s.ID), Name: s.DisplayName}
	}
	return out
}

func eventToMessage(ev usecase.Event) wsMessage {
	m := wsMessage{Kind: string(ev.Kind), At: ev.At, Message: ev.Message}
	switch ev.Kind {
	case usecase.EventTick:
		if ev.HasNext {
			m.Next = nextToView(ev.Next)
		}
	case usecase.EventPlayback:
		m.State = ev.State.String()
	case usecase.EventFired:
		m.Fired = ptr(transfer.FromSchedule(ev.Schedule))
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}
