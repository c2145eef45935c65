package transfer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"pa-alarm/internal/domain"
)

func service() *domain.ScheduleService {
	return domain.NewScheduleService(domain.DefaultCatalog())
}

func TestExportImport_RoundTrip(t *testing.T) {
	svc := service()
	days, _ := domain.NewDaySet(0, 6)
	in := []domain.Schedule{
		{ID: "0b6f7a9e-3c1e-4a55-9d7e-2a4c9d1b8f01", Time: domain.MustTimeOfDay("08:00"), SoundID: "chime", Days: domain.Weekdays, Enabled: true, LoopCount: 1},
		{ID: "5a0c2a63-6a5b-4f1b-8f7e-9e2d6c3b4a10", Time: domain.MustTimeOfDay("17:30"), SoundID: "alarm", Days: days, Enabled: false, LoopCount: 3},
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := Export(in, domain.Settings{Volume: 0.5}, now)
	if err != nil {
		t.Fatal(err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Version != Version || !env.ExportedAt.Equal(now) {
		t.Fatalf("envelope header = %q %v", env.Version, env.ExportedAt)
	}

	res, err := Import(data, svc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != len(in) {
		t.Fatalf("got %d schedules", len(res.Schedules))
	}
	for i := range in {
		if res.Schedules[i] != in[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, res.Schedules[i], in[i])
		}
	}
	if res.Volume == nil || *res.Volume != 0.5 {
		t.Fatalf("volume = %v", res.Volume)
	}
	if res.Repaired != 0 || res.Discarded != 0 {
		t.Fatalf("clean file reported repaired=%d discarded=%d", res.Repaired, res.Discarded)
	}
}

func TestImport_LegacyArrayWithLoopKey(t *testing.T) {
	legacy := `[
		{"time":"08:00","soundId":"chime","days":[1,2,3,4,5],"enabled":true,"loop":2},
		{"time":"17:00","soundId":"alarm","days":[1,2,3,4,5],"enabled":true,"loop":1}
	]`
	res, err := Import([]byte(legacy), service())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 2 {
		t.Fatalf("got %d schedules", len(res.Schedules))
	}
	if res.Schedules[0].LoopCount != 2 {
		t.Fatalf("loop = %d, want 2", res.Schedules[0].LoopCount)
	}
	if res.Volume != nil {
		t.Fatal("legacy array has no settings")
	}
	if res.Schedules[0].ID != "" {
		t.Fatal("legacy entries carry no id")
	}
}

func TestImport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"scalar", `42`},
		{"string", `"schedules"`},
		{"object without schedules", `{"version":"3.1"}`},
		{"schedules not array", `{"schedules":{"time":"08:00"}}`},
		{"empty array", `[]`},
		{"nothing valid", `[{"time":"25:00"},{"soundId":"siren"},{"days":[9]},"x"]`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.data), service())
			if !errors.Is(err, domain.ErrImportMalformed) {
				t.Fatalf("err = %v, want ErrImportMalformed", err)
			}
		})
	}
}

func TestImport_RepairsAndDiscards(t *testing.T) {
	data := `{"version":"3.1","schedules":[
		{"time":"07:15","soundId":"chime","days":[1,1,9,"x",3],"enabled":"yes","loopCount":25},
		{"soundId":"alarm"},
		{"time":"7:15","soundId":"chime","days":[1]},
		{"time":"09:00","soundId":"siren","days":[1]},
		{"time":"10:00","soundId":"chime","days":[7,8]},
		{"time":"11:00","soundId":"chime","days":[2],"enabled":false,"loopCount":0}
	],"settings":{"volume":3}}`

	res, err := Import([]byte(data), service())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 3 || res.Discarded != 3 {
		t.Fatalf("kept %d discarded %d", len(res.Schedules), res.Discarded)
	}

	first := res.Schedules[0]
	if got := first.Days.Ints(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("days = %v", got)
	}
	if !first.Enabled || first.LoopCount != domain.MaxLoopCount {
		t.Fatalf("first = %+v", first)
	}

	second := res.Schedules[1]
	if second.Time.String() != "08:00" || second.Days != domain.Weekdays || !second.Enabled || second.LoopCount != 1 {
		t.Fatalf("defaults not applied: %+v", second)
	}

	third := res.Schedules[2]
	if third.Enabled || third.LoopCount != domain.MinLoopCount {
		t.Fatalf("third = %+v", third)
	}

	if res.Volume == nil || *res.Volume != 1 {
		t.Fatalf("volume = %v, want clamp to 1", res.Volume)
	}
	if res.Problems == nil || len(res.Problems.Errors) != res.Repaired+res.Discarded {
		t.Fatalf("problems = %v", res.Problems)
	}
	if !strings.Contains(res.Problems.Error(), "entry 3 dropped") {
		t.Fatalf("problem report missing dropped entry: %v", res.Problems)
	}
}

func TestImport_IDs(t *testing.T) {
	const id = "0b6f7a9e-3c1e-4a55-9d7e-2a4c9d1b8f01"
	data := `[
		{"id":"` + id + `","time":"08:00","soundId":"chime","days":[1]},
		{"id":"` + id + `","time":"09:00","soundId":"chime","days":[1]},
		{"id":"not-a-uuid","time":"10:00","soundId":"chime","days":[1]}
	]`
	res, err := Import([]byte(data), service())
	if err != nil {
		t.Fatal(err)
	}
	if res.Schedules[0].ID != id {
		t.Fatalf("first id = %q", res.Schedules[0].ID)
	}
	if res.Schedules[1].ID != "" || res.Schedules[2].ID != "" {
		t.Fatalf("duplicate or invalid ids kept: %q %q", res.Schedules[1].ID, res.Schedules[2].ID)
	}
}

func TestDecodeSchedules_EmptyListIsValid(t *testing.T) {
	res, err := DecodeSchedules([]byte(`[]`), service())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 0 {
		t.Fatalf("got %d schedules", len(res.Schedules))
	}
}

func TestEncodeDecode_Persisted(t *testing.T) {
	svc := service()
	in := svc.BuiltinSchedules()
	in[0].ID = "0b6f7a9e-3c1e-4a55-9d7e-2a4c9d1b8f01"
	data, err := EncodeSchedules(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[") {
		t.Fatalf("persisted form is not an array: %s", data)
	}
	res, err := DecodeSchedules(data, svc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 2 || res.Schedules[0] != in[0] || res.Schedules[1] != in[1] {
		t.Fatalf("decoded %+v", res.Schedules)
	}
}
