package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/transfer"
)

type harness struct {
	uc     *alarmInteractor
	kv     *fakeKV
	player *fakePlayer
	device *fakeUnlocker
	power  *fakePower
}

func newHarness(t *testing.T, kv *fakeKV) *harness {
	t.Helper()
	if kv == nil {
		kv = newFakeKV()
		kv.data[domain.KeySchedules] = []byte(`[]`)
	}
	h := &harness{
		kv:     kv,
		player: &fakePlayer{},
		device: &fakeUnlocker{},
		power:  &fakePower{lock: &fakeLock{}},
	}
	uc, err := newInteractor(Deps{
		KV:      h.kv,
		Player:  h.player,
		Device:  h.device,
		Power:   h.power,
		Catalog: domain.DefaultCatalog(),
		Now:     func() time.Time { return monday(12, 0, 0) },
	})
	if err != nil {
		t.Fatal(err)
	}
	h.uc = uc
	return h
}

// 2024-01-01 is a Monday.
func monday(h, m, s int) time.Time {
	return time.Date(2024, time.January, 1, h, m, s, 0, time.Local)
}

func (h *harness) add(t *testing.T, hhmm string, sound domain.SoundID, loops int) domain.Schedule {
	t.Helper()
	days, _ := domain.NewDaySet(1)
	sch, err := h.uc.AddSchedule(domain.Schedule{Time: domain.MustTimeOfDay(hhmm), SoundID: sound, Days: days, Enabled: true, LoopCount: loops})
	if err != nil {
		t.Fatal(err)
	}
	return sch
}

func (h *harness) arm(t *testing.T) {
	t.Helper()
	if err := h.uc.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}
}

func TestTick_DoubleTickAtSecondZeroFiresOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 2)
	h.arm(t)
	ctx := context.Background()

	h.uc.tick(ctx, monday(7, 59, 59))
	h.uc.tick(ctx, monday(8, 0, 0))
	h.uc.tick(ctx, monday(8, 0, 0))
	h.uc.tick(ctx, monday(8, 0, 0).Add(400*time.Millisecond))
	h.uc.tick(ctx, monday(8, 0, 1))

	calls := h.player.calls()
	if len(calls) != 1 {
		t.Fatalf("play calls = %d, want 1", len(calls))
	}
	if calls[0] != (playCall{"chime", 2}) {
		t.Fatalf("call = %+v", calls[0])
	}
}

func TestTick_TieProducesOnePlay(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "09:30", "alarm", 1)
	h.add(t, "09:30", "chime", 1)
	h.arm(t)

	h.uc.tick(context.Background(), monday(9, 30, 0))

	calls := h.player.calls()
	if len(calls) != 1 || calls[0].sound != "alarm" {
		t.Fatalf("calls = %+v, want exactly the first inserted", calls)
	}
}

func TestTick_DisarmedOnlyCountsDown(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 1)
	events, cancel := h.uc.Subscribe()
	defer cancel()

	h.uc.tick(context.Background(), monday(8, 0, 0))

	if len(h.player.calls()) != 0 {
		t.Fatal("disarmed system played")
	}
	select {
	case ev := <-events:
		if ev.Kind != EventTick || !ev.HasNext || ev.Next.SecondsUntil != 604800 {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("no tick event")
	}
}

func TestTick_PanickingMatcherDoesNotRefire(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 1)
	h.arm(t)

	calls := 0
	h.uc.match = func(time.Time, []domain.Schedule) (domain.MatchResult, error) {
		calls++
		panic("boom")
	}
	h.uc.tick(context.Background(), monday(8, 0, 0))
	h.uc.tick(context.Background(), monday(8, 0, 0))

	if calls != 1 {
		t.Fatalf("matcher ran %d times in one minute", calls)
	}
	if snap := h.uc.Snapshot(); snap.LastError == nil || !strings.Contains(snap.LastError.Error(), "panic") {
		t.Fatalf("LastError = %v", snap.LastError)
	}
	if !h.uc.Snapshot().Armed {
		t.Fatal("a failing match must not disarm")
	}
}

func TestTick_DeniedDisarms(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 1)
	h.arm(t)
	h.player.playErr = domain.ErrPlaybackDenied

	h.uc.tick(context.Background(), monday(8, 0, 0))

	if h.uc.Snapshot().Armed {
		t.Fatal("denied playback should disarm")
	}
	if h.power.lock.released != 1 {
		t.Fatalf("wake lock released %d times", h.power.lock.released)
	}
}

func TestTick_UnsupportedStaysArmed(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 1)
	h.arm(t)
	h.player.playErr = domain.ErrPlaybackUnsupported

	h.uc.tick(context.Background(), monday(8, 0, 0))

	snap := h.uc.Snapshot()
	if !snap.Armed || !errors.Is(snap.LastError, domain.ErrPlaybackUnsupported) {
		t.Fatalf("armed=%v lastError=%v", snap.Armed, snap.LastError)
	}
}

func TestArm_DeviceDenied(t *testing.T) {
	h := newHarness(t, nil)
	h.device.err = domain.ErrPlaybackDenied

	if err := h.uc.Arm(); !errors.Is(err, domain.ErrPlaybackDenied) {
		t.Fatalf("err = %v", err)
	}
	if h.uc.Snapshot().Armed {
		t.Fatal("system armed despite denied device")
	}
}

func TestArm_WakeLockFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.power.err = errors.New("no bus")
	h.arm(t)
	if !h.uc.Snapshot().Armed {
		t.Fatal("wake lock failure blocked arming")
	}
}

func TestDisarm(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 1)
	h.arm(t)

	if err := h.uc.Disarm(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.player.stops != 1 || h.power.lock.released != 1 {
		t.Fatalf("stops=%d released=%d", h.player.stops, h.power.lock.released)
	}
	h.uc.tick(context.Background(), monday(8, 0, 0))
	if len(h.player.calls()) != 0 {
		t.Fatal("disarmed clock fired")
	}
}

func TestPlay_RequiresArmed(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.uc.Play(context.Background(), "chime", 1); !errors.Is(err, domain.ErrNotArmed) {
		t.Fatalf("err = %v", err)
	}
	h.arm(t)
	if err := h.uc.Play(context.Background(), "chime", 1); err != nil {
		t.Fatal(err)
	}
	if err := h.uc.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_DefaultsWhenAbsent(t *testing.T) {
	h := newHarness(t, newFakeKV())
	all := h.uc.Schedules()
	if len(all) != 2 || all[0].Time.String() != "08:00" || all[1].SoundID != "alarm" {
		t.Fatalf("schedules = %+v", all)
	}
	if h.player.Volume() != domain.DefaultVolume {
		t.Fatalf("volume = %v", h.player.Volume())
	}
	if h.kv.sets != 0 {
		t.Fatal("loading defaults should not write")
	}
}

func TestLoad_StoredLegacyData(t *testing.T) {
	kv := newFakeKV()
	kv.data[domain.KeySchedules] = []byte(`[{"time":"06:45","soundId":"alarm","days":[0,6],"enabled":false,"loop":4}]`)
	kv.data[domain.KeyVolume] = []byte(`0.3`)
	h := newHarness(t, kv)

	all := h.uc.Schedules()
	if len(all) != 1 || all[0].Time.String() != "06:45" || all[0].LoopCount != 4 || all[0].Enabled || all[0].ID == "" {
		t.Fatalf("schedules = %+v", all)
	}
	if h.player.Volume() != 0.3 {
		t.Fatalf("volume = %v", h.player.Volume())
	}
}

func TestStorageFull_DegradesOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.kv.setErr = domain.ErrStorageFull
	events, cancel := h.uc.Subscribe()
	defer cancel()

	h.add(t, "08:00", "chime", 1)
	h.add(t, "09:00", "chime", 1)
	if err := h.uc.SetVolume(0.4); err != nil {
		t.Fatal(err)
	}

	snap := h.uc.Snapshot()
	if !snap.Degraded || len(snap.Schedules) != 2 {
		t.Fatalf("degraded=%v schedules=%d", snap.Degraded, len(snap.Schedules))
	}
	if h.kv.sets != 1 {
		t.Fatalf("writes attempted = %d, want 1", h.kv.sets)
	}
	notices := 0
	for len(events) > 0 {
		if ev := <-events; ev.Kind == EventNotice {
			notices++
		}
	}
	if notices != 1 {
		t.Fatalf("notices = %d, want 1", notices)
	}
}

func TestStorageUnavailableAtLoad(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = domain.ErrStorageUnavailable
	h := newHarness(t, kv)
	if !h.uc.Snapshot().Degraded {
		t.Fatal("expected degraded mode")
	}
	if len(h.uc.Schedules()) != 2 {
		t.Fatal("expected built-in schedules")
	}
}

func TestMutationsPersist(t *testing.T) {
	h := newHarness(t, nil)
	sch := h.add(t, "08:00", "chime", 1)
	if _, err := h.uc.ToggleSchedule(sch.ID); err != nil {
		t.Fatal(err)
	}
	v, _ := h.kv.value(domain.KeySchedules)
	if !strings.Contains(v, `"enabled":false`) || !strings.Contains(v, sch.ID) {
		t.Fatalf("persisted = %s", v)
	}
	if err := h.uc.SetVolume(0.25); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.kv.value(domain.KeyVolume); v != "0.25" {
		t.Fatalf("volume persisted as %q", v)
	}
	if err := h.uc.SetVolume(1.5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestExportImport(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "08:00", "chime", 3)
	_ = h.uc.SetVolume(0.6)
	data, err := h.uc.Export()
	if err != nil {
		t.Fatal(err)
	}

	other := newHarness(t, nil)
	res, err := other.uc.Import(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedules) != 1 || other.player.Volume() != 0.6 {
		t.Fatalf("imported %d, volume %v", len(res.Schedules), other.player.Volume())
	}
	if got := other.uc.Schedules(); len(got) != 1 || got[0].LoopCount != 3 {
		t.Fatalf("schedules = %+v", got)
	}

	if _, err := other.uc.Import([]byte(`{"nope":true}`)); !errors.Is(err, domain.ErrImportMalformed) {
		t.Fatalf("err = %v", err)
	}
	if len(other.uc.Schedules()) != 1 {
		t.Fatal("failed import changed the store")
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "05:00", "chime", 1)
	_ = h.uc.SetVolume(0.1)

	if err := h.uc.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.kv.value(domain.KeySchedules); ok {
		t.Fatal("schedules key survived reset")
	}
	if _, ok := h.kv.value(domain.KeyVolume); ok {
		t.Fatal("volume key survived reset")
	}
	if len(h.uc.Schedules()) != 2 || h.player.Volume() != domain.DefaultVolume {
		t.Fatal("defaults not restored")
	}
}

func TestAsyncDeniedDisarms(t *testing.T) {
	h := newHarness(t, nil)
	h.arm(t)
	h.player.onError(domain.ErrPlaybackDenied)
	if h.uc.Snapshot().Armed {
		t.Fatal("async denial should disarm")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.uc.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCreateSchedule(t *testing.T) {
	h := newHarness(t, nil)
	tm := "06:15"
	sch, err := h.uc.CreateSchedule(domain.SchedulePatch{Time: &tm, Days: []int{0, 6}})
	if err != nil {
		t.Fatal(err)
	}
	if sch.ID == "" || sch.Time.String() != "06:15" || sch.Days.Len() != 2 || sch.SoundID != "chime" {
		t.Fatalf("schedule = %+v", sch)
	}
	bad := "25:00"
	if _, err := h.uc.CreateSchedule(domain.SchedulePatch{Time: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if len(h.uc.Schedules()) != 1 {
		t.Fatal("rejected schedule was stored")
	}
}

func (h *harness) stored(t *testing.T) map[string]bool {
	t.Helper()
	raw, ok := h.kv.value(domain.KeySchedules)
	if !ok {
		t.Fatal("no schedules stored")
	}
	res, err := transfer.DecodeSchedules([]byte(raw), h.uc.service)
	if err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	ids := make(map[string]bool, len(res.Schedules))
	for _, s := range res.Schedules {
		ids[s.ID] = true
	}
	return ids
}

func TestConcurrentAddsAllPersist(t *testing.T) {
	h := newHarness(t, nil)
	const n = 32

	var wg sync.WaitGroup
	added := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sch, err := h.uc.AddSchedule(domain.Schedule{Time: domain.MustTimeOfDay("06:00"), SoundID: "chime", Days: domain.Weekdays, Enabled: true, LoopCount: 1})
			if err != nil {
				t.Error(err)
				return
			}
			added <- sch.ID
		}()
	}
	wg.Wait()
	close(added)

	ids := h.stored(t)
	if len(ids) != len(h.uc.Schedules()) {
		t.Fatalf("stored %d schedules, memory has %d", len(ids), len(h.uc.Schedules()))
	}
	for id := range added {
		if !ids[id] {
			t.Errorf("schedule %s missing from storage", id)
		}
	}
}

func TestOutOfOrderSaveKeepsNewerList(t *testing.T) {
	h := newHarness(t, nil)
	a := h.add(t, "06:00", "chime", 1)
	older := h.uc.Schedules()
	olderVersion := h.uc.savedVersion
	b := h.add(t, "07:00", "alarm", 1)

	// the hook of the first add arriving after the second one saved
	h.uc.schedulesChanged(older, olderVersion)

	ids := h.stored(t)
	if !ids[a.ID] || !ids[b.ID] {
		t.Fatalf("stored ids = %v, want %s and %s", ids, a.ID, b.ID)
	}
}

func TestReset_LateSaveDoesNotRestoreOldList(t *testing.T) {
	h := newHarness(t, nil)
	h.add(t, "05:00", "chime", 1)
	before := h.uc.Schedules()
	beforeVersion := h.uc.savedVersion

	if err := h.uc.Reset(); err != nil {
		t.Fatal(err)
	}
	h.uc.schedulesChanged(before, beforeVersion)
	if _, ok := h.kv.value(domain.KeySchedules); ok {
		t.Fatal("pre-reset list written after reset")
	}

	c := h.add(t, "09:30", "alarm", 1)
	ids := h.stored(t)
	if !ids[c.ID] || len(ids) != 3 {
		t.Fatalf("stored ids after reset and add = %v", ids)
	}
}

func TestPlay_DisarmWaitsForStart(t *testing.T) {
	h := newHarness(t, nil)
	h.arm(t)

	started := make(chan struct{})
	release := make(chan struct{})
	h.player.hold = func() {
		close(started)
		<-release
	}

	playDone := make(chan error, 1)
	go func() { playDone <- h.uc.Play(context.Background(), "chime", 1) }()
	<-started

	disarmDone := make(chan error, 1)
	go func() { disarmDone <- h.uc.Disarm(context.Background()) }()

	select {
	case <-disarmDone:
		t.Fatal("disarm finished while play was starting")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if err := <-playDone; err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := <-disarmDone; err != nil {
		t.Fatalf("Disarm: %v", err)
	}
	if len(h.player.calls()) != 1 || h.player.stopCount() != 1 {
		t.Fatalf("plays=%d stops=%d", len(h.player.calls()), h.player.stopCount())
	}
	if h.uc.Snapshot().Armed {
		t.Fatal("still armed")
	}
}
