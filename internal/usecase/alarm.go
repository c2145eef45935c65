package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
	"pa-alarm/internal/store"
	"pa-alarm/internal/transfer"
)

// AlarmUseCase is the primary port for alarm operations.
// CLI and web adapters depend only on this interface.
type AlarmUseCase interface {
	// Start runs the trigger clock on its own goroutine.
	Start(ctx context.Context)
	// Run runs the trigger clock until ctx is cancelled.
	Run(ctx context.Context) error
	Snapshot() domain.Snapshot
	Subscribe() (<-chan Event, func())
	Catalog() domain.Catalog

	Arm() error
	Disarm(ctx context.Context) error
	Play(ctx context.Context, sound domain.SoundID, loops int) error
	Stop(ctx context.Context) error
	SetVolume(v float64) error

	Schedules() []domain.Schedule
	AddSchedule(sch domain.Schedule) (domain.Schedule, error)
	// CreateSchedule adds the default schedule with patch applied.
	CreateSchedule(patch domain.SchedulePatch) (domain.Schedule, error)
	UpdateSchedule(id string, patch domain.SchedulePatch) (domain.Schedule, error)
	ToggleSchedule(id string) (domain.Schedule, error)
	ToggleDay(id string, day time.Weekday) (domain.Schedule, error)
	DeleteSchedule(id string) error

	Export() ([]byte, error)
	Import(data []byte) (transfer.Result, error)
	Reset() error
}

// Player is the playback port the interactor drives.
type Player interface {
	Play(ctx context.Context, sound domain.SoundID, loops int) error
	Stop(ctx context.Context) error
	SetVolume(v float64)
	Volume() float64
	Status() domain.PlaybackStatus
}

// Unlocker prepares the audio output when the system is armed.
type Unlocker interface {
	Unlock() error
}

// Deps are the secondary ports the interactor needs.
type Deps struct {
	KV      domain.KeyValueStore
	Player  Player
	Device  Unlocker
	Power   domain.PowerManager
	Catalog domain.Catalog
	// Now defaults to time.Now.
	Now func() time.Time
}

// tickOffset keeps ticks clear of the second boundary.
const tickOffset = 10 * time.Millisecond

// alarmInteractor implements AlarmUseCase.
// It depends only on domain layer and secondary ports.
type alarmInteractor struct {
	kv      domain.KeyValueStore
	player  Player
	device  Unlocker
	power   domain.PowerManager
	service *domain.ScheduleService
	store   *store.ScheduleStore
	events  *broadcaster
	now     func() time.Time
	match   func(time.Time, []domain.Schedule) (domain.MatchResult, error)

	// timeline serializes ticks with arm, disarm and manual play.
	timeline sync.Mutex

	// persistMu orders writes to kv; savedVersion is the newest schedule
	// list written or cleared.
	persistMu    sync.Mutex
	savedVersion uint64

	mu        sync.Mutex
	clock     domain.ClockState
	lock      domain.PowerLock
	degraded  bool
	lastFired time.Time
	lastError error
}

// NewAlarmUseCase creates the interactor and loads persisted state.
// Storage failures never fail construction; they leave it degraded.
func NewAlarmUseCase(deps Deps) (AlarmUseCase, error) {
	return newInteractor(deps)
}

func newInteractor(deps Deps) (*alarmInteractor, error) {
	if deps.KV == nil || deps.Player == nil {
		return nil, errors.New("key/value store and player are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Device == nil {
		deps.Device = noopUnlocker{}
	}
	service := domain.NewScheduleService(deps.Catalog)

	s := &alarmInteractor{
		kv:      deps.KV,
		player:  deps.Player,
		device:  deps.Device,
		power:   deps.Power,
		service: service,
		store:   store.New(service),
		events:  newBroadcaster(),
		now:     deps.Now,
		match:   domain.Match,
	}

	s.load()
	s.store.OnChange(s.schedulesChanged)

	if p, ok := deps.Player.(interface{ OnError(func(error)) }); ok {
		p.OnError(s.playbackFailed)
	}
	if p, ok := deps.Player.(interface {
		OnTransition(func(from, to domain.PlaybackState))
	}); ok {
		p.OnTransition(func(_, to domain.PlaybackState) {
			s.events.publish(Event{Kind: EventPlayback, At: s.now(), State: to})
		})
	}
	return s, nil
}

type noopUnlocker struct{}

func (noopUnlocker) Unlock() error { return nil }

// Start begins the trigger clock loop.
func (s *alarmInteractor) Start(ctx context.Context) {
	go func() {
		if err := s.Run(ctx); err != nil {
			logging.Errorf("clock stopped: %v", err)
		}
	}()
}

// Run ticks once per second, aligned to the wall-clock second, until ctx is
// cancelled. Every timer it creates is stopped on return.
func (s *alarmInteractor) Run(ctx context.Context) error {
	now := s.now()
	align := time.NewTimer(now.Truncate(time.Second).Add(time.Second + tickOffset).Sub(now))
	defer align.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-align.C:
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	logging.Infof("clock: running")
	s.tick(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			logging.Infof("clock: stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx, s.now())
		}
	}
}

// tick is one clock step. Countdown and matcher see the same now.
func (s *alarmInteractor) tick(ctx context.Context, now time.Time) {
	s.timeline.Lock()
	defer s.timeline.Unlock()

	next, ok := domain.ComputeNext(now, s.store.Enabled())
	s.events.publish(Event{Kind: EventTick, At: now, Next: next, HasNext: ok})

	s.mu.Lock()
	if !s.clock.ShouldMatch(now) {
		s.mu.Unlock()
		return
	}
	// marked before matching so a failing match cannot fire twice
	s.clock = s.clock.MarkMatched(now)
	s.mu.Unlock()

	res, err := s.safeMatch(now, s.store.All())
	if err != nil {
		logging.Errorf("match at %s: %v", now.Format("15:04"), err)
		s.notice(err, "schedule check failed")
		return
	}
	fires := res.Fires()
	if len(fires) == 0 {
		return
	}
	for _, d := range res.Dropped {
		logging.Warnf("tie at %s: schedule %s skipped, %s fires", d.Time, d.ID, fires[0].ID)
	}
	s.fire(ctx, now, fires[0])
}

func (s *alarmInteractor) safeMatch(now time.Time, schedules []domain.Schedule) (res domain.MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("matcher panic: %v", r)
		}
	}()
	return s.match(now, schedules)
}

func (s *alarmInteractor) fire(ctx context.Context, now time.Time, sch domain.Schedule) {
	logging.Infof("alarm %s: %s x%d", sch.Time, sch.SoundID, sch.LoopCount)
	s.mu.Lock()
	s.lastFired = now
	s.mu.Unlock()
	s.events.publish(Event{Kind: EventFired, At: now, Schedule: sch})

	err := s.player.Play(ctx, sch.SoundID, sch.LoopCount)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPlaybackDenied):
		logging.Warnf("alarm %s: %v; disarming", sch.Time, err)
		s.disarmLocked()
		s.notice(err, "audio output is blocked, arm again to continue")
	default:
		logging.Warnf("alarm %s: %v", sch.Time, err)
		s.notice(err, "alarm could not play")
	}
}

// Arm unlocks the audio output and starts matching. If the device refuses,
// the system stays disarmed. A wake lock is requested but optional.
func (s *alarmInteractor) Arm() error {
	s.timeline.Lock()
	defer s.timeline.Unlock()

	s.mu.Lock()
	armed := s.clock.Armed
	s.mu.Unlock()
	if armed {
		return nil
	}

	if err := s.device.Unlock(); err != nil {
		s.notice(err, "audio output could not be unlocked")
		return err
	}

	var lock domain.PowerLock
	if s.power != nil {
		l, err := s.power.Acquire("alarm armed")
		if err != nil {
			logging.Warnf("wake lock unavailable: %v", err)
		} else {
			lock = l
		}
	}

	s.mu.Lock()
	s.clock = s.clock.Arm()
	s.lock = lock
	s.mu.Unlock()

	logging.Infof("armed")
	s.events.publish(Event{Kind: EventArmed, At: s.now()})
	return nil
}

// Disarm stops matching, releases the wake lock and fades out playback.
// The countdown keeps running.
func (s *alarmInteractor) Disarm(ctx context.Context) error {
	s.timeline.Lock()
	s.disarmLocked()
	s.timeline.Unlock()
	return s.player.Stop(ctx)
}

// disarmLocked runs with the timeline held.
func (s *alarmInteractor) disarmLocked() {
	s.mu.Lock()
	if !s.clock.Armed {
		s.mu.Unlock()
		return
	}
	s.clock = s.clock.Disarm()
	lock := s.lock
	s.lock = nil
	s.mu.Unlock()

	if lock != nil {
		if err := lock.Release(); err != nil {
			logging.Warnf("release wake lock: %v", err)
		}
	}
	logging.Infof("disarmed")
	s.events.publish(Event{Kind: EventDisarmed, At: s.now()})
}

// Play is the manual play button. It requires the system to be armed.
// Like a fired alarm it starts under the timeline, so a Disarm either
// comes first or stops the clip.
func (s *alarmInteractor) Play(ctx context.Context, sound domain.SoundID, loops int) error {
	s.timeline.Lock()
	defer s.timeline.Unlock()

	s.mu.Lock()
	armed := s.clock.Armed
	s.mu.Unlock()
	if !armed {
		return domain.ErrNotArmed
	}

	err := s.player.Play(ctx, sound, loops)
	if errors.Is(err, domain.ErrPlaybackDenied) {
		s.disarmLocked()
	}
	return err
}

// Stop fades out whatever is playing. It works armed or not.
func (s *alarmInteractor) Stop(ctx context.Context) error {
	return s.player.Stop(ctx)
}

// SetVolume changes and persists the playback volume.
func (s *alarmInteractor) SetVolume(v float64) error {
	if v != v || v < 0 || v > 1 {
		return &domain.ValidationError{Field: "volume", Reason: fmt.Sprintf("%v outside 0-1", v)}
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.player.SetVolume(v)
	s.persist(domain.KeyVolume, []byte(strconv.FormatFloat(v, 'f', -1, 64)))
	return nil
}

// Snapshot returns the current system state.
func (s *alarmInteractor) Snapshot() domain.Snapshot {
	now := s.now()
	next, ok := domain.ComputeNext(now, s.store.Enabled())
	playback := s.player.Status()
	volume := s.player.Volume()
	schedules := s.store.All()

	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Snapshot{
		Now:       now,
		Armed:     s.clock.Armed,
		Next:      next,
		HasNext:   ok,
		Playback:  playback,
		Settings:  domain.Settings{Volume: volume},
		Schedules: schedules,
		Degraded:  s.degraded,
		LastFired: s.lastFired,
		LastError: s.lastError,
	}
}

func (s *alarmInteractor) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe(16)
}

func (s *alarmInteractor) Catalog() domain.Catalog {
	return s.service.Catalog()
}

func (s *alarmInteractor) Schedules() []domain.Schedule {
	return s.store.All()
}

func (s *alarmInteractor) AddSchedule(sch domain.Schedule) (domain.Schedule, error) {
	return s.store.Add(sch)
}

func (s *alarmInteractor) CreateSchedule(patch domain.SchedulePatch) (domain.Schedule, error) {
	sch, err := s.service.ApplyPatch(s.service.NewDefault(), patch)
	if err != nil {
		return domain.Schedule{}, err
	}
	return s.store.Add(sch)
}

func (s *alarmInteractor) UpdateSchedule(id string, patch domain.SchedulePatch) (domain.Schedule, error) {
	return s.store.Update(id, patch)
}

func (s *alarmInteractor) ToggleSchedule(id string) (domain.Schedule, error) {
	return s.store.Toggle(id)
}

func (s *alarmInteractor) ToggleDay(id string, day time.Weekday) (domain.Schedule, error) {
	return s.store.ToggleDay(id, day)
}

func (s *alarmInteractor) DeleteSchedule(id string) error {
	return s.store.Delete(id)
}

// Export renders the backup file.
func (s *alarmInteractor) Export() ([]byte, error) {
	return transfer.Export(s.store.All(), domain.Settings{Volume: s.player.Volume()}, s.now())
}

// Import replaces every schedule with the usable entries of data.
func (s *alarmInteractor) Import(data []byte) (transfer.Result, error) {
	res, err := transfer.Import(data, s.service)
	if err != nil {
		return res, err
	}
	if err := s.store.Replace(res.Schedules); err != nil {
		return res, fmt.Errorf("%w: %v", domain.ErrImportMalformed, err)
	}
	if res.Volume != nil {
		if err := s.SetVolume(*res.Volume); err != nil {
			return res, err
		}
	}
	if res.Problems != nil {
		for _, p := range res.Problems.Errors {
			logging.Warnf("import: %v", p)
		}
	}
	logging.Infof("import: %d schedule(s), %d repaired, %d discarded", len(res.Schedules), res.Repaired, res.Discarded)
	return res, nil
}

// Reset deletes persisted data and restores the built-in schedules.
// An edit that lands after the restore is saved as usual.
func (s *alarmInteractor) Reset() error {
	var result *multierror.Error
	version, err := s.store.Restore(s.service.BuiltinSchedules())
	if err != nil {
		result = multierror.Append(result, err)
	}

	s.persistMu.Lock()
	if err == nil && version > s.savedVersion {
		s.savedVersion = version
		if err := s.kv.Delete(domain.KeySchedules); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.kv.Delete(domain.KeyVolume); err != nil {
		result = multierror.Append(result, err)
	}
	s.player.SetVolume(domain.DefaultVolume)
	s.persistMu.Unlock()

	s.events.publish(Event{Kind: EventSchedules, At: s.now()})
	return result.ErrorOrNil()
}

// load restores schedules and volume. Anything missing or unreadable falls
// back to the built-in defaults.
func (s *alarmInteractor) load() {
	schedules := s.service.BuiltinSchedules()

	raw, found, err := s.kv.Get(domain.KeySchedules)
	switch {
	case err != nil:
		s.degrade(err)
	case found:
		res, err := transfer.DecodeSchedules(raw, s.service)
		if err != nil {
			logging.Warnf("stored schedules unreadable, using defaults: %v", err)
			break
		}
		if res.Discarded > 0 || res.Repaired > 0 {
			logging.Warnf("stored schedules: %d repaired, %d discarded", res.Repaired, res.Discarded)
		}
		schedules = res.Schedules
	}
	if err := s.store.Replace(schedules); err != nil {
		logging.Warnf("stored schedules rejected, using defaults: %v", err)
		_ = s.store.Replace(s.service.BuiltinSchedules())
	}

	volume := domain.DefaultVolume
	raw, found, err = s.kv.Get(domain.KeyVolume)
	switch {
	case err != nil:
		s.degrade(err)
	case found:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			logging.Warnf("stored volume unreadable: %v", err)
		} else {
			volume = domain.ClampVolume(v)
		}
	}
	s.player.SetVolume(volume)
	logging.Debugf("loaded %d schedule(s), volume %.2f", s.store.Len(), volume)
}

// schedulesChanged saves all unless a newer list was already written.
func (s *alarmInteractor) schedulesChanged(all []domain.Schedule, version uint64) {
	s.events.publish(Event{Kind: EventSchedules, At: s.now()})

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.savedVersion {
		return
	}
	s.savedVersion = version

	data, err := transfer.EncodeSchedules(all)
	if err != nil {
		logging.Errorf("encode schedules: %v", err)
		return
	}
	s.persist(domain.KeySchedules, data)
}

// persist writes key unless storage has already failed.
func (s *alarmInteractor) persist(key string, value []byte) {
	s.mu.Lock()
	degraded := s.degraded
	s.mu.Unlock()
	if degraded {
		return
	}
	if err := s.kv.Set(key, value); err != nil {
		s.degrade(err)
	}
}

// degrade switches to memory-only operation and warns once.
func (s *alarmInteractor) degrade(err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if already {
		return
	}
	msg := "storage unavailable, changes are kept in memory only"
	if errors.Is(err, domain.ErrStorageFull) {
		msg = "storage full, changes are kept in memory only"
	}
	logging.Warnf("%s: %v", msg, err)
	s.notice(err, msg)
}

func (s *alarmInteractor) playbackFailed(err error) {
	if errors.Is(err, domain.ErrPlaybackDenied) {
		s.timeline.Lock()
		s.disarmLocked()
		s.timeline.Unlock()
	}
	s.notice(err, "playback failed")
}

func (s *alarmInteractor) notice(err error, msg string) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	s.events.publish(Event{Kind: EventNotice, At: s.now(), Message: msg, Err: err})
}
