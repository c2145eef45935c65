// Package store keeps the in-memory schedule list in insertion order.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pa-alarm/internal/domain"
)

// ScheduleStore is the authoritative list of schedules. Readers always get
// copies; writers validate a copy before publishing it.
type ScheduleStore struct {
	service *domain.ScheduleService

	mu        sync.RWMutex
	schedules []domain.Schedule
	version   uint64
	onChange  func(all []domain.Schedule, version uint64)
}

// New creates an empty store validating against service.
func New(service *domain.ScheduleService) *ScheduleStore {
	return &ScheduleStore{service: service}
}

// OnChange registers a hook that receives the full list after every
// successful mutation, with the version it was copied at. The hook runs
// outside the store lock, so calls may arrive out of order; a larger
// version is always the newer list.
func (s *ScheduleStore) OnChange(fn func(all []domain.Schedule, version uint64)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// All returns every schedule in insertion order.
func (s *ScheduleStore) All() []domain.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Schedule(nil), s.schedules...)
}

// Enabled returns the enabled schedules in insertion order.
func (s *ScheduleStore) Enabled() []domain.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		if sch.Enabled {
			out = append(out, sch)
		}
	}
	return out
}

// Get returns the schedule with id.
func (s *ScheduleStore) Get(id string) (domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return domain.Schedule{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return s.schedules[i], nil
}

// Add appends sch with a fresh id. The id field of sch is ignored.
func (s *ScheduleStore) Add(sch domain.Schedule) (domain.Schedule, error) {
	sch, err := s.service.Normalize(sch)
	if err != nil {
		return domain.Schedule{}, err
	}
	sch.ID = uuid.NewString()

	s.mu.Lock()
	s.schedules = append(s.schedules, sch)
	s.version++
	s.mu.Unlock()

	s.changed()
	return sch, nil
}

// Update applies patch to the schedule with id. On error the stored value
// is left as it was.
func (s *ScheduleStore) Update(id string, patch domain.SchedulePatch) (domain.Schedule, error) {
	return s.mutate(id, func(cur domain.Schedule) (domain.Schedule, error) {
		return s.service.ApplyPatch(cur, patch)
	})
}

// Toggle flips the enabled flag.
func (s *ScheduleStore) Toggle(id string) (domain.Schedule, error) {
	return s.mutate(id, func(cur domain.Schedule) (domain.Schedule, error) {
		cur.Enabled = !cur.Enabled
		return cur, nil
	})
}

// ToggleDay adds or removes one weekday. Removing the last day is rejected.
func (s *ScheduleStore) ToggleDay(id string, day time.Weekday) (domain.Schedule, error) {
	return s.mutate(id, func(cur domain.Schedule) (domain.Schedule, error) {
		return s.service.ToggleDay(cur, day)
	})
}

// Delete removes the schedule with id.
func (s *ScheduleStore) Delete(id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	s.schedules = append(s.schedules[:i:i], s.schedules[i+1:]...)
	s.version++
	s.mu.Unlock()

	s.changed()
	return nil
}

// Replace swaps the whole list. Every entry is validated first; ids that are
// empty or repeated are regenerated.
func (s *ScheduleStore) Replace(schedules []domain.Schedule) error {
	if _, err := s.swap(schedules); err != nil {
		return err
	}
	s.changed()
	return nil
}

// Restore swaps the whole list like Replace but skips the OnChange hook.
// It returns the version of the new list.
func (s *ScheduleStore) Restore(schedules []domain.Schedule) (uint64, error) {
	return s.swap(schedules)
}

func (s *ScheduleStore) swap(schedules []domain.Schedule) (uint64, error) {
	next := make([]domain.Schedule, 0, len(schedules))
	seen := make(map[string]bool, len(schedules))
	for i, sch := range schedules {
		sch, err := s.service.Normalize(sch)
		if err != nil {
			return 0, fmt.Errorf("schedule %d: %w", i, err)
		}
		if sch.ID == "" || seen[sch.ID] {
			sch.ID = uuid.NewString()
		}
		seen[sch.ID] = true
		next = append(next, sch)
	}

	s.mu.Lock()
	s.schedules = next
	s.version++
	v := s.version
	s.mu.Unlock()
	return v, nil
}

// Len returns the number of schedules.
func (s *ScheduleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schedules)
}

func (s *ScheduleStore) mutate(id string, fn func(domain.Schedule) (domain.Schedule, error)) (domain.Schedule, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Schedule{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	cur := s.schedules[i]
	next, err := fn(cur)
	if err == nil {
		err = s.service.Validate(next)
	}
	if err != nil {
		s.mu.Unlock()
		return cur, err
	}
	s.schedules[i] = next
	s.version++
	s.mu.Unlock()

	s.changed()
	return next, nil
}

func (s *ScheduleStore) indexLocked(id string) int {
	for i, sch := range s.schedules {
		if sch.ID == id {
			return i
		}
	}
	return -1
}

func (s *ScheduleStore) changed() {
	s.mu.RLock()
	fn := s.onChange
	snapshot := append([]domain.Schedule(nil), s.schedules...)
	version := s.version
	s.mu.RUnlock()
	if fn != nil {
		fn(snapshot, version)
	}
}
