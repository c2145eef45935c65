package domain

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// MatchResult is the outcome of matching one minute.
// Only one schedule fires per minute: the first due schedule in store
// (insertion) order. Every other due schedule is dropped for that minute.
type MatchResult struct {
	Winner  Schedule
	Fired   bool
	Dropped []Schedule
}

// Fires returns the schedules to play: zero or one.
func (r MatchResult) Fires() []Schedule {
	if !r.Fired {
		return nil
	}
	return []Schedule{r.Winner}
}

// Match returns the enabled schedules due at now's minute, resolved to a
// single winner. schedules must be in store order.
func Match(now time.Time, schedules []Schedule) (MatchResult, error) {
	g := gronx.New()
	var res MatchResult
	for _, sch := range schedules {
		if !sch.Enabled || sch.Days.Empty() {
			continue
		}
		due, err := g.IsDue(sch.CronExpr(), now)
		if err != nil {
			return MatchResult{}, fmt.Errorf("match schedule %s: %w", sch.ID, err)
		}
		if !due {
			continue
		}
		if !res.Fired {
			res.Winner = sch
			res.Fired = true
			continue
		}
		res.Dropped = append(res.Dropped, sch)
	}
	return res, nil
}
