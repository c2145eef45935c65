package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/usecase"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"schedules", "s"},
		Short:   "List and edit schedules",
	}
	cmd.AddCommand(
		newScheduleListCmd(),
		newScheduleAddCmd(),
		newScheduleSetCmd(),
		newScheduleToggleCmd(),
		newScheduleDayCmd(),
		newScheduleRmCmd(),
	)
	return cmd
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show every schedule in firing order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			printSchedules(cmd.OutOrStdout(), a.uc.Schedules())
			return nil
		},
	}
}

// scheduleFlags are the editable fields shared by add and set.
type scheduleFlags struct {
	time     string
	sound    string
	days     string
	loops    int
	disabled bool
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.time, "time", "08:00", "time of day HH:MM")
	cmd.Flags().StringVar(&f.sound, "sound", "", "sound id (see 'sounds')")
	cmd.Flags().StringVar(&f.days, "days", "mon-fri", "days, e.g. mon,wed,fri or 1-5 or all")
	cmd.Flags().IntVar(&f.loops, "loops", 1, fmt.Sprintf("plays per firing (%d-%d)", domain.MinLoopCount, domain.MaxLoopCount))
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "create or leave the schedule disabled")
}

// patch returns the fields set on the command line.
func (f *scheduleFlags) patch(cmd *cobra.Command, all bool) (domain.SchedulePatch, error) {
	var p domain.SchedulePatch
	changed := func(name string) bool { return all || cmd.Flags().Changed(name) }
	if changed("time") {
		p.Time = &f.time
	}
	if cmd.Flags().Changed("sound") {
		id := domain.SoundID(f.sound)
		p.SoundID = &id
	}
	if changed("days") {
		days, err := parseDays(f.days)
		if err != nil {
			return p, err
		}
		p.Days = days
	}
	if changed("loops") {
		p.LoopCount = &f.loops
	}
	if changed("disabled") {
		enabled := !f.disabled
		p.Enabled = &enabled
	}
	return p, nil
}

func newScheduleAddCmd() *cobra.Command {
	var f scheduleFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.patch(cmd, true)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			sch, err := a.uc.CreateSchedule(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", describe(sch))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newScheduleSetCmd() *cobra.Command {
	var f scheduleFlags
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Change fields of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.patch(cmd, false)
			if err != nil {
				return err
			}
			return withSchedule(cmd, args[0], func(uc usecase.AlarmUseCase, id string) (domain.Schedule, error) {
				return uc.UpdateSchedule(id, p)
			}, "updated")
		},
	}
	f.register(cmd)
	return cmd
}

func newScheduleToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSchedule(cmd, args[0], func(uc usecase.AlarmUseCase, id string) (domain.Schedule, error) {
				return uc.ToggleSchedule(id)
			}, "toggled")
		},
	}
}

func newScheduleDayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day <id> <day>",
		Short: "Add or remove one weekday (0=Sun..6=Sat or mon, tue, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(args[1])
			if err != nil {
				return err
			}
			return withSchedule(cmd, args[0], func(uc usecase.AlarmUseCase, id string) (domain.Schedule, error) {
				return uc.ToggleDay(id, day)
			}, "updated")
		},
	}
}

func newScheduleRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a schedule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			id, err := resolveID(a.uc.Schedules(), args[0])
			if err != nil {
				return err
			}
			if err := a.uc.DeleteSchedule(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func withSchedule(cmd *cobra.Command, ref string, fn func(usecase.AlarmUseCase, string) (domain.Schedule, error), verb string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	id, err := resolveID(a.uc.Schedules(), ref)
	if err != nil {
		return err
	}
	sch, err := fn(a.uc, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, describe(sch))
	return nil
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(all []domain.Schedule, ref string) (string, error) {
	var match string
	for _, s := range all {
		if s.ID == ref {
			return s.ID, nil
		}
		if ref != "" && strings.HasPrefix(s.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
	}
	return match, nil
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseDay(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, &domain.ValidationError{Field: "days", Reason: fmt.Sprintf("weekday %d out of range 0-6", n)}
		}
		return time.Weekday(n), nil
	}
	if len(s) >= 3 {
		if d, ok := dayNames[s[:3]]; ok {
			return d, nil
		}
	}
	return 0, &domain.ValidationError{Field: "days", Reason: fmt.Sprintf("unknown weekday %q", s)}
}

// parseDays reads "all", "weekdays", "weekend", comma lists and ranges such
// as "mon-fri" or "1-5". Ranges wrap past Saturday.
func parseDays(s string) ([]int, error) {
	var set domain.DaySet
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "daily", "everyday":
		return []int{0, 1, 2, 3, 4, 5, 6}, nil
	case "weekdays":
		return domain.Weekdays.Ints(), nil
	case "weekend", "weekends":
		return []int{0, 6}, nil
	}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseDay(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			set = set.With(from)
			continue
		}
		to, err := parseDay(hi)
		if err != nil {
			return nil, err
		}
		for d := from; ; d = (d + 1) % 7 {
			set = set.With(d)
			if d == to {
				break
			}
		}
	}
	if set.Empty() {
		return nil, &domain.ValidationError{Field: "days", Reason: "at least one day is required"}
	}
	return set.Ints(), nil
}

func describe(s domain.Schedule) string {
	state := "on"
	if !s.Enabled {
		state = "off"
	}
	return fmt.Sprintf("%s %s %s %s x%d [%s]", shortID(s.ID), s.Time, s.SoundID, s.Days, s.LoopCount, state)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printSchedules(out io.Writer, all []domain.Schedule) {
	if len(all) == 0 {
		fmt.Fprintln(out, "no schedules")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSOUND\tDAYS\tLOOPS\tENABLED\tCRON")
	for _, s := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n", shortID(s.ID), s.Time, s.SoundID, s.Days, s.LoopCount, s.Enabled, s.CronExpr())
	}
	_ = w.Flush()
}
