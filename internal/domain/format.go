package domain

import "fmt"

// FormatCountdown renders seconds the way the countdown display does:
// days and hours when at least a day remains, hours and minutes when at
// least an hour remains, otherwise minutes and seconds.
func FormatCountdown(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / secondsPerDay
	hrs := (seconds % secondsPerDay) / 3600
	mins := (seconds % 3600) / 60
	secs := seconds % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hrs)
	case hrs > 0:
		return fmt.Sprintf("%dh %dm", hrs, mins)
	default:
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
}
