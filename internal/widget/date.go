package widget

import (
	"time"

	"schedwidget/internal/instance"
)

// Clock returns the current instant. The orchestrator takes one so tests can
// pin "now".
type Clock func() time.Time

// ResolveDate turns a day preference into the calendar date it refers to,
// as midnight in now's location. "tomorrow" is the next calendar day; any
// other value, including unknown ones, means today.
func ResolveDate(day string, now time.Time) time.Time {
	y, m, d := now.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if day == instance.DayTomorrow {
		return date.AddDate(0, 0, 1)
	}
	return date
}
