package model

import "time"

// Lesson is a single scheduled class as delivered by the lesson repository.
// The widget treats it as read-only; fields may be empty.
type Lesson struct {
	Date time.Time // calendar day the lesson belongs to

	Number  string // position within the day, e.g. "1"
	Subject string
	Teacher string
	Room    string
	Times   string // e.g. "08:30-10:00"

	Group string
}
