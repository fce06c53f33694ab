package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "schedwidget/internal/log"
)

const propLessonNumber = "X-LESSON-NUMBER"

// lessonEvent is a VEVENT read as a (possibly recurring) lesson.
type lessonEvent struct {
	Source Source
	UID    string

	Subject string
	Teacher string
	Room    string
	Number  string
	Groups  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID of an overridden instance
}

func (e lessonEvent) isOverride() bool {
	return e.Recurrence != nil
}

// parseFeed reads every VEVENT of an ICS body. Broken events are logged and
// skipped so one bad entry does not hide a whole timetable.
func parseFeed(src Source, body []byte) ([]lessonEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %s: %w", src.ID, err)
	}

	var events []lessonEvent
	for _, ve := range cal.Events() {
		ev, err := parseLesson(src, ve)
		if err != nil {
			appLog.Warn("skipping ics event", "id", src.ID, "reason", err)
			continue
		}
		events = append(events, ev)
	}
	appLog.Debug("ics parsed", "id", src.ID, "events", len(events))
	return events, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func parseLesson(src Source, ve *ical.VEvent) (lessonEvent, error) {
	ev := lessonEvent{Source: src}

	ev.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if ev.UID == "" {
		return ev, errors.New("missing UID")
	}

	ev.Subject = propValue(ve, ical.ComponentPropertySummary)
	ev.Room = propValue(ve, ical.ComponentPropertyLocation)
	ev.Number = propValue(ve, ical.ComponentProperty(propLessonNumber))
	// The first description line names the teacher.
	ev.Teacher, _, _ = strings.Cut(propValue(ve, ical.ComponentPropertyDescription), "\n")
	ev.Teacher = strings.TrimSpace(ev.Teacher)

	if src.Group != "" {
		ev.Groups = []string{src.Group}
	} else {
		for _, g := range strings.Split(propValue(ve, ical.ComponentProperty("CATEGORIES")), ",") {
			if g = strings.TrimSpace(g); g != "" {
				ev.Groups = append(ev.Groups, g)
			}
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		ev.End = end
	} else {
		ev.End = start
	}

	loc := start.Location()
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			ev.AllDay = true
		}
		if !strings.Contains(p.Value, "T") {
			ev.AllDay = true
		}
	}

	ev.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, loc); err == nil {
			ev.Recurrence = &t
		}
	}

	return ev, nil
}

// parseICSTime parses DATE and DATE-TIME values. Floating and date-only
// values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
