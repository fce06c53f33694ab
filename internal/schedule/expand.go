package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "schedwidget/internal/log"
)

// occurrence is one concrete lesson instance.
type occurrence struct {
	Event lessonEvent
	Start time.Time
	End   time.Time
}

// occurrencesBetween expands events into the instances starting in
// [from, to). Recurring events follow RRULE minus EXDATE; an override event
// whose RECURRENCE-ID matches a generated start replaces that instance.
func occurrencesBetween(events []lessonEvent, from, to time.Time, loc *time.Location) []occurrence {
	if loc == nil {
		loc = time.Local
	}

	base := make(map[string][]lessonEvent)
	overrides := make(map[string][]lessonEvent)
	for _, ev := range events {
		if ev.isOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			base[ev.UID] = append(base[ev.UID], ev)
		}
	}

	var out []occurrence
	for uid, evs := range base {
		for _, ev := range evs {
			for _, start := range instanceStarts(ev, from, to) {
				occ := occurrence{Event: ev, Start: start, End: start.Add(ev.End.Sub(ev.Start))}
				if o, ok := findOverride(overrides[uid], start); ok {
					if !inWindow(o.Start, from, to) {
						// Moved to another day.
						continue
					}
					occ = occurrence{Event: o, Start: o.Start, End: o.End}
				}
				occ.Start = occ.Start.In(loc)
				occ.End = occ.End.In(loc)
				out = append(out, occ)
			}
		}
	}

	// Overrides that moved an instance into the window from outside it.
	for uid, ovs := range overrides {
		for _, o := range ovs {
			if inWindow(o.Start, from, to) && !inWindow(*o.Recurrence, from, to) && len(base[uid]) > 0 {
				out = append(out, occurrence{Event: o, Start: o.Start.In(loc), End: o.End.In(loc)})
			}
		}
	}
	return out
}

// instanceStarts lists the start times of ev inside [from, to).
func instanceStarts(ev lessonEvent, from, to time.Time) []time.Time {
	if ev.RawRRule == "" {
		if inWindow(ev.Start, from, to) {
			return []time.Time{ev.Start}
		}
		return nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("ignoring unparsable RRULE", "uid", ev.UID, "rrule", ev.RawRRule, "reason", err)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	var starts []time.Time
	for _, t := range set.Between(from.In(loc), to.In(loc), true) {
		if inWindow(t, from, to) {
			starts = append(starts, t)
		}
	}
	return starts
}

func findOverride(overrides []lessonEvent, start time.Time) (lessonEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return lessonEvent{}, false
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
