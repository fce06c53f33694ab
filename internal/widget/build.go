// Package widget builds the declarative view tree of the schedule widget.
//
// Everything here is pure: the same RenderModel always produces the same
// Snapshot, and malformed lesson data never makes a build fail.
package widget

import (
	"time"

	"schedwidget/internal/instance"
	"schedwidget/internal/model"
)

const timestampLayout = "15:04"

// RenderModel is the per-refresh input of Build. It is never persisted.
type RenderModel struct {
	Instance instance.ID
	Group    string    // already resolved, never "last"
	Updated  time.Time // shown as HH:mm
	Layout   Variant   // DefaultTemplate unless the instance is customized
	Day      string    // day preference, labelled only on customized templates
	Lessons  []model.Lesson
}

// NewRenderModel derives the template from the instance config.
func NewRenderModel(id instance.ID, cfg instance.Config, group string, updated time.Time, lessons []model.Lesson) RenderModel {
	layout := DefaultTemplate
	if cfg.Customized {
		layout = SelectLayout(cfg.Theme, cfg.DynamicColor)
	}
	return RenderModel{
		Instance: id,
		Group:    group,
		Updated:  updated,
		Layout:   layout,
		Day:      cfg.Day,
		Lessons:  lessons,
	}
}

// Build produces the full view tree for m.
func Build(m RenderModel, l Labels) Snapshot {
	header := Node{
		ID:   RegionHeader,
		Kind: KindContainer,
		Children: []Node{
			{ID: RegionGroup, Kind: KindText, Text: l.ForGroup + " " + m.Group},
			{ID: RegionUpdated, Kind: KindText, Text: l.Updated + " " + m.Updated.Format(timestampLayout)},
			{ID: RegionRefresh, Kind: KindButton, Text: l.Refresh},
		},
	}

	root := Node{ID: RegionRoot, Kind: KindContainer, Children: []Node{header}}

	if m.Layout != DefaultTemplate {
		if label, ok := dayLabel(m.Day, l); ok {
			root.Children = append(root.Children, Node{ID: RegionDay, Kind: KindText, Text: label})
		}
	}

	root.Children = append(root.Children, BuildSchedule(m.Lessons, l))

	return Snapshot{
		Instance: m.Instance,
		Template: m.Layout,
		Root:     root,
		BuiltAt:  m.Updated,
	}
}

// BuildSchedule produces only the schedule region: one placeholder row for
// an empty day, otherwise one row per lesson in input order. Rows at odd
// 1-based positions get the alternate background.
func BuildSchedule(lessons []model.Lesson, l Labels) Node {
	sched := Node{ID: RegionSchedule, Kind: KindContainer}
	if len(lessons) == 0 {
		sched.Children = []Node{{Kind: KindPlaceholder, Text: l.NoLessons}}
		return sched
	}

	sched.Children = make([]Node, 0, len(lessons))
	for i, lesson := range lessons {
		style := StyleDefault
		if (i+1)%2 == 1 {
			style = StyleAlternate
		}
		sched.Children = append(sched.Children, Node{
			Kind:  KindRow,
			Style: style,
			Fields: &RowFields{
				Number:  lesson.Number,
				Subject: lesson.Subject,
				Teacher: lesson.Teacher,
				Room:    lesson.Room,
			},
		})
	}
	return sched
}

func dayLabel(day string, l Labels) (string, bool) {
	switch day {
	case instance.DayToday:
		return l.Today, true
	case instance.DayTomorrow:
		return l.Tomorrow, true
	default:
		// Unknown day values leave the template's own label in place.
		return "", false
	}
}
