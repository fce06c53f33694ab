// Package termview draws a widget snapshot in the terminal.
package termview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"schedwidget/internal/widget"
)

// Theme holds the styles of one template variant.
type Theme struct {
	Frame     lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Button    lipgloss.Style
	Row       lipgloss.Style
	AltRow    lipgloss.Style
	Number    lipgloss.Style
	Teacher   lipgloss.Style
	Empty     lipgloss.Style
	RowWidth  int
	NumberCol int
}

func newTheme(fg, bg, alt, accent lipgloss.Color) Theme {
	return Theme{
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Foreground(fg).
			Padding(0, 1),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Button:    lipgloss.NewStyle().Foreground(bg).Background(accent).Padding(0, 1),
		Row:       lipgloss.NewStyle().Foreground(fg),
		AltRow:    lipgloss.NewStyle().Foreground(fg).Background(alt),
		Number:    lipgloss.NewStyle().Bold(true).Width(3),
		Teacher:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888")),
		Empty:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Align(lipgloss.Center),
		RowWidth:  40,
		NumberCol: 3,
	}
}

var themes = map[widget.Variant]Theme{
	widget.DefaultTemplate:        newTheme("#1B1B1F", "#FFFFFF", "#EEF0F5", "#3F5F90"),
	widget.VariantDay:             newTheme("#1B1B1F", "#FFFFFF", "#EEF0F5", "#3F5F90"),
	widget.VariantDayNight:        newTheme("#E4E2E6", "#1B1B1F", "#2B2C31", "#A8C8FF"),
	widget.VariantNight:           newTheme("#E4E2E6", "#1B1B1F", "#2B2C31", "#A8C8FF"),
	widget.VariantDynamicDay:      newTheme("#1D1B20", "#F3EDF7", "#E8DEF8", "#6750A4"),
	widget.VariantDynamicDayNight: newTheme("#E6E0E9", "#211F26", "#4A4458", "#D0BCFF"),
	widget.VariantDynamicNight:    newTheme("#E6E0E9", "#211F26", "#4A4458", "#D0BCFF"),
}

// ThemeFor returns the styles of v, or the default template's.
func ThemeFor(v widget.Variant) Theme {
	if t, ok := themes[v]; ok {
		return t
	}
	return themes[widget.DefaultTemplate]
}

// Render draws snap with the theme of its template.
func Render(snap widget.Snapshot) string {
	t := ThemeFor(snap.Template)
	var lines []string

	if header, ok := snap.Region(widget.RegionHeader); ok {
		lines = append(lines, t.header(header))
	}
	if day, ok := snap.Region(widget.RegionDay); ok {
		lines = append(lines, t.Dim.Render(day.Text))
	}
	for i, row := range snap.Rows() {
		if i == 0 {
			lines = append(lines, "")
		}
		lines = append(lines, t.row(row))
	}
	return t.Frame.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (t Theme) header(n widget.Node) string {
	var parts []string
	for _, c := range n.Children {
		switch c.ID {
		case widget.RegionGroup:
			parts = append(parts, t.Title.Render(c.Text))
		case widget.RegionRefresh:
			parts = append(parts, t.Button.Render(c.Text))
		default:
			parts = append(parts, t.Dim.Render(c.Text))
		}
	}
	return strings.Join(parts, "  ")
}

func (t Theme) row(n widget.Node) string {
	style := t.Row
	if n.Style == widget.StyleAlternate {
		style = t.AltRow
	}
	style = style.Width(t.RowWidth)

	if n.Kind == widget.KindPlaceholder || n.Fields == nil {
		return style.Inherit(t.Empty).Render(n.Text)
	}

	f := n.Fields
	first := t.Number.Render(f.Number) + f.Subject
	if f.Room != "" {
		first += "  " + t.Dim.Render(f.Room)
	}
	if f.Teacher == "" {
		return style.Render(first)
	}
	second := strings.Repeat(" ", t.NumberCol) + t.Teacher.Render(f.Teacher)
	return style.Render(first + "\n" + second)
}
