package widget

import (
	"time"

	"schedwidget/internal/instance"
)

// Region ids addressable by partial updates and deferred actions.
const (
	RegionRoot     = "widget_wrapper"
	RegionHeader   = "header"
	RegionGroup    = "group"
	RegionUpdated  = "updated"
	RegionDay      = "day"
	RegionSchedule = "schedule"
	RegionRefresh  = "refresh_button"
)

// NodeKind says how a Node is drawn.
type NodeKind string

const (
	KindContainer   NodeKind = "container"
	KindText        NodeKind = "text"
	KindButton      NodeKind = "button"
	KindRow         NodeKind = "row"
	KindPlaceholder NodeKind = "placeholder"
)

// Style is the background style of a lesson row.
type Style string

const (
	StyleDefault   Style = "default"
	StyleAlternate Style = "alternate"
)

// RowFields are the cells of one lesson row.
type RowFields struct {
	Number  string `json:"number"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
}

// Node is one element of the declarative view tree.
type Node struct {
	ID       string     `json:"id,omitempty"`
	Kind     NodeKind   `json:"kind"`
	Text     string     `json:"text,omitempty"`
	Style    Style      `json:"style,omitempty"`
	Fields   *RowFields `json:"fields,omitempty"`
	Children []Node     `json:"children,omitempty"`
}

// ActionKind names what the host does when an action fires.
type ActionKind string

const (
	// ActionRefresh re-runs the refresh procedure for the instance.
	ActionRefresh ActionKind = "refresh"
	// ActionOpenApp opens the application's main entry point.
	ActionOpenApp ActionKind = "open_app"
)

// Action is a deferred action descriptor bound to a region. The host runs it
// when the user interacts with that region.
type Action struct {
	Region   string      `json:"region"`
	Kind     ActionKind  `json:"kind"`
	Instance instance.ID `json:"instance"`
}

// Snapshot is a complete view tree for one instance. Treat it as immutable:
// helpers return modified copies.
type Snapshot struct {
	Instance instance.ID `json:"instance"`
	Template Variant     `json:"template"`
	Root     Node        `json:"root"`
	Actions  []Action    `json:"actions,omitempty"`
	BuiltAt  time.Time   `json:"built_at"`
}

// Region finds the node with the given id.
func (s Snapshot) Region(id string) (Node, bool) {
	return findNode(s.Root, id)
}

// WithRegion returns a copy of s where the node with the given id is
// replaced by n. The second result is false if no such region exists.
func (s Snapshot) WithRegion(id string, n Node) (Snapshot, bool) {
	root, ok := replaceNode(s.Root, id, n)
	if !ok {
		return s, false
	}
	out := s
	out.Root = root
	return out, true
}

// WithActions returns a copy of s with the given actions attached.
func (s Snapshot) WithActions(actions ...Action) Snapshot {
	out := s
	out.Actions = append(append([]Action(nil), s.Actions...), actions...)
	return out
}

// Rows returns the lesson and placeholder rows of the schedule region.
func (s Snapshot) Rows() []Node {
	sched, ok := s.Region(RegionSchedule)
	if !ok {
		return nil
	}
	return sched.Children
}

func findNode(n Node, id string) (Node, bool) {
	if n.ID == id {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := findNode(c, id); ok {
			return found, true
		}
	}
	return Node{}, false
}

func replaceNode(n Node, id string, repl Node) (Node, bool) {
	if n.ID == id {
		return repl, true
	}
	for i, c := range n.Children {
		if r, ok := replaceNode(c, id, repl); ok {
			children := append([]Node(nil), n.Children...)
			children[i] = r
			n.Children = children
			return n, true
		}
	}
	return n, false
}
