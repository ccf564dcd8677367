// Package changes computes the structured difference between two historical
// snapshots of an applet and renders it as ordered, human-readable lines.
//
// The comparison is pure: callers load both snapshots and pass them in. Output
// order is deterministic. Applet fields come first in declaration order, then
// activities, items, flows and flow items sorted by (order, id).
package changes

import "strings"

// Action classifies an entity-level change.
type Action string

// Entity-level actions.
const (
	Added   Action = "added"
	Removed Action = "removed"
	Updated Action = "updated"
)

// ItemChange describes one added, removed or updated item.
type ItemChange struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Action  Action   `json:"action"`
	Changes []string `json:"changes,omitempty"`
}

// ActivityChange describes one activity and the changes of its items.
type ActivityChange struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Action  Action       `json:"action"`
	Changes []string     `json:"changes,omitempty"`
	Items   []ItemChange `json:"items,omitempty"`
}

// FlowItemChange describes one flow item.
type FlowItemChange struct {
	ID       string   `json:"id"`
	Activity string   `json:"activity"`
	Action   Action   `json:"action"`
	Changes  []string `json:"changes,omitempty"`
}

// FlowChange describes one flow and the changes of its items.
type FlowChange struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Action  Action           `json:"action"`
	Changes []string         `json:"changes,omitempty"`
	Items   []FlowItemChange `json:"items,omitempty"`
}

// ChangeSet is the typed diff between two applet versions.
type ChangeSet struct {
	AppletID    string           `json:"applet_id"`
	FromVersion string           `json:"from_version"`
	ToVersion   string           `json:"to_version"`
	Applet      []string         `json:"applet,omitempty"`
	Activities  []ActivityChange `json:"activities,omitempty"`
	Flows       []FlowChange     `json:"activity_flows,omitempty"`
}

// Empty reports whether the two versions are indistinguishable.
func (c ChangeSet) Empty() bool {
	return len(c.Applet) == 0 && len(c.Activities) == 0 && len(c.Flows) == 0
}

// Count returns the number of top-level changes: applet field messages plus
// changed activities and flows.
func (c ChangeSet) Count() int {
	return len(c.Applet) + len(c.Activities) + len(c.Flows)
}

// Lines flattens the change set. Nested changes are indented two spaces per level.
func (c ChangeSet) Lines() []string {
	var out []string
	out = append(out, c.Applet...)
	for _, a := range c.Activities {
		out = append(out, "Activity "+a.Name+" was "+string(a.Action))
		out = appendIndented(out, 1, a.Changes)
		for _, it := range a.Items {
			out = append(out, indent(1)+"Item "+it.Name+" was "+string(it.Action))
			out = appendIndented(out, 2, it.Changes)
		}
	}
	for _, f := range c.Flows {
		out = append(out, "Activity Flow "+f.Name+" was "+string(f.Action))
		out = appendIndented(out, 1, f.Changes)
		for _, fi := range f.Items {
			out = append(out, indent(1)+"Flow item "+fi.Activity+" was "+string(fi.Action))
			out = appendIndented(out, 2, fi.Changes)
		}
	}
	return out
}

// String renders Lines joined by newlines.
func (c ChangeSet) String() string {
	return strings.Join(c.Lines(), "\n")
}

func indent(level int) string { return strings.Repeat("  ", level) }

func appendIndented(out []string, level int, lines []string) []string {
	for _, l := range lines {
		out = append(out, indent(level)+l)
	}
	return out
}
