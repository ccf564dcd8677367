package memory

import (
	"cmp"
	"slices"

	"appletcore/pkg/domain"
)

// Snapshot captures a point-in-time copy of every table in the store.
type Snapshot struct {
	Applets           map[string]Applet                 `json:"applets"`
	Activities        map[string]Activity               `json:"activities"`
	Items             map[string]Item                   `json:"items"`
	Flows             map[string]Flow                   `json:"flows"`
	FlowItems         map[string]FlowItem               `json:"flow_items"`
	AppletHistories   map[string]domain.AppletHistory   `json:"applet_histories"`
	ActivityHistories map[string]domain.ActivityHistory `json:"activity_histories"`
	ItemHistories     map[string]domain.ItemHistory     `json:"item_histories"`
	FlowHistories     map[string]domain.FlowHistory     `json:"flow_histories"`
	FlowItemHistories map[string]domain.FlowItemHistory `json:"flow_item_histories"`
	EventLinks        []EventLink                       `json:"event_links"`
}

// ExportState returns a deep copy of the committed state. Event links are
// listed in insertion order.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	state := s.state.clone()
	s.mu.RUnlock()

	snap := Snapshot{
		Applets:           make(map[string]Applet, len(state.applets)),
		Activities:        make(map[string]Activity, len(state.activities)),
		Items:             make(map[string]Item, len(state.items)),
		Flows:             make(map[string]Flow, len(state.flows)),
		FlowItems:         make(map[string]FlowItem, len(state.flowItems)),
		AppletHistories:   make(map[string]domain.AppletHistory, len(state.appletHistories)),
		ActivityHistories: make(map[string]domain.ActivityHistory, len(state.activityHistories)),
		ItemHistories:     make(map[string]domain.ItemHistory, len(state.itemHistories)),
		FlowHistories:     make(map[string]domain.FlowHistory, len(state.flowHistories)),
		FlowItemHistories: make(map[string]domain.FlowItemHistory, len(state.flowItemHistories)),
	}
	for k, v := range state.applets {
		snap.Applets[k] = v.Clone()
	}
	for k, v := range state.activities {
		snap.Activities[k] = v.Clone()
	}
	for k, v := range state.items {
		snap.Items[k] = v.Clone()
	}
	for k, v := range state.flows {
		snap.Flows[k] = v.Clone()
	}
	for k, v := range state.flowItems {
		snap.FlowItems[k] = v
	}
	for k, v := range state.appletHistories {
		v.Applet = v.Applet.Clone()
		snap.AppletHistories[k] = v
	}
	for k, v := range state.activityHistories {
		v.Activity = v.Activity.Clone()
		snap.ActivityHistories[k] = v
	}
	for k, v := range state.itemHistories {
		v.Item = v.Item.Clone()
		snap.ItemHistories[k] = v
	}
	for k, v := range state.flowHistories {
		v.Flow = v.Flow.Clone()
		snap.FlowHistories[k] = v
	}
	for k, v := range state.flowItemHistories {
		snap.FlowItemHistories[k] = v
	}
	ordered := make([]linkKey, 0, len(state.links))
	for key := range state.links {
		ordered = append(ordered, key)
	}
	slices.SortFunc(ordered, func(a, b linkKey) int { return cmp.Compare(state.linkSeq[a], state.linkSeq[b]) })
	for _, key := range ordered {
		snap.EventLinks = append(snap.EventLinks, state.links[key])
	}
	return snap
}
