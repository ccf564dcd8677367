package changes

import (
	"cmp"
	"slices"

	"appletcore/pkg/domain"
)

type pair[T any] struct {
	id       string
	order    int
	old, new *T
}

// group pairs rows of two versions by stable id and sorts the pairs by
// (order, id), taking the order of the newer row when both exist.
func group[T any](olds, news []T, key func(T) (string, int)) []pair[T] {
	byID := make(map[string]*pair[T], len(olds)+len(news))
	var out []*pair[T]
	for i := range olds {
		id, order := key(olds[i])
		p := &pair[T]{id: id, order: order, old: &olds[i]}
		byID[id] = p
		out = append(out, p)
	}
	for i := range news {
		id, order := key(news[i])
		if p, ok := byID[id]; ok {
			p.new = &news[i]
			p.order = order
			continue
		}
		p := &pair[T]{id: id, order: order, new: &news[i]}
		byID[id] = p
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *pair[T]) int {
		if c := cmp.Compare(a.order, b.order); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	res := make([]pair[T], len(out))
	for i, p := range out {
		res[i] = *p
	}
	return res
}

// Compare diffs two snapshots of the same applet. Comparing a snapshot with
// itself yields an empty change set.
func Compare(oldV, newV domain.AppletHistoryFull) ChangeSet {
	cs := ChangeSet{
		AppletID:    newV.ID,
		FromVersion: oldV.Version,
		ToVersion:   newV.Version,
		Applet:      appletFields(oldV.Applet, newV.Applet),
	}

	activityNames := map[string]string{}
	for _, a := range oldV.Activities {
		activityNames[a.ID] = a.Name
	}
	for _, a := range newV.Activities {
		activityNames[a.ID] = a.Name
	}

	for _, p := range group(oldV.Activities, newV.Activities, func(a domain.ActivityHistoryFull) (string, int) { return a.ID, a.Order }) {
		if c, ok := compareActivity(p); ok {
			cs.Activities = append(cs.Activities, c)
		}
	}
	for _, p := range group(oldV.Flows, newV.Flows, func(f domain.FlowHistoryFull) (string, int) { return f.ID, f.Order }) {
		if c, ok := compareFlow(p, activityNames); ok {
			cs.Flows = append(cs.Flows, c)
		}
	}
	return cs
}

func compareActivity(p pair[domain.ActivityHistoryFull]) (ActivityChange, bool) {
	switch {
	case p.old == nil:
		return ActivityChange{ID: p.id, Name: p.new.Name, Action: Added}, true
	case p.new == nil:
		return ActivityChange{ID: p.id, Name: p.old.Name, Action: Removed}, true
	}
	c := ActivityChange{
		ID:      p.id,
		Name:    p.old.Name,
		Action:  Updated,
		Changes: activityFields(p.old.Activity, p.new.Activity),
	}
	for _, ip := range group(p.old.Items, p.new.Items, func(i domain.ItemHistory) (string, int) { return i.ID, i.Order }) {
		switch {
		case ip.old == nil:
			c.Items = append(c.Items, ItemChange{ID: ip.id, Name: ip.new.Name, Action: Added})
		case ip.new == nil:
			c.Items = append(c.Items, ItemChange{ID: ip.id, Name: ip.old.Name, Action: Removed})
		default:
			if fields := itemFields(ip.old.Item, ip.new.Item); len(fields) > 0 {
				c.Items = append(c.Items, ItemChange{ID: ip.id, Name: ip.old.Name, Action: Updated, Changes: fields})
			}
		}
	}
	return c, len(c.Changes) > 0 || len(c.Items) > 0
}

func compareFlow(p pair[domain.FlowHistoryFull], activityNames map[string]string) (FlowChange, bool) {
	switch {
	case p.old == nil:
		return FlowChange{ID: p.id, Name: p.new.Name, Action: Added}, true
	case p.new == nil:
		return FlowChange{ID: p.id, Name: p.old.Name, Action: Removed}, true
	}
	c := FlowChange{
		ID:      p.id,
		Name:    p.old.Name,
		Action:  Updated,
		Changes: flowFields(p.old.Flow, p.new.Flow),
	}
	for _, ip := range group(p.old.Items, p.new.Items, func(i domain.FlowItemHistory) (string, int) { return i.ID, i.Order }) {
		switch {
		case ip.old == nil:
			c.Items = append(c.Items, FlowItemChange{ID: ip.id, Activity: activityNames[ip.new.ActivityID], Action: Added})
		case ip.new == nil:
			c.Items = append(c.Items, FlowItemChange{ID: ip.id, Activity: activityNames[ip.old.ActivityID], Action: Removed})
		default:
			var m messages
			if ip.old.ActivityID != ip.new.ActivityID {
				m.add("Activity was changed to %s", activityNames[ip.new.ActivityID])
			}
			m.number("Flow Item Order", ip.old.Order, ip.new.Order)
			if len(m) > 0 {
				c.Items = append(c.Items, FlowItemChange{ID: ip.id, Activity: activityNames[ip.old.ActivityID], Action: Updated, Changes: m})
			}
		}
	}
	return c, len(c.Changes) > 0 || len(c.Items) > 0
}
