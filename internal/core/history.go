package core

import (
	"fmt"

	"appletcore/pkg/domain"
)

// recordHistory inserts one immutable row per written current-tree row, keyed
// by "{id}_{version}". Rows are inserted applet first so every foreign key
// resolves: applet, activities, items, flows, flow items.
func recordHistory(tx domain.Transaction, userID string, applet domain.Applet, t tree) (domain.AppletHistoryFull, error) {
	v := applet.Version
	appletIDV := domain.IDVersionOf(applet.ID, v)
	snap := domain.AppletHistoryFull{AppletHistory: domain.AppletHistory{
		IDVersion: appletIDV,
		UserID:    userID,
		Applet:    applet.Clone(),
	}}
	if err := tx.InsertAppletHistory(snap.AppletHistory); err != nil {
		return domain.AppletHistoryFull{}, fmt.Errorf("insert applet history %s: %w", appletIDV, err)
	}

	activityIDV := make(map[string]string, len(t.activities))
	for _, act := range t.activities {
		h := domain.ActivityHistory{
			IDVersion:       domain.IDVersionOf(act.ID, v),
			AppletIDVersion: appletIDV,
			Activity:        act.Activity.Clone(),
		}
		if err := tx.InsertActivityHistory(h); err != nil {
			return domain.AppletHistoryFull{}, fmt.Errorf("insert activity history %s: %w", h.IDVersion, err)
		}
		activityIDV[act.ID] = h.IDVersion
		snap.Activities = append(snap.Activities, domain.ActivityHistoryFull{ActivityHistory: h})
	}
	for i, act := range t.activities {
		for _, it := range act.Items {
			h := domain.ItemHistory{
				IDVersion:         domain.IDVersionOf(it.ID, v),
				ActivityIDVersion: activityIDV[act.ID],
				Item:              it.Clone(),
			}
			if err := tx.InsertItemHistory(h); err != nil {
				return domain.AppletHistoryFull{}, fmt.Errorf("insert item history %s: %w", h.IDVersion, err)
			}
			snap.Activities[i].Items = append(snap.Activities[i].Items, h)
		}
	}

	for _, flow := range t.flows {
		h := domain.FlowHistory{
			IDVersion:       domain.IDVersionOf(flow.ID, v),
			AppletIDVersion: appletIDV,
			Flow:            flow.Flow.Clone(),
		}
		if err := tx.InsertFlowHistory(h); err != nil {
			return domain.AppletHistoryFull{}, fmt.Errorf("insert flow history %s: %w", h.IDVersion, err)
		}
		snap.Flows = append(snap.Flows, domain.FlowHistoryFull{FlowHistory: h})
	}
	for i, flow := range t.flows {
		for _, fi := range flow.Items {
			h := domain.FlowItemHistory{
				IDVersion:         domain.IDVersionOf(fi.ID, v),
				FlowIDVersion:     snap.Flows[i].IDVersion,
				ActivityIDVersion: activityIDV[fi.ActivityID],
				FlowItem:          fi,
			}
			if err := tx.InsertFlowItemHistory(h); err != nil {
				return domain.AppletHistoryFull{}, fmt.Errorf("insert flow item history %s: %w", h.IDVersion, err)
			}
			snap.Flows[i].Items = append(snap.Flows[i].Items, h)
		}
	}
	return snap, nil
}

// loadHistory assembles the historical tree of appletID at version.
func loadHistory(view domain.TransactionView, appletID, version string) (domain.AppletHistoryFull, error) {
	appletIDV := domain.IDVersionOf(appletID, version)
	applet, err := view.FindAppletHistory(appletIDV)
	if err != nil {
		return domain.AppletHistoryFull{}, err
	}
	snap := domain.AppletHistoryFull{AppletHistory: applet}
	activities, err := view.ListActivityHistories(appletIDV)
	if err != nil {
		return domain.AppletHistoryFull{}, err
	}
	for _, act := range activities {
		items, err := view.ListItemHistories(act.IDVersion)
		if err != nil {
			return domain.AppletHistoryFull{}, err
		}
		snap.Activities = append(snap.Activities, domain.ActivityHistoryFull{ActivityHistory: act, Items: items})
	}
	flows, err := view.ListFlowHistories(appletIDV)
	if err != nil {
		return domain.AppletHistoryFull{}, err
	}
	for _, flow := range flows {
		items, err := view.ListFlowItemHistories(flow.IDVersion)
		if err != nil {
			return domain.AppletHistoryFull{}, err
		}
		snap.Flows = append(snap.Flows, domain.FlowHistoryFull{FlowHistory: flow, Items: items})
	}
	return snap, nil
}
