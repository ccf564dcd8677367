package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"appletcore/pkg/domain"
)

const historyParityRuleName = "history_parity"

// NewHistoryParityRule ensures the current tree of every touched, live applet
// equals its history snapshot at the current version.
func NewHistoryParityRule() domain.Rule {
	return historyParityRule{}
}

type historyParityRule struct{}

func (historyParityRule) Name() string { return historyParityRuleName }

func (historyParityRule) Evaluate(ctx context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, appletID := range touchedApplets(changes) {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, err
		}
		applet, err := view.FindApplet(appletID)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return domain.Result{}, err
		}
		if applet.IsDeleted {
			continue
		}
		current, err := loadTree(view, applet)
		if err != nil {
			return domain.Result{}, err
		}
		snap, err := loadHistory(view, appletID, applet.Version)
		if err != nil {
			if domain.IsNotFound(err) {
				res.Violations = append(res.Violations, parityViolation(appletID, "no history at version "+applet.Version))
				continue
			}
			return domain.Result{}, err
		}
		if diff := parityDiff(current, snap); diff != "" {
			res.Violations = append(res.Violations, parityViolation(appletID, diff))
		}
	}
	return res, nil
}

func parityViolation(appletID, msg string) domain.Violation {
	return domain.Violation{
		Rule:     historyParityRuleName,
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("applet %s: %s", appletID, msg),
		Entity:   domain.EntityApplet,
		EntityID: appletID,
	}
}

// parityDiff names the first part of the current tree that differs from the
// snapshot, or returns "" when they match.
func parityDiff(current domain.AppletFull, snap domain.AppletHistoryFull) string {
	if !sameJSON(current.Applet, snap.Applet) {
		return "applet row differs from its history"
	}
	if len(current.Activities) != len(snap.Activities) {
		return fmt.Sprintf("%d activities but %d in history", len(current.Activities), len(snap.Activities))
	}
	for i, act := range current.Activities {
		h := snap.Activities[i]
		if !sameJSON(act.Activity, h.Activity) {
			return fmt.Sprintf("activity %s differs from its history", act.ID)
		}
		if len(act.Items) != len(h.Items) {
			return fmt.Sprintf("activity %s has %d items but %d in history", act.ID, len(act.Items), len(h.Items))
		}
		for j, it := range act.Items {
			if !sameJSON(it, h.Items[j].Item) {
				return fmt.Sprintf("item %s differs from its history", it.ID)
			}
		}
	}
	if len(current.Flows) != len(snap.Flows) {
		return fmt.Sprintf("%d flows but %d in history", len(current.Flows), len(snap.Flows))
	}
	for i, flow := range current.Flows {
		h := snap.Flows[i]
		if !sameJSON(flow.Flow, h.Flow) {
			return fmt.Sprintf("flow %s differs from its history", flow.ID)
		}
		if len(flow.Items) != len(h.Items) {
			return fmt.Sprintf("flow %s has %d items but %d in history", flow.ID, len(flow.Items), len(h.Items))
		}
		for j, fi := range flow.Items {
			if fi != h.Items[j].FlowItem {
				return fmt.Sprintf("flow item %s differs from its history", fi.ID)
			}
		}
	}
	return ""
}

func sameJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}
