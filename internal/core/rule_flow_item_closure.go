package core

import (
	"context"
	"fmt"

	"appletcore/pkg/domain"
)

const flowItemClosureRuleName = "flow_item_closure"

// NewFlowItemClosureRule ensures every flow item points at an activity of the
// same applet, in the current tree and in the latest history version.
func NewFlowItemClosureRule() domain.Rule {
	return flowItemClosureRule{}
}

type flowItemClosureRule struct{}

func (flowItemClosureRule) Name() string { return flowItemClosureRuleName }

func (flowItemClosureRule) Evaluate(ctx context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
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
		current, err := checkCurrentClosure(view, appletID)
		if err != nil {
			return domain.Result{}, err
		}
		res.Violations = append(res.Violations, current...)
		history, err := checkHistoryClosure(view, appletID, applet.Version)
		if err != nil {
			return domain.Result{}, err
		}
		res.Violations = append(res.Violations, history...)
	}
	return res, nil
}

func checkCurrentClosure(view domain.TransactionView, appletID string) ([]domain.Violation, error) {
	activities, err := view.ListActivities(appletID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		known[a.ID] = struct{}{}
	}
	flows, err := view.ListFlows(appletID)
	if err != nil {
		return nil, err
	}
	var out []domain.Violation
	for _, f := range flows {
		items, err := view.ListFlowItems(f.ID)
		if err != nil {
			return nil, err
		}
		for _, fi := range items {
			if _, ok := known[fi.ActivityID]; ok {
				continue
			}
			out = append(out, domain.Violation{
				Rule:     flowItemClosureRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("flow %s item %s references activity %s outside applet %s", f.Name, fi.ID, fi.ActivityID, appletID),
				Entity:   domain.EntityFlowItem,
				EntityID: fi.ID,
			})
		}
	}
	return out, nil
}

func checkHistoryClosure(view domain.TransactionView, appletID, version string) ([]domain.Violation, error) {
	appletIDV := domain.IDVersionOf(appletID, version)
	activities, err := view.ListActivityHistories(appletIDV)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		known[a.IDVersion] = struct{}{}
	}
	flows, err := view.ListFlowHistories(appletIDV)
	if err != nil {
		return nil, err
	}
	var out []domain.Violation
	for _, f := range flows {
		items, err := view.ListFlowItemHistories(f.IDVersion)
		if err != nil {
			return nil, err
		}
		for _, fi := range items {
			_, ok := known[fi.ActivityIDVersion]
			if ok && fi.ActivityIDVersion == domain.IDVersionOf(fi.ActivityID, version) {
				continue
			}
			out = append(out, domain.Violation{
				Rule:     flowItemClosureRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("flow item history %s references %s outside %s", fi.IDVersion, fi.ActivityIDVersion, appletIDV),
				Entity:   domain.EntityFlowItemHistory,
				EntityID: fi.IDVersion,
			})
		}
	}
	return out, nil
}
