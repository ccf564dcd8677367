package core

import (
	"fmt"
	"slices"
	"time"

	"appletcore/pkg/domain"
)

// tree is the staged rendition of a request: ids assigned, order columns set
// and flow item keys resolved. Nothing in it has been written yet.
type tree struct {
	activities []domain.ActivityFull
	flows      []domain.FlowFull
}

// buildTree runs the three stages over req. Stage one assigns activity ids and
// records key to id; stage two resolves flow items through that map; stage
// three emits the rows. The request is not modified.
func buildTree(appletID string, req domain.AppletRequest, now time.Time, newID func() string) (tree, error) {
	keys := make(map[string]string, len(req.Activities))
	var t tree
	for i, ar := range req.Activities {
		id := ar.ID
		if id == "" {
			id = newID()
		}
		keys[ar.Key] = id
		act := domain.Activity{
			ID:                 id,
			AppletID:           appletID,
			Key:                ar.Key,
			Name:               ar.Name,
			Description:        ar.Description.Clone(),
			SplashScreen:       ar.SplashScreen,
			Image:              ar.Image,
			ShowAllAtOnce:      ar.ShowAllAtOnce,
			IsSkippable:        ar.IsSkippable,
			IsReviewable:       ar.IsReviewable,
			ResponseIsEditable: ar.ResponseIsEditable,
			IsHidden:           ar.IsHidden,
			Order:              i + 1,
			ScoresAndReports:   ar.ScoresAndReports,
			SubscaleSetting:    ar.SubscaleSetting,
			CreatedAt:          now,
		}
		act = act.Clone()
		items := make([]domain.Item, len(ar.Items))
		for j, src := range ar.Items {
			it := src.Clone()
			if it.ID == "" {
				it.ID = newID()
			}
			it.ActivityID = id
			it.Order = j + 1
			it.Normalize()
			items[j] = it
		}
		t.activities = append(t.activities, domain.ActivityFull{Activity: act, Items: items})
	}

	for i, fr := range req.Flows {
		id := fr.ID
		if id == "" {
			id = newID()
		}
		flow := domain.FlowFull{Flow: domain.Flow{
			ID:             id,
			AppletID:       appletID,
			Name:           fr.Name,
			Description:    fr.Description.Clone(),
			IsSingleReport: fr.IsSingleReport,
			HideBadge:      fr.HideBadge,
			IsHidden:       fr.IsHidden,
			Order:          i + 1,
			CreatedAt:      now,
		}}
		for j, fir := range fr.Items {
			activityID, ok := keys[fir.ActivityKey]
			if !ok {
				return tree{}, &domain.ValidationError{
					Kind:    domain.ValidationFlowActivityMissing,
					Path:    fmt.Sprintf("activity_flows.%s.items.%d", fr.Name, j),
					Message: fmt.Sprintf("activity key %q does not resolve", fir.ActivityKey),
				}
			}
			itemID := fir.ID
			if itemID == "" {
				itemID = newID()
			}
			flow.Items = append(flow.Items, domain.FlowItem{ID: itemID, FlowID: id, ActivityID: activityID, Order: j + 1})
		}
		t.flows = append(t.flows, flow)
	}
	return t, nil
}

// keepCreatedAt carries creation timestamps of activities and flows that
// survive a rewrite.
func (t *tree) keepCreatedAt(activities []domain.Activity, flows []domain.Flow) {
	created := make(map[string]time.Time, len(activities)+len(flows))
	for _, a := range activities {
		created[a.ID] = a.CreatedAt
	}
	for _, f := range flows {
		created[f.ID] = f.CreatedAt
	}
	for i := range t.activities {
		if ts, ok := created[t.activities[i].ID]; ok {
			t.activities[i].CreatedAt = ts
		}
	}
	for i := range t.flows {
		if ts, ok := created[t.flows[i].ID]; ok {
			t.flows[i].CreatedAt = ts
		}
	}
}

// applyRequest copies the mutable applet fields of req onto a.
func applyRequest(a *domain.Applet, req domain.AppletRequest) {
	src := domain.Applet{
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		About:          req.About,
		Image:          req.Image,
		WatermarkURI:   req.WatermarkURI,
		ThemeID:        req.ThemeID,
		Encryption:     req.Encryption,
		ReportSettings: req.ReportSettings,
		StreamSettings: req.StreamSettings,
	}.Clone()
	a.DisplayName = src.DisplayName
	a.Description = src.Description
	a.About = src.About
	a.Image = src.Image
	a.WatermarkURI = src.WatermarkURI
	a.ThemeID = src.ThemeID
	a.Encryption = src.Encryption
	a.ReportSettings = src.ReportSettings
	a.StreamSettings = src.StreamSettings
}

// writeTree inserts the current tree in foreign-key order: activities, items,
// flows, flow items.
func writeTree(tx domain.Transaction, t tree) error {
	for _, act := range t.activities {
		if err := tx.InsertActivity(act.Activity); err != nil {
			return fmt.Errorf("insert activity %s: %w", act.Name, err)
		}
	}
	for _, act := range t.activities {
		for _, it := range act.Items {
			if err := tx.InsertItem(it); err != nil {
				return fmt.Errorf("insert item %s.%s: %w", act.Name, it.Name, err)
			}
		}
	}
	for _, flow := range t.flows {
		if err := tx.InsertFlow(flow.Flow); err != nil {
			return fmt.Errorf("insert flow %s: %w", flow.Name, err)
		}
	}
	for _, flow := range t.flows {
		for _, fi := range flow.Items {
			if err := tx.InsertFlowItem(fi); err != nil {
				return fmt.Errorf("insert flow item %s of %s: %w", fi.ID, flow.Name, err)
			}
		}
	}
	return nil
}

// loadTree materialises the current tree of an applet.
func loadTree(view domain.TransactionView, applet domain.Applet) (domain.AppletFull, error) {
	full := domain.AppletFull{Applet: applet}
	activities, err := view.ListActivities(applet.ID)
	if err != nil {
		return domain.AppletFull{}, err
	}
	for _, act := range activities {
		items, err := view.ListItems(act.ID)
		if err != nil {
			return domain.AppletFull{}, err
		}
		full.Activities = append(full.Activities, domain.ActivityFull{Activity: act, Items: items})
	}
	flows, err := view.ListFlows(applet.ID)
	if err != nil {
		return domain.AppletFull{}, err
	}
	for _, flow := range flows {
		items, err := view.ListFlowItems(flow.ID)
		if err != nil {
			return domain.AppletFull{}, err
		}
		full.Flows = append(full.Flows, domain.FlowFull{Flow: flow, Items: items})
	}
	return full, nil
}

// requestOf rebuilds the request that reproduces a current tree. Ids are kept
// so a resubmission rewrites the same entities.
func requestOf(full domain.AppletFull) domain.AppletRequest {
	a := full.Applet.Clone()
	req := domain.AppletRequest{
		DisplayName:     a.DisplayName,
		Description:     a.Description,
		About:           a.About,
		Image:           a.Image,
		WatermarkURI:    a.WatermarkURI,
		ThemeID:         a.ThemeID,
		Encryption:      a.Encryption,
		ReportSettings:  a.ReportSettings,
		StreamSettings:  a.StreamSettings,
		ExpectedVersion: a.Version,
	}
	keyOf := make(map[string]string, len(full.Activities))
	for _, act := range full.Activities {
		act.Activity = act.Activity.Clone()
		keyOf[act.ID] = act.Key
		items := make([]domain.Item, len(act.Items))
		for i, it := range act.Items {
			items[i] = it.Clone()
		}
		req.Activities = append(req.Activities, domain.ActivityRequest{
			ID:                 act.ID,
			Key:                act.Key,
			Name:               act.Name,
			Description:        act.Description,
			SplashScreen:       act.SplashScreen,
			Image:              act.Image,
			ShowAllAtOnce:      act.ShowAllAtOnce,
			IsSkippable:        act.IsSkippable,
			IsReviewable:       act.IsReviewable,
			ResponseIsEditable: act.ResponseIsEditable,
			IsHidden:           act.IsHidden,
			ScoresAndReports:   act.ScoresAndReports,
			SubscaleSetting:    act.SubscaleSetting,
			Items:              items,
		})
	}
	for _, flow := range full.Flows {
		fr := domain.FlowRequest{
			ID:             flow.ID,
			Name:           flow.Name,
			Description:    flow.Description.Clone(),
			IsSingleReport: flow.IsSingleReport,
			HideBadge:      flow.HideBadge,
			IsHidden:       flow.IsHidden,
		}
		for _, fi := range flow.Items {
			fr.Items = append(fr.Items, domain.FlowItemRequest{ID: fi.ID, ActivityKey: keyOf[fi.ActivityID]})
		}
		req.Flows = append(req.Flows, fr)
	}
	return req
}

// fullOf assembles the materialised current tree written from t.
func fullOf(applet domain.Applet, t tree) domain.AppletFull {
	return domain.AppletFull{
		Applet:     applet,
		Activities: slices.Clone(t.activities),
		Flows:      slices.Clone(t.flows),
	}.Clone()
}
