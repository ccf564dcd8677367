package domain

import (
	"encoding/json"
	"maps"
	"slices"
)

// jsonCopy deep-copies nested payloads through their wire form. Payloads that
// cannot be encoded are returned as is.
func jsonCopy[T any](src T) T {
	raw, err := json.Marshal(src)
	if err != nil {
		return src
	}
	var dst T
	if err := json.Unmarshal(raw, &dst); err != nil {
		return src
	}
	return dst
}

// Clone returns a copy that shares no mutable state with t.
func (t LocalizedText) Clone() LocalizedText {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}

// Clone returns a deep copy of the applet row.
func (a Applet) Clone() Applet {
	cp := a
	cp.Description = a.Description.Clone()
	cp.About = a.About.Clone()
	if a.Encryption != nil {
		enc := *a.Encryption
		cp.Encryption = &enc
	}
	cp.ReportSettings.Recipients = slices.Clone(a.ReportSettings.Recipients)
	if a.StreamSettings.Port != nil {
		port := *a.StreamSettings.Port
		cp.StreamSettings.Port = &port
	}
	return cp
}

// Clone returns a deep copy of the activity row.
func (a Activity) Clone() Activity {
	cp := a
	cp.Description = a.Description.Clone()
	if a.ScoresAndReports != nil {
		cp.ScoresAndReports = jsonCopy(a.ScoresAndReports)
	}
	if a.SubscaleSetting != nil {
		cp.SubscaleSetting = jsonCopy(a.SubscaleSetting)
	}
	return cp
}

// Clone returns a deep copy of the item including its variants. Items whose
// response type is unknown keep shared variant pointers.
func (i Item) Clone() Item {
	raw, err := json.Marshal(i)
	if err == nil {
		var out Item
		if err = json.Unmarshal(raw, &out); err == nil {
			return out
		}
	}
	cp := i
	cp.Question = i.Question.Clone()
	return cp
}

// Clone returns a deep copy of the flow row.
func (f Flow) Clone() Flow {
	cp := f
	cp.Description = f.Description.Clone()
	return cp
}

// Clone returns a deep copy of the tree.
func (a AppletFull) Clone() AppletFull {
	cp := AppletFull{Applet: a.Applet.Clone()}
	if a.Activities != nil {
		cp.Activities = make([]ActivityFull, len(a.Activities))
	}
	for i, act := range a.Activities {
		items := make([]Item, len(act.Items))
		for j, it := range act.Items {
			items[j] = it.Clone()
		}
		cp.Activities[i] = ActivityFull{Activity: act.Activity.Clone(), Items: items}
	}
	if a.Flows != nil {
		cp.Flows = make([]FlowFull, len(a.Flows))
	}
	for i, fl := range a.Flows {
		cp.Flows[i] = FlowFull{Flow: fl.Flow.Clone(), Items: slices.Clone(fl.Items)}
	}
	return cp
}

// Clone returns a deep copy of the request.
func (r AppletRequest) Clone() AppletRequest {
	return jsonCopy(r)
}
