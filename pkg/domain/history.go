package domain

import (
	"encoding/json"
	"strings"
)

// IDVersionOf formats the history key of id at version.
func IDVersionOf(id, version string) string {
	return id + "_" + version
}

// SplitIDVersion reverses IDVersionOf. Versions never contain '_' so the last
// separator wins.
func SplitIDVersion(idVersion string) (id, version string, ok bool) {
	i := strings.LastIndexByte(idVersion, '_')
	if i <= 0 || i == len(idVersion)-1 {
		return "", "", false
	}
	return idVersion[:i], idVersion[i+1:], true
}

// AppletHistory is the immutable snapshot of an applet row at one version.
type AppletHistory struct {
	IDVersion string `json:"id_version"`
	UserID    string `json:"user_id"`
	Applet
}

// ActivityHistory is the immutable snapshot of an activity at one applet version.
type ActivityHistory struct {
	IDVersion       string `json:"id_version"`
	AppletIDVersion string `json:"applet_id_version"`
	Activity
}

// ItemHistory is the immutable snapshot of an item at one applet version.
type ItemHistory struct {
	IDVersion         string `json:"id_version"`
	ActivityIDVersion string `json:"activity_id_version"`
	Item
}

type itemHistoryJSON struct {
	IDVersion         string `json:"id_version"`
	ActivityIDVersion string `json:"activity_id_version"`
	itemJSON
}

// MarshalJSON keeps the history keys alongside the flattened item.
func (h ItemHistory) MarshalJSON() ([]byte, error) {
	wire, err := h.Item.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(itemHistoryJSON{IDVersion: h.IDVersion, ActivityIDVersion: h.ActivityIDVersion, itemJSON: wire})
}

// UnmarshalJSON decodes the history keys and the item variants.
func (h *ItemHistory) UnmarshalJSON(data []byte) error {
	var in itemHistoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	item, err := in.itemJSON.item()
	if err != nil {
		return err
	}
	*h = ItemHistory{IDVersion: in.IDVersion, ActivityIDVersion: in.ActivityIDVersion, Item: item}
	return nil
}

// FlowHistory is the immutable snapshot of a flow at one applet version.
type FlowHistory struct {
	IDVersion       string `json:"id_version"`
	AppletIDVersion string `json:"applet_id_version"`
	Flow
}

// FlowItemHistory is the immutable snapshot of a flow item at one applet version.
type FlowItemHistory struct {
	IDVersion         string `json:"id_version"`
	FlowIDVersion     string `json:"activity_flow_id_version"`
	ActivityIDVersion string `json:"activity_id_version"`
	FlowItem
}

// ActivityHistoryFull is an activity snapshot with its item snapshots in order.
type ActivityHistoryFull struct {
	ActivityHistory
	Items []ItemHistory `json:"items"`
}

// FlowHistoryFull is a flow snapshot with its flow item snapshots in order.
type FlowHistoryFull struct {
	FlowHistory
	Items []FlowItemHistory `json:"items"`
}

// AppletHistoryFull is the assembled historical tree of one applet version.
type AppletHistoryFull struct {
	AppletHistory
	Activities []ActivityHistoryFull `json:"activities"`
	Flows      []FlowHistoryFull     `json:"activity_flows"`
}
