package domain

import "context"

// TransactionView provides read-only access to a consistent snapshot. Lists are
// returned in their declared order: rows with an order column by (order, id),
// applet histories by version.
type TransactionView interface {
	FindApplet(id string) (Applet, error)
	ListAppletsByOwner(ownerID string) ([]Applet, error)
	ListActivities(appletID string) ([]Activity, error)
	ListItems(activityID string) ([]Item, error)
	ListFlows(appletID string) ([]Flow, error)
	ListFlowItems(flowID string) ([]FlowItem, error)

	FindAppletHistory(idVersion string) (AppletHistory, error)
	ListAppletHistories(appletID string) ([]AppletHistory, error)
	ListActivityHistories(appletIDVersion string) ([]ActivityHistory, error)
	ListItemHistories(activityIDVersion string) ([]ItemHistory, error)
	ListFlowHistories(appletIDVersion string) ([]FlowHistory, error)
	ListFlowItemHistories(flowIDVersion string) ([]FlowItemHistory, error)

	// ListEventLinks returns every link of the applet version, soft-deleted
	// rows included.
	ListEventLinks(appletIDVersion string) ([]EventLink, error)
}

// Transaction exposes the writes a persistence implementation must support
// within an atomic scope. Reads through the embedded view observe the
// transaction's own writes.
type Transaction interface {
	TransactionView

	// LockApplet reads the applet row and holds a write lock on it until the
	// transaction ends.
	LockApplet(id string) (Applet, error)
	InsertApplet(Applet) error
	UpdateApplet(id string, mutator func(*Applet) error) (Applet, error)
	// DeleteAppletTree removes flow items, flows, items and activities of the
	// applet in that order. The applet row is kept.
	DeleteAppletTree(appletID string) error

	InsertActivity(Activity) error
	InsertItem(Item) error
	InsertFlow(Flow) error
	InsertFlowItem(FlowItem) error

	InsertAppletHistory(AppletHistory) error
	InsertActivityHistory(ActivityHistory) error
	InsertItemHistory(ItemHistory) error
	InsertFlowHistory(FlowHistory) error
	InsertFlowItemHistory(FlowItemHistory) error

	AddEventLink(EventLink) error
	SoftDeleteEventLink(appletIDVersion, eventIDVersion string) error
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
