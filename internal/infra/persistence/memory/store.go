// Package memory provides an in-memory implementation of the applet
// persistence store used for tests and ephemeral environments.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"appletcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Applet aliases domain.Applet for in-memory persistence operations.
	Applet = domain.Applet
	// Activity aliases domain.Activity.
	Activity = domain.Activity
	// Item aliases domain.Item.
	Item = domain.Item
	// Flow aliases domain.Flow.
	Flow = domain.Flow
	// FlowItem aliases domain.FlowItem.
	FlowItem = domain.FlowItem
	// EventLink aliases domain.EventLink.
	EventLink = domain.EventLink
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type linkKey struct {
	applet string
	event  string
}

// memoryState holds one immutable generation of the store. Values are never
// mutated in place: writes replace map entries and reads hand out clones, so
// cloning a state only copies the maps.
type memoryState struct {
	applets           map[string]Applet
	activities        map[string]Activity
	items             map[string]Item
	flows             map[string]Flow
	flowItems         map[string]FlowItem
	appletHistories   map[string]domain.AppletHistory
	activityHistories map[string]domain.ActivityHistory
	itemHistories     map[string]domain.ItemHistory
	flowHistories     map[string]domain.FlowHistory
	flowItemHistories map[string]domain.FlowItemHistory
	links             map[linkKey]EventLink
	linkSeq           map[linkKey]int
	seq               int
}

func newMemoryState() memoryState {
	return memoryState{
		applets:           make(map[string]Applet),
		activities:        make(map[string]Activity),
		items:             make(map[string]Item),
		flows:             make(map[string]Flow),
		flowItems:         make(map[string]FlowItem),
		appletHistories:   make(map[string]domain.AppletHistory),
		activityHistories: make(map[string]domain.ActivityHistory),
		itemHistories:     make(map[string]domain.ItemHistory),
		flowHistories:     make(map[string]domain.FlowHistory),
		flowItemHistories: make(map[string]domain.FlowItemHistory),
		links:             make(map[linkKey]EventLink),
		linkSeq:           make(map[linkKey]int),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		applets:           maps.Clone(s.applets),
		activities:        maps.Clone(s.activities),
		items:             maps.Clone(s.items),
		flows:             maps.Clone(s.flows),
		flowItems:         maps.Clone(s.flowItems),
		appletHistories:   maps.Clone(s.appletHistories),
		activityHistories: maps.Clone(s.activityHistories),
		itemHistories:     maps.Clone(s.itemHistories),
		flowHistories:     maps.Clone(s.flowHistories),
		flowItemHistories: maps.Clone(s.flowItemHistories),
		links:             maps.Clone(s.links),
		linkSeq:           maps.Clone(s.linkSeq),
		seq:               s.seq,
	}
}

// Store implements domain.PersistentStore in memory. Transactions are
// serialised by a single lock, which also satisfies applet row locking.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{state: newMemoryState(), engine: engine}
}

// RulesEngine exposes the engine evaluated before every commit.
func (s *Store) RulesEngine() *RulesEngine { return s.engine }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a private copy of the state. The copy
// replaces the store state only when fn succeeds, ctx is still live and the
// rules engine reports no blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{ctx: ctx, view: view{state: s.state.clone()}}
	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, &tx.view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(&view{state: snapshot})
}

type view struct {
	state memoryState
}

func byOrder[T any](rows []T, key func(T) (int, string)) []T {
	slices.SortFunc(rows, func(a, b T) int {
		oa, ia := key(a)
		ob, ib := key(b)
		if c := cmp.Compare(oa, ob); c != 0 {
			return c
		}
		return cmp.Compare(ia, ib)
	})
	return rows
}

func (v *view) FindApplet(id string) (Applet, error) {
	a, ok := v.state.applets[id]
	if !ok {
		return Applet{}, &domain.NotFoundError{Entity: domain.EntityApplet, ID: id}
	}
	return a.Clone(), nil
}

func (v *view) ListAppletsByOwner(ownerID string) ([]Applet, error) {
	out := make([]Applet, 0)
	for _, a := range v.state.applets {
		if a.OwnerID == ownerID {
			out = append(out, a.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Applet) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (v *view) ListActivities(appletID string) ([]Activity, error) {
	out := make([]Activity, 0)
	for _, a := range v.state.activities {
		if a.AppletID == appletID {
			out = append(out, a.Clone())
		}
	}
	return byOrder(out, func(a Activity) (int, string) { return a.Order, a.ID }), nil
}

func (v *view) ListItems(activityID string) ([]Item, error) {
	out := make([]Item, 0)
	for _, it := range v.state.items {
		if it.ActivityID == activityID {
			out = append(out, it.Clone())
		}
	}
	return byOrder(out, func(i Item) (int, string) { return i.Order, i.ID }), nil
}

func (v *view) ListFlows(appletID string) ([]Flow, error) {
	out := make([]Flow, 0)
	for _, f := range v.state.flows {
		if f.AppletID == appletID {
			out = append(out, f.Clone())
		}
	}
	return byOrder(out, func(f Flow) (int, string) { return f.Order, f.ID }), nil
}

func (v *view) ListFlowItems(flowID string) ([]FlowItem, error) {
	out := make([]FlowItem, 0)
	for _, fi := range v.state.flowItems {
		if fi.FlowID == flowID {
			out = append(out, fi)
		}
	}
	return byOrder(out, func(fi FlowItem) (int, string) { return fi.Order, fi.ID }), nil
}

func (v *view) FindAppletHistory(idVersion string) (domain.AppletHistory, error) {
	h, ok := v.state.appletHistories[idVersion]
	if !ok {
		return domain.AppletHistory{}, &domain.NotFoundError{Entity: domain.EntityAppletHistory, ID: idVersion}
	}
	h.Applet = h.Applet.Clone()
	return h, nil
}

// ListAppletHistories orders by version string; single-digit components make
// lexical order chronological.
func (v *view) ListAppletHistories(appletID string) ([]domain.AppletHistory, error) {
	out := make([]domain.AppletHistory, 0)
	for _, h := range v.state.appletHistories {
		if h.ID == appletID {
			h.Applet = h.Applet.Clone()
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b domain.AppletHistory) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

func (v *view) ListActivityHistories(appletIDVersion string) ([]domain.ActivityHistory, error) {
	out := make([]domain.ActivityHistory, 0)
	for _, h := range v.state.activityHistories {
		if h.AppletIDVersion == appletIDVersion {
			h.Activity = h.Activity.Clone()
			out = append(out, h)
		}
	}
	return byOrder(out, func(h domain.ActivityHistory) (int, string) { return h.Order, h.ID }), nil
}

func (v *view) ListItemHistories(activityIDVersion string) ([]domain.ItemHistory, error) {
	out := make([]domain.ItemHistory, 0)
	for _, h := range v.state.itemHistories {
		if h.ActivityIDVersion == activityIDVersion {
			h.Item = h.Item.Clone()
			out = append(out, h)
		}
	}
	return byOrder(out, func(h domain.ItemHistory) (int, string) { return h.Order, h.ID }), nil
}

func (v *view) ListFlowHistories(appletIDVersion string) ([]domain.FlowHistory, error) {
	out := make([]domain.FlowHistory, 0)
	for _, h := range v.state.flowHistories {
		if h.AppletIDVersion == appletIDVersion {
			h.Flow = h.Flow.Clone()
			out = append(out, h)
		}
	}
	return byOrder(out, func(h domain.FlowHistory) (int, string) { return h.Order, h.ID }), nil
}

func (v *view) ListFlowItemHistories(flowIDVersion string) ([]domain.FlowItemHistory, error) {
	out := make([]domain.FlowItemHistory, 0)
	for _, h := range v.state.flowItemHistories {
		if h.FlowIDVersion == flowIDVersion {
			out = append(out, h)
		}
	}
	return byOrder(out, func(h domain.FlowItemHistory) (int, string) { return h.Order, h.ID }), nil
}

func (v *view) ListEventLinks(appletIDVersion string) ([]EventLink, error) {
	type ranked struct {
		seq  int
		link EventLink
	}
	rows := make([]ranked, 0)
	for k, l := range v.state.links {
		if k.applet == appletIDVersion {
			rows = append(rows, ranked{seq: v.state.linkSeq[k], link: l})
		}
	}
	slices.SortFunc(rows, func(a, b ranked) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]EventLink, len(rows))
	for i, r := range rows {
		out[i] = r.link
	}
	return out, nil
}

// transaction represents a mutation set applied to a private state copy.
type transaction struct {
	view
	ctx     context.Context
	changes []Change
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// live reports cancellation at every write, the in-memory analogue of a
// database round trip.
func (tx *transaction) live() error {
	return tx.ctx.Err()
}

func integrity(op string, err error, format string, args ...any) error {
	return &domain.IntegrityError{Op: op, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)}
}

func (tx *transaction) LockApplet(id string) (Applet, error) {
	if err := tx.live(); err != nil {
		return Applet{}, err
	}
	return tx.FindApplet(id)
}

func (tx *transaction) InsertApplet(a Applet) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.applets[a.ID]; exists {
		return integrity("insert applet", domain.ErrDuplicateKey, "applet %s", a.ID)
	}
	if err := tx.checkDisplayName(a); err != nil {
		return err
	}
	tx.state.applets[a.ID] = a.Clone()
	tx.recordChange(Change{Entity: domain.EntityApplet, Action: domain.ActionCreate, AppletID: a.ID, After: a.Clone()})
	return nil
}

func (tx *transaction) UpdateApplet(id string, mutator func(*Applet) error) (Applet, error) {
	if err := tx.live(); err != nil {
		return Applet{}, err
	}
	current, ok := tx.state.applets[id]
	if !ok {
		return Applet{}, &domain.NotFoundError{Entity: domain.EntityApplet, ID: id}
	}
	before := current.Clone()
	updated := current.Clone()
	if err := mutator(&updated); err != nil {
		return Applet{}, err
	}
	updated.ID = id
	if err := tx.checkDisplayName(updated); err != nil {
		return Applet{}, err
	}
	tx.state.applets[id] = updated
	tx.recordChange(Change{Entity: domain.EntityApplet, Action: domain.ActionUpdate, AppletID: id, Before: before, After: updated.Clone()})
	return updated.Clone(), nil
}

// checkDisplayName mirrors the partial unique index on live
// (owner_id, display_name) pairs of the SQL schemas.
func (tx *transaction) checkDisplayName(a Applet) error {
	if a.IsDeleted {
		return nil
	}
	for id, other := range tx.state.applets {
		if id != a.ID && !other.IsDeleted && other.OwnerID == a.OwnerID && other.DisplayName == a.DisplayName {
			return &domain.ConflictError{
				Kind:     domain.ConflictDisplayNameCollision,
				AppletID: id,
				Message:  fmt.Sprintf("display name %q is already used by another applet", a.DisplayName),
			}
		}
	}
	return nil
}

func (tx *transaction) DeleteAppletTree(appletID string) error {
	if err := tx.live(); err != nil {
		return err
	}
	flowIDs := map[string]struct{}{}
	for id, f := range tx.state.flows {
		if f.AppletID == appletID {
			flowIDs[id] = struct{}{}
		}
	}
	for id, fi := range tx.state.flowItems {
		if _, ok := flowIDs[fi.FlowID]; ok {
			delete(tx.state.flowItems, id)
			tx.recordChange(Change{Entity: domain.EntityFlowItem, Action: domain.ActionDelete, AppletID: appletID, Before: fi})
		}
	}
	for id := range flowIDs {
		tx.recordChange(Change{Entity: domain.EntityFlow, Action: domain.ActionDelete, AppletID: appletID, Before: tx.state.flows[id]})
		delete(tx.state.flows, id)
	}
	activityIDs := map[string]struct{}{}
	for id, a := range tx.state.activities {
		if a.AppletID == appletID {
			activityIDs[id] = struct{}{}
		}
	}
	for id, it := range tx.state.items {
		if _, ok := activityIDs[it.ActivityID]; ok {
			delete(tx.state.items, id)
			tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionDelete, AppletID: appletID, Before: it})
		}
	}
	for id := range activityIDs {
		tx.recordChange(Change{Entity: domain.EntityActivity, Action: domain.ActionDelete, AppletID: appletID, Before: tx.state.activities[id]})
		delete(tx.state.activities, id)
	}
	return nil
}

func (tx *transaction) InsertActivity(a Activity) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.activities[a.ID]; exists {
		return integrity("insert activity", domain.ErrDuplicateKey, "activity %s", a.ID)
	}
	if _, ok := tx.state.applets[a.AppletID]; !ok {
		return integrity("insert activity", domain.ErrForeignKey, "applet %s", a.AppletID)
	}
	tx.state.activities[a.ID] = a.Clone()
	tx.recordChange(Change{Entity: domain.EntityActivity, Action: domain.ActionCreate, AppletID: a.AppletID, After: a.Clone()})
	return nil
}

func (tx *transaction) InsertItem(it Item) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.items[it.ID]; exists {
		return integrity("insert item", domain.ErrDuplicateKey, "item %s", it.ID)
	}
	act, ok := tx.state.activities[it.ActivityID]
	if !ok {
		return integrity("insert item", domain.ErrForeignKey, "activity %s", it.ActivityID)
	}
	tx.state.items[it.ID] = it.Clone()
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionCreate, AppletID: act.AppletID, After: it.Clone()})
	return nil
}

func (tx *transaction) InsertFlow(f Flow) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.flows[f.ID]; exists {
		return integrity("insert flow", domain.ErrDuplicateKey, "flow %s", f.ID)
	}
	if _, ok := tx.state.applets[f.AppletID]; !ok {
		return integrity("insert flow", domain.ErrForeignKey, "applet %s", f.AppletID)
	}
	tx.state.flows[f.ID] = f.Clone()
	tx.recordChange(Change{Entity: domain.EntityFlow, Action: domain.ActionCreate, AppletID: f.AppletID, After: f.Clone()})
	return nil
}

func (tx *transaction) InsertFlowItem(fi FlowItem) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.flowItems[fi.ID]; exists {
		return integrity("insert flow item", domain.ErrDuplicateKey, "flow item %s", fi.ID)
	}
	flow, ok := tx.state.flows[fi.FlowID]
	if !ok {
		return integrity("insert flow item", domain.ErrForeignKey, "flow %s", fi.FlowID)
	}
	if _, ok := tx.state.activities[fi.ActivityID]; !ok {
		return integrity("insert flow item", domain.ErrForeignKey, "activity %s", fi.ActivityID)
	}
	tx.state.flowItems[fi.ID] = fi
	tx.recordChange(Change{Entity: domain.EntityFlowItem, Action: domain.ActionCreate, AppletID: flow.AppletID, After: fi})
	return nil
}

func (tx *transaction) InsertAppletHistory(h domain.AppletHistory) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.appletHistories[h.IDVersion]; exists {
		return integrity("insert applet history", domain.ErrDuplicateKey, "%s", h.IDVersion)
	}
	h.Applet = h.Applet.Clone()
	tx.state.appletHistories[h.IDVersion] = h
	tx.recordChange(Change{Entity: domain.EntityAppletHistory, Action: domain.ActionCreate, AppletID: h.ID, After: h})
	return nil
}

func (tx *transaction) InsertActivityHistory(h domain.ActivityHistory) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.activityHistories[h.IDVersion]; exists {
		return integrity("insert activity history", domain.ErrDuplicateKey, "%s", h.IDVersion)
	}
	if _, ok := tx.state.appletHistories[h.AppletIDVersion]; !ok {
		return integrity("insert activity history", domain.ErrForeignKey, "applet history %s", h.AppletIDVersion)
	}
	h.Activity = h.Activity.Clone()
	tx.state.activityHistories[h.IDVersion] = h
	tx.recordChange(Change{Entity: domain.EntityActivityHistory, Action: domain.ActionCreate, AppletID: h.AppletID, After: h})
	return nil
}

func (tx *transaction) InsertItemHistory(h domain.ItemHistory) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.itemHistories[h.IDVersion]; exists {
		return integrity("insert item history", domain.ErrDuplicateKey, "%s", h.IDVersion)
	}
	parent, ok := tx.state.activityHistories[h.ActivityIDVersion]
	if !ok {
		return integrity("insert item history", domain.ErrForeignKey, "activity history %s", h.ActivityIDVersion)
	}
	h.Item = h.Item.Clone()
	tx.state.itemHistories[h.IDVersion] = h
	tx.recordChange(Change{Entity: domain.EntityItemHistory, Action: domain.ActionCreate, AppletID: parent.AppletID, After: h})
	return nil
}

func (tx *transaction) InsertFlowHistory(h domain.FlowHistory) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.flowHistories[h.IDVersion]; exists {
		return integrity("insert flow history", domain.ErrDuplicateKey, "%s", h.IDVersion)
	}
	if _, ok := tx.state.appletHistories[h.AppletIDVersion]; !ok {
		return integrity("insert flow history", domain.ErrForeignKey, "applet history %s", h.AppletIDVersion)
	}
	h.Flow = h.Flow.Clone()
	tx.state.flowHistories[h.IDVersion] = h
	tx.recordChange(Change{Entity: domain.EntityFlowHistory, Action: domain.ActionCreate, AppletID: h.AppletID, After: h})
	return nil
}

func (tx *transaction) InsertFlowItemHistory(h domain.FlowItemHistory) error {
	if err := tx.live(); err != nil {
		return err
	}
	if _, exists := tx.state.flowItemHistories[h.IDVersion]; exists {
		return integrity("insert flow item history", domain.ErrDuplicateKey, "%s", h.IDVersion)
	}
	parent, ok := tx.state.flowHistories[h.FlowIDVersion]
	if !ok {
		return integrity("insert flow item history", domain.ErrForeignKey, "flow history %s", h.FlowIDVersion)
	}
	if _, ok := tx.state.activityHistories[h.ActivityIDVersion]; !ok {
		return integrity("insert flow item history", domain.ErrForeignKey, "activity history %s", h.ActivityIDVersion)
	}
	tx.state.flowItemHistories[h.IDVersion] = h
	tx.recordChange(Change{Entity: domain.EntityFlowItemHistory, Action: domain.ActionCreate, AppletID: parent.AppletID, After: h})
	return nil
}

func (tx *transaction) AddEventLink(l EventLink) error {
	if err := tx.live(); err != nil {
		return err
	}
	h, ok := tx.state.appletHistories[l.AppletIDVersion]
	if !ok {
		return integrity("add event link", domain.ErrForeignKey, "applet history %s", l.AppletIDVersion)
	}
	key := linkKey{applet: l.AppletIDVersion, event: l.EventIDVersion}
	if _, exists := tx.state.links[key]; exists {
		return integrity("add event link", domain.ErrDuplicateKey, "%s -> %s", l.AppletIDVersion, l.EventIDVersion)
	}
	tx.state.seq++
	tx.state.links[key] = l
	tx.state.linkSeq[key] = tx.state.seq
	tx.recordChange(Change{Entity: domain.EntityEventLink, Action: domain.ActionCreate, AppletID: h.ID, After: l})
	return nil
}

func (tx *transaction) SoftDeleteEventLink(appletIDVersion, eventIDVersion string) error {
	if err := tx.live(); err != nil {
		return err
	}
	key := linkKey{applet: appletIDVersion, event: eventIDVersion}
	l, ok := tx.state.links[key]
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntityEventLink, ID: appletIDVersion + "/" + eventIDVersion}
	}
	before := l
	l.IsDeleted = true
	tx.state.links[key] = l
	appletID, _, _ := domain.SplitIDVersion(appletIDVersion)
	tx.recordChange(Change{Entity: domain.EntityEventLink, Action: domain.ActionUpdate, AppletID: appletID, Before: before, After: l})
	return nil
}
