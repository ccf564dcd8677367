package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"appletcore/pkg/domain"
)

// txView reads through an open *sql.Tx so that rules and validators observe
// uncommitted writes of the same transaction.
type txView struct {
	ctx   context.Context
	tx    *sql.Tx
	store *Store
}

func queryBodies[T any](v *txView, op, query string, args ...any) ([]T, error) {
	rows, err := v.tx.QueryContext(v.ctx, v.store.rebind(query), args...)
	if err != nil {
		return nil, v.store.classify(op, err)
	}
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, v.store.classify(op, err)
		}
		var row T
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("%s: decode row: %w", op, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, v.store.classify(op, err)
	}
	return out, nil
}

func findBody[T any](v *txView, op string, entity domain.EntityType, id, query string, args ...any) (T, error) {
	var zero T
	rows, err := queryBodies[T](v, op, query, args...)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, &domain.NotFoundError{Entity: entity, ID: id}
	}
	return rows[0], nil
}

func (v *txView) FindApplet(id string) (domain.Applet, error) {
	return findBody[domain.Applet](v, "find applet", domain.EntityApplet, id,
		`SELECT body FROM applets WHERE id = ?`, id)
}

func (v *txView) ListAppletsByOwner(ownerID string) ([]domain.Applet, error) {
	return queryBodies[domain.Applet](v, "list applets",
		`SELECT body FROM applets WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (v *txView) ListActivities(appletID string) ([]domain.Activity, error) {
	return queryBodies[domain.Activity](v, "list activities",
		`SELECT body FROM activities WHERE applet_id = ? ORDER BY "order", id`, appletID)
}

func (v *txView) ListItems(activityID string) ([]domain.Item, error) {
	return queryBodies[domain.Item](v, "list items",
		`SELECT body FROM activity_items WHERE activity_id = ? ORDER BY "order", id`, activityID)
}

func (v *txView) ListFlows(appletID string) ([]domain.Flow, error) {
	return queryBodies[domain.Flow](v, "list flows",
		`SELECT body FROM flows WHERE applet_id = ? ORDER BY "order", id`, appletID)
}

func (v *txView) ListFlowItems(flowID string) ([]domain.FlowItem, error) {
	return queryBodies[domain.FlowItem](v, "list flow items",
		`SELECT body FROM flow_items WHERE activity_flow_id = ? ORDER BY "order", id`, flowID)
}

func (v *txView) FindAppletHistory(idVersion string) (domain.AppletHistory, error) {
	return findBody[domain.AppletHistory](v, "find applet history", domain.EntityAppletHistory, idVersion,
		`SELECT body FROM applet_histories WHERE id_version = ?`, idVersion)
}

func (v *txView) ListAppletHistories(appletID string) ([]domain.AppletHistory, error) {
	return queryBodies[domain.AppletHistory](v, "list applet histories",
		`SELECT body FROM applet_histories WHERE id = ? ORDER BY version`, appletID)
}

func (v *txView) ListActivityHistories(appletIDVersion string) ([]domain.ActivityHistory, error) {
	return queryBodies[domain.ActivityHistory](v, "list activity histories",
		`SELECT body FROM activity_histories WHERE applet_id_version = ? ORDER BY "order", id`, appletIDVersion)
}

func (v *txView) ListItemHistories(activityIDVersion string) ([]domain.ItemHistory, error) {
	return queryBodies[domain.ItemHistory](v, "list item histories",
		`SELECT body FROM activity_item_histories WHERE activity_id_version = ? ORDER BY "order", id`, activityIDVersion)
}

func (v *txView) ListFlowHistories(appletIDVersion string) ([]domain.FlowHistory, error) {
	return queryBodies[domain.FlowHistory](v, "list flow histories",
		`SELECT body FROM flow_histories WHERE applet_id_version = ? ORDER BY "order", id`, appletIDVersion)
}

func (v *txView) ListFlowItemHistories(flowIDVersion string) ([]domain.FlowItemHistory, error) {
	return queryBodies[domain.FlowItemHistory](v, "list flow item histories",
		`SELECT body FROM flow_item_histories WHERE activity_flow_id_version = ? ORDER BY "order", id`, flowIDVersion)
}

func (v *txView) ListEventLinks(appletIDVersion string) ([]domain.EventLink, error) {
	return queryBodies[domain.EventLink](v, "list event links",
		`SELECT body FROM applet_events WHERE applet_id_version = ? ORDER BY seq`, appletIDVersion)
}

type transaction struct {
	txView
	changes []domain.Change
}

func (tx *transaction) record(entity domain.EntityType, action domain.Action, appletID string, before, after any) {
	tx.changes = append(tx.changes, domain.Change{Entity: entity, Action: action, AppletID: appletID, Before: before, After: after})
}

func (tx *transaction) exec(op, query string, args ...any) (sql.Result, error) {
	res, err := tx.tx.ExecContext(tx.ctx, tx.store.rebind(query), args...)
	if err != nil {
		return nil, tx.store.classify(op, err)
	}
	return res, nil
}

func encode(op string, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%s: encode row: %w", op, err)
	}
	return string(body), nil
}

func (tx *transaction) LockApplet(id string) (domain.Applet, error) {
	return findBody[domain.Applet](&tx.txView, "lock applet", domain.EntityApplet, id,
		`SELECT body FROM applets WHERE id = ?`+tx.store.dialect.LockSuffix(), id)
}

func (tx *transaction) InsertApplet(a domain.Applet) error {
	const op = "insert applet"
	body, err := encode(op, a)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO applets (id, owner_id, display_name, version, is_deleted, body) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.DisplayName, a.Version, a.IsDeleted, body); err != nil {
		return err
	}
	tx.record(domain.EntityApplet, domain.ActionCreate, a.ID, nil, a.Clone())
	return nil
}

func (tx *transaction) UpdateApplet(id string, mutator func(*domain.Applet) error) (domain.Applet, error) {
	const op = "update applet"
	current, err := tx.FindApplet(id)
	if err != nil {
		return domain.Applet{}, err
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.Applet{}, err
	}
	current.ID = id
	body, err := encode(op, current)
	if err != nil {
		return domain.Applet{}, err
	}
	if _, err := tx.exec(op,
		`UPDATE applets SET owner_id = ?, display_name = ?, version = ?, is_deleted = ?, body = ? WHERE id = ?`,
		current.OwnerID, current.DisplayName, current.Version, current.IsDeleted, body, id); err != nil {
		return domain.Applet{}, err
	}
	tx.record(domain.EntityApplet, domain.ActionUpdate, id, before, current.Clone())
	return current, nil
}

func (tx *transaction) DeleteAppletTree(appletID string) error {
	flows, err := tx.ListFlows(appletID)
	if err != nil {
		return err
	}
	for _, f := range flows {
		items, err := tx.ListFlowItems(f.ID)
		if err != nil {
			return err
		}
		for _, fi := range items {
			tx.record(domain.EntityFlowItem, domain.ActionDelete, appletID, fi, nil)
		}
	}
	activities, err := tx.ListActivities(appletID)
	if err != nil {
		return err
	}
	var items []domain.Item
	for _, a := range activities {
		rows, err := tx.ListItems(a.ID)
		if err != nil {
			return err
		}
		items = append(items, rows...)
	}

	for _, stmt := range []struct{ op, query string }{
		{"delete flow items", `DELETE FROM flow_items WHERE activity_flow_id IN (SELECT id FROM flows WHERE applet_id = ?)`},
		{"delete flows", `DELETE FROM flows WHERE applet_id = ?`},
		{"delete items", `DELETE FROM activity_items WHERE activity_id IN (SELECT id FROM activities WHERE applet_id = ?)`},
		{"delete activities", `DELETE FROM activities WHERE applet_id = ?`},
	} {
		if _, err := tx.exec(stmt.op, stmt.query, appletID); err != nil {
			return err
		}
	}
	for _, f := range flows {
		tx.record(domain.EntityFlow, domain.ActionDelete, appletID, f, nil)
	}
	for _, it := range items {
		tx.record(domain.EntityItem, domain.ActionDelete, appletID, it, nil)
	}
	for _, a := range activities {
		tx.record(domain.EntityActivity, domain.ActionDelete, appletID, a, nil)
	}
	return nil
}

func (tx *transaction) InsertActivity(a domain.Activity) error {
	const op = "insert activity"
	body, err := encode(op, a)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO activities (id, applet_id, "order", body) VALUES (?, ?, ?, ?)`,
		a.ID, a.AppletID, a.Order, body); err != nil {
		return err
	}
	tx.record(domain.EntityActivity, domain.ActionCreate, a.AppletID, nil, a.Clone())
	return nil
}

func (tx *transaction) InsertItem(it domain.Item) error {
	const op = "insert item"
	body, err := encode(op, it)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO activity_items (id, activity_id, "order", body) VALUES (?, ?, ?, ?)`,
		it.ID, it.ActivityID, it.Order, body); err != nil {
		return err
	}
	appletID, err := tx.scalar(op, `SELECT applet_id FROM activities WHERE id = ?`, it.ActivityID)
	if err != nil {
		return err
	}
	tx.record(domain.EntityItem, domain.ActionCreate, appletID, nil, it.Clone())
	return nil
}

func (tx *transaction) InsertFlow(f domain.Flow) error {
	const op = "insert flow"
	body, err := encode(op, f)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO flows (id, applet_id, "order", body) VALUES (?, ?, ?, ?)`,
		f.ID, f.AppletID, f.Order, body); err != nil {
		return err
	}
	tx.record(domain.EntityFlow, domain.ActionCreate, f.AppletID, nil, f.Clone())
	return nil
}

func (tx *transaction) InsertFlowItem(fi domain.FlowItem) error {
	const op = "insert flow item"
	body, err := encode(op, fi)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO flow_items (id, activity_flow_id, activity_id, "order", body) VALUES (?, ?, ?, ?, ?)`,
		fi.ID, fi.FlowID, fi.ActivityID, fi.Order, body); err != nil {
		return err
	}
	appletID, err := tx.scalar(op, `SELECT applet_id FROM flows WHERE id = ?`, fi.FlowID)
	if err != nil {
		return err
	}
	tx.record(domain.EntityFlowItem, domain.ActionCreate, appletID, nil, fi)
	return nil
}

func (tx *transaction) InsertAppletHistory(h domain.AppletHistory) error {
	const op = "insert applet history"
	body, err := encode(op, h)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO applet_histories (id_version, id, version, user_id, body) VALUES (?, ?, ?, ?, ?)`,
		h.IDVersion, h.ID, h.Version, h.UserID, body); err != nil {
		return err
	}
	tx.record(domain.EntityAppletHistory, domain.ActionCreate, h.ID, nil, h)
	return nil
}

func (tx *transaction) InsertActivityHistory(h domain.ActivityHistory) error {
	const op = "insert activity history"
	body, err := encode(op, h)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO activity_histories (id_version, id, applet_id_version, "order", body) VALUES (?, ?, ?, ?, ?)`,
		h.IDVersion, h.ID, h.AppletIDVersion, h.Order, body); err != nil {
		return err
	}
	tx.record(domain.EntityActivityHistory, domain.ActionCreate, h.AppletID, nil, h)
	return nil
}

func (tx *transaction) InsertItemHistory(h domain.ItemHistory) error {
	const op = "insert item history"
	body, err := encode(op, h)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO activity_item_histories (id_version, id, activity_id_version, "order", body) VALUES (?, ?, ?, ?, ?)`,
		h.IDVersion, h.ID, h.ActivityIDVersion, h.Order, body); err != nil {
		return err
	}
	appletIDVersion, err := tx.scalar(op, `SELECT applet_id_version FROM activity_histories WHERE id_version = ?`, h.ActivityIDVersion)
	if err != nil {
		return err
	}
	appletID, _, _ := domain.SplitIDVersion(appletIDVersion)
	tx.record(domain.EntityItemHistory, domain.ActionCreate, appletID, nil, h)
	return nil
}

func (tx *transaction) InsertFlowHistory(h domain.FlowHistory) error {
	const op = "insert flow history"
	body, err := encode(op, h)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO flow_histories (id_version, id, applet_id_version, "order", body) VALUES (?, ?, ?, ?, ?)`,
		h.IDVersion, h.ID, h.AppletIDVersion, h.Order, body); err != nil {
		return err
	}
	tx.record(domain.EntityFlowHistory, domain.ActionCreate, h.AppletID, nil, h)
	return nil
}

func (tx *transaction) InsertFlowItemHistory(h domain.FlowItemHistory) error {
	const op = "insert flow item history"
	body, err := encode(op, h)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO flow_item_histories (id_version, id, activity_flow_id_version, activity_id_version, "order", body) VALUES (?, ?, ?, ?, ?, ?)`,
		h.IDVersion, h.ID, h.FlowIDVersion, h.ActivityIDVersion, h.Order, body); err != nil {
		return err
	}
	appletIDVersion, err := tx.scalar(op, `SELECT applet_id_version FROM flow_histories WHERE id_version = ?`, h.FlowIDVersion)
	if err != nil {
		return err
	}
	appletID, _, _ := domain.SplitIDVersion(appletIDVersion)
	tx.record(domain.EntityFlowItemHistory, domain.ActionCreate, appletID, nil, h)
	return nil
}

func (tx *transaction) AddEventLink(l domain.EventLink) error {
	const op = "add event link"
	body, err := encode(op, l)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`INSERT INTO applet_events (applet_id_version, event_id_version, is_deleted, body) VALUES (?, ?, ?, ?)`,
		l.AppletIDVersion, l.EventIDVersion, l.IsDeleted, body); err != nil {
		return err
	}
	appletID, _, _ := domain.SplitIDVersion(l.AppletIDVersion)
	tx.record(domain.EntityEventLink, domain.ActionCreate, appletID, nil, l)
	return nil
}

func (tx *transaction) SoftDeleteEventLink(appletIDVersion, eventIDVersion string) error {
	const op = "soft delete event link"
	links, err := queryBodies[domain.EventLink](&tx.txView, op,
		`SELECT body FROM applet_events WHERE applet_id_version = ? AND event_id_version = ?`+tx.store.dialect.LockSuffix(),
		appletIDVersion, eventIDVersion)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return &domain.NotFoundError{Entity: domain.EntityEventLink, ID: appletIDVersion + "/" + eventIDVersion}
	}
	before := links[0]
	after := before
	after.IsDeleted = true
	body, err := encode(op, after)
	if err != nil {
		return err
	}
	if _, err := tx.exec(op,
		`UPDATE applet_events SET is_deleted = ?, body = ? WHERE applet_id_version = ? AND event_id_version = ?`,
		true, body, appletIDVersion, eventIDVersion); err != nil {
		return err
	}
	appletID, _, _ := domain.SplitIDVersion(appletIDVersion)
	tx.record(domain.EntityEventLink, domain.ActionUpdate, appletID, before, after)
	return nil
}

func (tx *transaction) scalar(op, query string, args ...any) (string, error) {
	var out string
	err := tx.tx.QueryRowContext(tx.ctx, tx.store.rebind(query), args...).Scan(&out)
	if err != nil {
		return "", tx.store.classify(op, err)
	}
	return out, nil
}
