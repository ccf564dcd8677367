package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/internal/infra/persistence/memory"
	"appletcore/pkg/domain"
)

func engineWith(rules ...domain.Rule) *RulesEngine {
	engine := NewRulesEngine()
	for _, r := range rules {
		engine.Register(r)
	}
	return engine
}

func TestDefaultRulesEngineRegistersIntegrityRules(t *testing.T) {
	var names []string
	for _, r := range NewDefaultRulesEngine().Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{flowItemClosureRuleName, historyParityRuleName}, names)
}

func TestFlowItemClosureBlocksCrossAppletReference(t *testing.T) {
	store := memory.NewStore(engineWith(NewFlowItemClosureRule()))
	svc := NewService(store, WithLogger(discardLogger{}))
	ctx := context.Background()
	a, _, err := svc.CreateApplet(ctx, ownerID, minimalRequest())
	require.NoError(t, err)
	reqB := minimalRequest()
	reqB.DisplayName = "B"
	b, _, err := svc.CreateApplet(ctx, ownerID, reqB)
	require.NoError(t, err)

	res, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.InsertFlow(domain.Flow{ID: "f-stray", AppletID: b.ID, Name: "stray", Order: 1}); err != nil {
			return err
		}
		return tx.InsertFlowItem(domain.FlowItem{ID: "fi-stray", FlowID: "f-stray", ActivityID: a.Activities[0].ID, Order: 1})
	})
	require.Error(t, err)
	require.True(t, res.HasBlocking())
	assert.Equal(t, flowItemClosureRuleName, res.Violations[0].Rule)
	assert.Equal(t, "fi-stray", res.Violations[0].EntityID)

	full, err := svc.GetApplet(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, full.Flows)
}

func TestFlowItemClosureAcceptsServiceWrites(t *testing.T) {
	store := memory.NewStore(engineWith(NewFlowItemClosureRule()))
	svc := NewService(store, WithLogger(discardLogger{}))
	_, res, err := svc.CreateApplet(context.Background(), ownerID, withFlow(minimalRequest()))
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestHistoryParityBlocksUnversionedEdit(t *testing.T) {
	store := memory.NewStore(engineWith(NewHistoryParityRule()))
	svc := NewService(store, WithLogger(discardLogger{}))
	ctx := context.Background()
	full, _, err := svc.CreateApplet(ctx, ownerID, minimalRequest())
	require.NoError(t, err)

	res, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateApplet(full.ID, func(a *domain.Applet) error {
			a.DisplayName = "sneaky"
			return nil
		})
		return err
	})
	require.Error(t, err)
	require.True(t, res.HasBlocking())
	assert.Equal(t, historyParityRuleName, res.Violations[0].Rule)
	assert.Contains(t, res.Violations[0].Message, "applet row differs")
}

func TestHistoryParitySkipsDeletedApplets(t *testing.T) {
	store := memory.NewStore(engineWith(NewHistoryParityRule()))
	svc := NewService(store, WithLogger(discardLogger{}))
	ctx := context.Background()
	full, _, err := svc.CreateApplet(ctx, ownerID, minimalRequest())
	require.NoError(t, err)
	res, err := svc.DeleteApplet(ctx, full.ID, ownerID)
	require.NoError(t, err)
	assert.False(t, res.HasBlocking())
}

func TestParityDiffNamesFirstMismatch(t *testing.T) {
	h := newHarness(t)
	full := h.create(t, withFlow(minimalRequest()))
	snap := mustHistory(t, h, full.ID, full.Version)
	require.Equal(t, "", parityDiff(full, snap))

	changed := full
	changed.Activities = append([]domain.ActivityFull(nil), full.Activities...)
	changed.Activities[0].Items = append([]domain.Item(nil), full.Activities[0].Items...)
	changed.Activities[0].Items[0].Name = "renamed"
	assert.Contains(t, parityDiff(changed, snap), "item "+full.Activities[0].Items[0].ID)

	changed = full
	changed.Flows = nil
	assert.Equal(t, "0 flows but 1 in history", parityDiff(changed, snap))
}

func TestTouchedAppletsIgnoresEventLinks(t *testing.T) {
	changes := []Change{
		{Entity: domain.EntityItem, AppletID: "b"},
		{Entity: domain.EntityApplet, AppletID: "a"},
		{Entity: domain.EntityEventLink, AppletID: "c"},
		{Entity: domain.EntityItem, AppletID: "b"},
		{Entity: domain.EntityItem},
	}
	assert.Equal(t, []string{"a", "b"}, touchedApplets(changes))
}
