// Package storetest holds the behavioural contract every applet store
// backend must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/pkg/domain"
)

// Factory returns a fresh, empty store evaluating engine before commit.
type Factory func(t *testing.T, engine *domain.RulesEngine) domain.PersistentStore

// Run executes the full contract against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"CurrentTreeRoundTrip", testCurrentTreeRoundTrip},
		{"ListsAreOrdered", testListsAreOrdered},
		{"DuplicateKeysAreIntegrityErrors", testDuplicateKeys},
		{"LiveDisplayNamesUniquePerOwner", testLiveDisplayNames},
		{"ForeignKeysAreEnforced", testForeignKeys},
		{"FailedTransactionLeavesNoTrace", testRollbackOnError},
		{"BlockingRuleRollsBack", testBlockingRule},
		{"ReadsObserveOwnWrites", testReadsObserveOwnWrites},
		{"UpdateAndDeleteTree", testUpdateAndDeleteTree},
		{"HistoryTables", testHistoryTables},
		{"EventLinks", testEventLinks},
		{"CancelledContextAborts", testCancelledContext},
		{"NotFound", testNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, factory) })
	}
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func applet(id, owner, name string) domain.Applet {
	return domain.Applet{
		ID:          id,
		OwnerID:     owner,
		DisplayName: name,
		Description: domain.LocalizedText{"en": "about " + name},
		Version:     "1.0.0",
		CreatedAt:   epoch,
		UpdatedAt:   epoch,
	}
}

func selectItem(id, activityID, name string, order int) domain.Item {
	score := 2.0
	it := domain.Item{
		ID:           id,
		ActivityID:   activityID,
		Name:         name,
		Question:     domain.LocalizedText{"en": "Pick one"},
		ResponseType: domain.ResponseSingleSelect,
		ResponseValues: &domain.SelectionValues{Options: []domain.Option{
			{ID: "o1", Text: "Yes", Value: 0, Score: &score},
			{ID: "o2", Text: "No", Value: 1},
		}},
		Config: &domain.SingleSelectionConfig{Randomize: true},
		Order:  order,
	}
	it.Normalize()
	return it
}

func seedTree(t *testing.T, store domain.PersistentStore) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.InsertApplet(applet("a1", "u1", "Mood")); err != nil {
			return err
		}
		if err := tx.InsertActivity(domain.Activity{ID: "act1", AppletID: "a1", Key: "k1", Name: "Daily", Order: 0, CreatedAt: epoch}); err != nil {
			return err
		}
		if err := tx.InsertItem(selectItem("it1", "act1", "q1", 0)); err != nil {
			return err
		}
		if err := tx.InsertFlow(domain.Flow{ID: "f1", AppletID: "a1", Name: "Morning", Order: 0, CreatedAt: epoch}); err != nil {
			return err
		}
		return tx.InsertFlowItem(domain.FlowItem{ID: "fi1", FlowID: "f1", ActivityID: "act1", Order: 0})
	})
	require.NoError(t, err)
}

func testCurrentTreeRoundTrip(t *testing.T, factory Factory) {
	store := factory(t, domain.NewRulesEngine())
	seedTree(t, store)

	err := store.View(context.Background(), func(v domain.TransactionView) error {
		a, err := v.FindApplet("a1")
		require.NoError(t, err)
		assert.Equal(t, "Mood", a.DisplayName)
		assert.Equal(t, "about Mood", a.Description["en"])
		assert.True(t, a.CreatedAt.Equal(epoch))

		acts, err := v.ListActivities("a1")
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, "Daily", acts[0].Name)

		items, err := v.ListItems("act1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		values, ok := items[0].ResponseValues.(*domain.SelectionValues)
		require.True(t, ok, "response values variant lost: %T", items[0].ResponseValues)
		require.Len(t, values.Options, 2)
		require.NotNil(t, values.Options[0].Score)
		assert.InDelta(t, 2.0, *values.Options[0].Score, 0)
		cfg, ok := items[0].Config.(*domain.SingleSelectionConfig)
		require.True(t, ok, "config variant lost: %T", items[0].Config)
		assert.True(t, cfg.Randomize)

		flows, err := v.ListFlows("a1")
		require.NoError(t, err)
		require.Len(t, flows, 1)
		fis, err := v.ListFlowItems("f1")
		require.NoError(t, err)
		require.Len(t, fis, 1)
		assert.Equal(t, "act1", fis[0].ActivityID)

		owned, err := v.ListAppletsByOwner("u1")
		require.NoError(t, err)
		assert.Len(t, owned, 1)
		none, err := v.ListAppletsByOwner("nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
	require.NoError(t, err)
}

func testListsAreOrdered(t *testing.T, factory Factory) {
	store := factory(t, nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		require.NoError(t, tx.InsertApplet(applet("a1", "u1", "Mood")))
		for _, a := range []domain.Activity{
			{ID: "c", AppletID: "a1", Key: "c", Name: "C", Order: 2},
			{ID: "b", AppletID: "a1", Key: "b", Name: "B", Order: 0},
			{ID: "a", AppletID: "a1", Key: "a", Name: "A", Order: 1},
			{ID: "d", AppletID: "a1", Key: "d", Name: "D", Order: 0},
		} {
			require.NoError(t, tx.InsertActivity(a))
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		acts, err := v.ListActivities("a1")
		require.NoError(t, err)
		ids := make([]string, len(acts))
		for i, a := range acts {
			ids[i] = a.ID
		}
		assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
		return nil
	}))
}

func testDuplicateKeys(t *testing.T, factory Factory) {
	store := factory(t, nil)
	seedTree(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertApplet(applet("a1", "u2", "Other"))
	})
	require.Error(t, err)
	assert.True(t, domain.IsIntegrity(err), "got %v", err)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertItem(selectItem("it1", "act1", "dup", 5))
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func testLiveDisplayNames(t *testing.T, factory Factory) {
	store := factory(t, nil)
	seedTree(t, store)
	insert := func(a domain.Applet) error {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			return tx.InsertApplet(a)
		})
		return err
	}
	rename := func(id, name string) error {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.UpdateApplet(id, func(a *domain.Applet) error {
				a.DisplayName = name
				return nil
			})
			return err
		})
		return err
	}

	err := insert(applet("a2", "u1", "Mood"))
	assert.True(t, domain.IsConflict(err, domain.ConflictDisplayNameCollision), "got %v", err)
	require.NoError(t, insert(applet("a2", "u2", "Mood")), "other owners may reuse the name")

	require.NoError(t, insert(applet("a3", "u1", "Fresh")))
	err = rename("a3", "Mood")
	assert.True(t, domain.IsConflict(err, domain.ConflictDisplayNameCollision), "got %v", err)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateApplet("a1", func(a *domain.Applet) error {
			a.IsDeleted = true
			return nil
		})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, rename("a3", "Mood"), "deleted applets release their name")
}

func testForeignKeys(t *testing.T, factory Factory) {
	store := factory(t, nil)
	cases := map[string]func(domain.Transaction) error{
		"activity": func(tx domain.Transaction) error {
			return tx.InsertActivity(domain.Activity{ID: "x", AppletID: "missing", Key: "x", Name: "X"})
		},
		"item": func(tx domain.Transaction) error {
			return tx.InsertItem(selectItem("x", "missing", "x", 0))
		},
		"activity history": func(tx domain.Transaction) error {
			return tx.InsertActivityHistory(domain.ActivityHistory{IDVersion: "x_1.0.0", AppletIDVersion: "missing_1.0.0", Activity: domain.Activity{ID: "x"}})
		},
		"event link": func(tx domain.Transaction) error {
			return tx.AddEventLink(domain.EventLink{AppletIDVersion: "missing_1.0.0", EventIDVersion: "e_1", CreatedAt: epoch})
		},
	}
	for name, fn := range cases {
		_, err := store.RunInTransaction(context.Background(), fn)
		require.Error(t, err, name)
		assert.True(t, domain.IsIntegrity(err), "%s: %v", name, err)
		assert.ErrorIs(t, err, domain.ErrForeignKey, name)
	}
}

func testRollbackOnError(t *testing.T, factory Factory) {
	store := factory(t, nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		require.NoError(t, tx.InsertApplet(applet("a1", "u1", "Mood")))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		_, err := v.FindApplet("a1")
		assert.True(t, domain.IsNotFound(err), "got %v", err)
		return nil
	}))
}

type blockingRule struct{ seen []domain.Change }

func (r *blockingRule) Name() string { return "always_block" }

func (r *blockingRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	r.seen = changes
	// The uncommitted applet must be visible to rules.
	if _, err := view.FindApplet("a1"); err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Violations: []domain.Violation{{Rule: r.Name(), Severity: domain.SeverityBlock, Message: "no"}}}, nil
}

func testBlockingRule(t *testing.T, factory Factory) {
	engine := domain.NewRulesEngine()
	rule := &blockingRule{}
	engine.Register(rule)
	store := factory(t, engine)
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertApplet(applet("a1", "u1", "Mood"))
	})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.True(t, res.HasBlocking())
	require.Len(t, rule.seen, 1)
	assert.Equal(t, domain.EntityApplet, rule.seen[0].Entity)
	assert.Equal(t, "a1", rule.seen[0].AppletID)

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		_, err := v.FindApplet("a1")
		assert.True(t, domain.IsNotFound(err))
		return nil
	}))
}

func testReadsObserveOwnWrites(t *testing.T, factory Factory) {
	store := factory(t, nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		require.NoError(t, tx.InsertApplet(applet("a1", "u1", "Mood")))
		owned, err := tx.ListAppletsByOwner("u1")
		require.NoError(t, err)
		assert.Len(t, owned, 1)
		locked, err := tx.LockApplet("a1")
		require.NoError(t, err)
		assert.Equal(t, "Mood", locked.DisplayName)
		return nil
	})
	require.NoError(t, err)
}

func testUpdateAndDeleteTree(t *testing.T, factory Factory) {
	store := factory(t, nil)
	seedTree(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		updated, err := tx.UpdateApplet("a1", func(a *domain.Applet) error {
			a.Version = "1.0.1"
			a.DisplayName = "Mood 2"
			a.ID = "ignored"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "a1", updated.ID)
		return tx.DeleteAppletTree("a1")
	})
	require.NoError(t, err)

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		a, err := v.FindApplet("a1")
		require.NoError(t, err)
		assert.Equal(t, "1.0.1", a.Version)
		assert.Equal(t, "Mood 2", a.DisplayName)
		acts, err := v.ListActivities("a1")
		require.NoError(t, err)
		assert.Empty(t, acts)
		items, err := v.ListItems("act1")
		require.NoError(t, err)
		assert.Empty(t, items)
		flows, err := v.ListFlows("a1")
		require.NoError(t, err)
		assert.Empty(t, flows)
		fis, err := v.ListFlowItems("f1")
		require.NoError(t, err)
		assert.Empty(t, fis)
		return nil
	}))

	mutatorErr := errors.New("refused")
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateApplet("a1", func(*domain.Applet) error { return mutatorErr })
		return err
	})
	require.ErrorIs(t, err, mutatorErr)
}

func seedHistory(t *testing.T, store domain.PersistentStore, version string) {
	t.Helper()
	appletIDV := domain.IDVersionOf("a1", version)
	actIDV := domain.IDVersionOf("act1", version)
	flowIDV := domain.IDVersionOf("f1", version)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		a := applet("a1", "u1", "Mood")
		a.Version = version
		if err := tx.InsertAppletHistory(domain.AppletHistory{IDVersion: appletIDV, UserID: "u1", Applet: a}); err != nil {
			return err
		}
		if err := tx.InsertActivityHistory(domain.ActivityHistory{IDVersion: actIDV, AppletIDVersion: appletIDV, Activity: domain.Activity{ID: "act1", AppletID: "a1", Key: "k1", Name: "Daily"}}); err != nil {
			return err
		}
		if err := tx.InsertItemHistory(domain.ItemHistory{IDVersion: domain.IDVersionOf("it1", version), ActivityIDVersion: actIDV, Item: selectItem("it1", "act1", "q1", 0)}); err != nil {
			return err
		}
		if err := tx.InsertFlowHistory(domain.FlowHistory{IDVersion: flowIDV, AppletIDVersion: appletIDV, Flow: domain.Flow{ID: "f1", AppletID: "a1", Name: "Morning"}}); err != nil {
			return err
		}
		return tx.InsertFlowItemHistory(domain.FlowItemHistory{IDVersion: domain.IDVersionOf("fi1", version), FlowIDVersion: flowIDV, ActivityIDVersion: actIDV, FlowItem: domain.FlowItem{ID: "fi1", FlowID: "f1", ActivityID: "act1"}})
	})
	require.NoError(t, err)
}

func testHistoryTables(t *testing.T, factory Factory) {
	store := factory(t, nil)
	seedHistory(t, store, "1.0.1")
	seedHistory(t, store, "1.0.0")

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		hs, err := v.ListAppletHistories("a1")
		require.NoError(t, err)
		require.Len(t, hs, 2)
		assert.Equal(t, "1.0.0", hs[0].Version)
		assert.Equal(t, "1.0.1", hs[1].Version)

		h, err := v.FindAppletHistory("a1_1.0.1")
		require.NoError(t, err)
		assert.Equal(t, "u1", h.UserID)

		acts, err := v.ListActivityHistories("a1_1.0.0")
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, "act1_1.0.0", acts[0].IDVersion)

		items, err := v.ListItemHistories("act1_1.0.0")
		require.NoError(t, err)
		require.Len(t, items, 1)
		_, ok := items[0].ResponseValues.(*domain.SelectionValues)
		assert.True(t, ok, "item history lost its values variant")

		flows, err := v.ListFlowHistories("a1_1.0.1")
		require.NoError(t, err)
		require.Len(t, flows, 1)
		fis, err := v.ListFlowItemHistories("f1_1.0.1")
		require.NoError(t, err)
		require.Len(t, fis, 1)
		assert.Equal(t, "act1_1.0.1", fis[0].ActivityIDVersion)
		return nil
	}))

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertAppletHistory(domain.AppletHistory{IDVersion: "a1_1.0.0", Applet: applet("a1", "u1", "Mood")})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func testEventLinks(t *testing.T, factory Factory) {
	store := factory(t, nil)
	seedHistory(t, store, "1.0.0")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, ev := range []string{"e2_1", "e1_1", "e3_1"} {
			if err := tx.AddEventLink(domain.EventLink{AppletIDVersion: "a1_1.0.0", EventIDVersion: ev, CreatedAt: epoch}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.AddEventLink(domain.EventLink{AppletIDVersion: "a1_1.0.0", EventIDVersion: "e1_1", CreatedAt: epoch})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.SoftDeleteEventLink("a1_1.0.0", "e1_1")
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.SoftDeleteEventLink("a1_1.0.0", "nope")
	})
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		links, err := v.ListEventLinks("a1_1.0.0")
		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "e2_1", links[0].EventIDVersion)
		assert.Equal(t, "e1_1", links[1].EventIDVersion)
		assert.True(t, links[1].IsDeleted)
		assert.False(t, links[0].IsDeleted)
		assert.True(t, links[2].CreatedAt.Equal(epoch))
		return nil
	}))
}

func testCancelledContext(t *testing.T, factory Factory) {
	store := factory(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		cancel()
		return tx.InsertApplet(applet("a1", "u1", "Mood"))
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		_, err := v.FindApplet("a1")
		assert.True(t, domain.IsNotFound(err))
		return nil
	}))
}

func testNotFound(t *testing.T, factory Factory) {
	store := factory(t, nil)
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		_, err := v.FindApplet("missing")
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, domain.EntityApplet, nf.Entity)
		_, err = v.FindAppletHistory("missing_1.0.0")
		assert.True(t, domain.IsNotFound(err))
		return nil
	}))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateApplet("missing", func(*domain.Applet) error { return nil })
		return err
	})
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}
