package memory_test

import (
	"context"
	"testing"

	"appletcore/internal/infra/persistence/memory"
	"appletcore/internal/infra/persistence/storetest"
	"appletcore/pkg/domain"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(_ *testing.T, engine *domain.RulesEngine) domain.PersistentStore {
		return memory.NewStore(engine)
	})
}

func TestReadsReturnDeepCopies(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertApplet(domain.Applet{ID: "a1", OwnerID: "u1", DisplayName: "Mood", Description: domain.LocalizedText{"en": "x"}})
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		a, _ := v.FindApplet("a1")
		a.Description["en"] = "mutated"
		return nil
	})
	snap := store.ExportState()
	if snap.Applets["a1"].Description["en"] != "x" {
		t.Fatalf("view mutation leaked into store state")
	}
}

func TestExportStateOrdersEventLinks(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.InsertAppletHistory(domain.AppletHistory{IDVersion: "a1_1.0.0", Applet: domain.Applet{ID: "a1", Version: "1.0.0"}}); err != nil {
			return err
		}
		for _, ev := range []string{"z_1", "a_1", "m_1"} {
			if err := tx.AddEventLink(domain.EventLink{AppletIDVersion: "a1_1.0.0", EventIDVersion: ev}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	links := store.ExportState().EventLinks
	if len(links) != 3 || links[0].EventIDVersion != "z_1" || links[2].EventIDVersion != "m_1" {
		t.Fatalf("unexpected link order: %+v", links)
	}
}

func TestViewRejectsCancelledContext(t *testing.T) {
	store := memory.NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.View(ctx, func(domain.TransactionView) error { return nil }); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
