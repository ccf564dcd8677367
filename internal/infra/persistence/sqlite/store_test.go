package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"appletcore/internal/infra/persistence/schema"
	"appletcore/internal/infra/persistence/sqlstore"
	"appletcore/internal/infra/persistence/storetest"
	"appletcore/pkg/domain"
)

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, engine *domain.RulesEngine) domain.PersistentStore {
		store, err := NewStore(MemoryPath, engine)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestSQLiteStoreAppliesSchema(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for _, table := range schema.Tables() {
		var name string
		if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name); err != nil {
			t.Fatalf("lookup %s table: %v", table, err)
		}
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertApplet(domain.Applet{ID: "a1", OwnerID: "u1", DisplayName: "Persist", Version: "1.0.0"})
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	err = reopened.View(context.Background(), func(v domain.TransactionView) error {
		a, err := v.FindApplet("a1")
		if err != nil {
			return err
		}
		if a.DisplayName != "Persist" {
			t.Fatalf("unexpected applet %+v", a)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestClassifyPassesThroughUnknownErrors(t *testing.T) {
	if got := (Dialect{}).Classify(errors.New("plain")); got != sqlstore.ClassOther {
		t.Fatalf("expected ClassOther, got %v", got)
	}
}
