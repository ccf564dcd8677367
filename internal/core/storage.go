package core

import (
	"fmt"

	"appletcore/internal/config"
	"appletcore/internal/infra/persistence/memory"
	"appletcore/internal/infra/persistence/postgres"
	"appletcore/internal/infra/persistence/sqlite"
	"appletcore/internal/version"
	"appletcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend from cfg. An empty driver selects sqlite.
func OpenPersistentStore(cfg config.Storage, engine *RulesEngine) (PersistentStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OptionsFromConfig turns the core section of the configuration into
// service options.
func OptionsFromConfig(cfg config.Core) ([]Option, error) {
	bump, err := version.ParseBump(cfg.DefaultBump)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithTxTimeout(cfg.TxTimeout.Duration),
		WithDefaultBump(bump),
	}, nil
}
