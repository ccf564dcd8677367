// Package postgres provides the Postgres-backed applet store. Statements run
// through pgx's database/sql driver and the embedded Postgres DDL is applied
// on startup.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"appletcore/internal/infra/persistence/schema"
	"appletcore/internal/infra/persistence/sqlstore"
	"appletcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/appletcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a sqlstore.Store bound to a Postgres database.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN) and applies the schema.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &Store{Store: sqlstore.New(db, Dialect{}, engine)}
	if err := store.ApplySchema(ctx, schema.Postgres()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect is the Postgres flavour of sqlstore.Dialect.
type Dialect struct{}

// Name implements sqlstore.Dialect.
func (Dialect) Name() string { return "postgres" }

// Placeholder implements sqlstore.Dialect.
func (Dialect) Placeholder(n int) string { return sqlstore.Dollar(n) }

// LockSuffix implements sqlstore.Dialect.
func (Dialect) LockSuffix() string { return " FOR UPDATE" }

// SQLSTATE codes the store reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
)

// Classify implements sqlstore.Dialect.
func (Dialect) Classify(err error) sqlstore.Class {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return sqlstore.ClassOther
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return sqlstore.ClassConflict
	case codeUniqueViolation:
		if pgErr.ConstraintName == sqlstore.DisplayNameIndex {
			return sqlstore.ClassDisplayName
		}
		return sqlstore.ClassDuplicate
	case codeForeignKeyViolation:
		return sqlstore.ClassForeignKey
	}
	return sqlstore.ClassOther
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
