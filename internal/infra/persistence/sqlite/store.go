// Package sqlite provides the SQLite-backed applet store on the pure Go
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"appletcore/internal/infra/persistence/schema"
	"appletcore/internal/infra/persistence/sqlstore"
	"appletcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultPath = "appletcore.db"

// Store is a sqlstore.Store bound to a SQLite file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating when needed) the database at path and applies the
// schema. Writers take the database lock at BEGIN so that applet updates are
// serialised instead of failing on upgrade.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	dsn := "file::memory:"
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		dsn = "file:" + path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases alive and matches SQLite's
	// single-writer model.
	db.SetMaxOpenConns(1)
	store := &Store{Store: sqlstore.New(db, Dialect{}, engine), path: path}
	if err := store.ApplySchema(context.Background(), schema.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Dialect is the SQLite flavour of sqlstore.Dialect.
type Dialect struct{}

// Name implements sqlstore.Dialect.
func (Dialect) Name() string { return "sqlite" }

// Placeholder implements sqlstore.Dialect.
func (Dialect) Placeholder(n int) string { return sqlstore.QuestionMark(n) }

// LockSuffix is empty: immediate transactions already hold the write lock.
func (Dialect) LockSuffix() string { return "" }

// Classify implements sqlstore.Dialect.
func (Dialect) Classify(err error) sqlstore.Class {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return sqlstore.ClassOther
	}
	switch code := se.Code(); code {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return sqlstore.ClassForeignKey
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		if isDisplayNameViolation(se) {
			return sqlstore.ClassDisplayName
		}
		return sqlstore.ClassDuplicate
	default:
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return sqlstore.ClassConflict
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(se.Error(), "FOREIGN KEY") {
				return sqlstore.ClassForeignKey
			}
			if strings.Contains(se.Error(), "UNIQUE") {
				if isDisplayNameViolation(se) {
					return sqlstore.ClassDisplayName
				}
				return sqlstore.ClassDuplicate
			}
		}
	}
	return sqlstore.ClassOther
}

// SQLite names the indexed columns rather than the index in the message.
func isDisplayNameViolation(se *sqlite.Error) bool {
	return strings.Contains(se.Error(), "applets.owner_id, applets.display_name")
}
