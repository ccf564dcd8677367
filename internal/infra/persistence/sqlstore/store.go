// Package sqlstore implements domain.PersistentStore on database/sql. The
// sqlite and postgres packages supply a Dialect and an opened *sql.DB.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"appletcore/internal/infra/persistence/schema"
	"appletcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Class is the dialect-neutral category of a driver error.
type Class int

// Driver error classes.
const (
	ClassOther Class = iota
	ClassConflict
	ClassDuplicate
	ClassForeignKey
	// ClassDisplayName is a violation of the live (owner_id, display_name)
	// unique index.
	ClassDisplayName
)

// DisplayNameIndex names the partial unique index over live applets.
const DisplayNameIndex = "uq_applets_owner_display_name"

// Dialect captures the SQL differences between backends.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// LockSuffix is appended to a single-row SELECT to hold a write lock.
	LockSuffix() string
	Classify(err error) Class
}

// Store runs applet transactions against a relational database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	engine  *domain.RulesEngine
}

// New wraps db. The caller keeps ownership of schema setup; see ApplySchema.
func New(db *sql.DB, dialect Dialect, engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{db: db, dialect: dialect, engine: engine}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the backend dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// RulesEngine exposes the engine evaluated before every commit.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// ApplySchema executes every statement of ddl.
func (s *Store) ApplySchema(ctx context.Context, ddl string) error {
	for _, stmt := range schema.SplitStatements(ddl) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.dialect.Name(), err)
		}
	}
	return nil
}

// RunInTransaction executes fn inside a database transaction, evaluates the
// rules engine against the uncommitted state and commits only when no
// blocking violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (res domain.Result, err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, s.classify("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &transaction{txView: txView{ctx: ctx, tx: sqlTx, store: s}}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	res, err = s.engine.Evaluate(ctx, &tx.txView, tx.changes)
	if err != nil {
		return domain.Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	if err := sqlTx.Commit(); err != nil {
		return domain.Result{}, s.classify("commit", err)
	}
	committed = true
	return res, nil
}

// View executes fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify("begin view", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&txView{ctx: ctx, tx: sqlTx, store: s})
}

// rebind rewrites '?' markers into the dialect's placeholders.
func (s *Store) rebind(query string) string {
	if s.dialect.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// classify maps driver failures onto domain errors. Context errors pass
// through untouched so callers can distinguish timeouts.
func (s *Store) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	switch s.dialect.Classify(err) {
	case ClassConflict:
		return &domain.ConflictError{Kind: domain.ConflictConcurrentUpdate, Message: op, Err: err}
	case ClassDuplicate:
		return &domain.IntegrityError{Op: op, Err: fmt.Errorf("%w: %w", domain.ErrDuplicateKey, err)}
	case ClassForeignKey:
		return &domain.IntegrityError{Op: op, Err: fmt.Errorf("%w: %w", domain.ErrForeignKey, err)}
	case ClassDisplayName:
		return &domain.ConflictError{Kind: domain.ConflictDisplayNameCollision, Message: op, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Placeholder helpers shared by dialects.

// QuestionMark binds every argument as '?'.
func QuestionMark(int) string { return "?" }

// Dollar binds arguments as $1, $2, ...
func Dollar(n int) string { return "$" + strconv.Itoa(n) }
