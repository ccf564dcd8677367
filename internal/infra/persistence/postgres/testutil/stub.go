// Package testutil provides a recording stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn records statements issued by the postgres store and serves canned
// JSON bodies per table.
type StubConn struct {
	Execs      []string
	ExecArgs   [][]driver.Value
	Queries    []string
	Bodies     map[string][]string
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	// InsertErr is returned from every INSERT when set.
	InsertErr error
	Commits   int
	Rollbacks int
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Bodies: make(map[string][]string)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	c.ExecArgs = append(c.ExecArgs, values)
	if c.InsertErr != nil && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT") {
		return nil, c.InsertErr
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext. Every query yields the
// canned bodies of the table named after FROM.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.Queries = append(c.Queries, query)
	table, err := parseFrom(query)
	if err != nil {
		return nil, err
	}
	rows := make([][]driver.Value, 0, len(c.Bodies[table]))
	for _, body := range c.Bodies[table] {
		rows = append(rows, []driver.Value{body})
	}
	return &stubRows{cols: []string{"body"}, rows: rows}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func parseFrom(query string) (string, error) {
	lower := strings.ToLower(query)
	idx := strings.Index(lower, " from ")
	if idx == -1 {
		return "", fmt.Errorf("cannot parse select: %s", query)
	}
	fields := strings.Fields(query[idx+len(" from "):])
	if len(fields) == 0 {
		return "", fmt.Errorf("cannot parse select: %s", query)
	}
	return strings.ToLower(fields[0]), nil
}
