// Package testutil registers a stub database/sql driver so postgres store
// tests can exercise the full snapshot round trip without a server. The stub
// keeps rows in per-table maps and honors the first-column ON CONFLICT
// replacement the bucket upserts depend on.
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

var stubSeq uint64

// StubConn is the shared connection behind a stub DB. Tests inspect Tables
// after commits and flip the Fail knobs to force error paths.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
}

// NewStubDB opens a sql.DB over a fresh stub connection. Each call registers
// a uniquely named driver, since database/sql forbids re-registration.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg-%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("stub: prepared statements unsupported")
}

func (c *StubConn) Close() error { return nil }

func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return fmt.Errorf("stub: ping refused")
	}
	return nil
}

func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("stub: begin refused")
	}
	return stubTxn{conn: c}, nil
}

func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("stub: exec refused")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		return driver.RowsAffected(1), nil
	}

	table, cols, err := insertTarget(query)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("stub: %s insert has %d columns but %d args", table, len(cols), len(args))
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	if strings.Contains(strings.ToUpper(query), "ON CONFLICT") && len(cols) > 0 {
		c.replaceByKey(table, cols[0], row[cols[0]])
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

// replaceByKey drops any row whose key column matches, emulating the upsert.
func (c *StubConn) replaceByKey(table, key string, value any) {
	kept := c.Tables[table][:0]
	for _, row := range c.Tables[table] {
		if row[key] != value {
			kept = append(kept, row)
		}
	}
	c.Tables[table] = kept
}

func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if c.Tables == nil {
		c.Tables = make(map[string][]map[string]any)
	}
	table, cols, err := selectTarget(query)
	if err != nil {
		return nil, err
	}
	var out [][]driver.Value
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out = append(out, vals)
	}
	return &stubRows{cols: cols, rows: out, tail: c.RowsErr}, nil
}

type stubTxn struct{ conn *StubConn }

func (t stubTxn) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("stub: commit refused")
	}
	return nil
}

func (t stubTxn) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	next int
	tail error
}

func (r *stubRows) Columns() []string { return r.cols }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		if r.tail != nil {
			return r.tail
		}
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

// insertTarget extracts the lowercased table and column list from an
// INSERT INTO table (col, ...) statement.
func insertTarget(query string) (string, []string, error) {
	after := strings.Index(strings.ToUpper(query), "INTO ")
	if after == -1 {
		return "", nil, fmt.Errorf("stub: unparseable insert %q", query)
	}
	rest := strings.TrimSpace(query[after+len("INTO "):])
	open := strings.IndexByte(rest, '(')
	end := strings.IndexByte(rest, ')')
	if open == -1 || end <= open {
		return "", nil, fmt.Errorf("stub: unparseable insert %q", query)
	}
	return strings.ToLower(strings.TrimSpace(rest[:open])), columnList(rest[open+1 : end]), nil
}

// selectTarget extracts the lowercased table and column list from a
// SELECT col, ... FROM table statement.
func selectTarget(query string) (string, []string, error) {
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select ") {
		return "", nil, fmt.Errorf("stub: unparseable select %q", query)
	}
	from := strings.Index(lower, " from ")
	if from == -1 {
		return "", nil, fmt.Errorf("stub: unparseable select %q", query)
	}
	tail := strings.Fields(query[from+len(" from "):])
	if len(tail) == 0 {
		return "", nil, fmt.Errorf("stub: unparseable select %q", query)
	}
	return strings.ToLower(tail[0]), columnList(query[len("select "):from]), nil
}

func columnList(raw string) []string {
	parts := strings.Split(raw, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, strings.ToLower(strings.TrimSpace(p)))
	}
	return cols
}
