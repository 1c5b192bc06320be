// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A scriptable database/sql driver for tests. Handlers are registered
// against the compiled (positional placeholder) query text; every statement
// executed through the stub is recorded with its bound arguments.

package nestbox

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
)

const stubDriverName = "neststub"

func init() {
	sql.Register(stubDriverName, stubDriver{})
	// Named placeholders compile to positional ones, as for mysql.
	sqlx.BindDriver(stubDriverName, sqlx.QUESTION)
}

var (
	stubMu     sync.Mutex
	stubActive *stubScript
)

// stubCall is one executed statement with its bound arguments.
type stubCall struct {
	query string
	args  []driver.Value
}

type stubHandler struct {
	cols     []string
	rows     [][]driver.Value
	lastID   int64
	affected int64
	err      error
}

// stubScript holds the handlers and the execution log for one test.
type stubScript struct {
	mu        sync.Mutex
	handlers  map[string]*stubHandler
	calls     []stubCall
	closes    map[string]int
	commits   int
	rollbacks int
}

func newStubScript() *stubScript {
	s := &stubScript{
		handlers: make(map[string]*stubHandler),
		closes:   make(map[string]int),
	}
	// Connection probe.
	s.onRows("SELECT 1", []string{"1"}, []driver.Value{int64(1)})
	return s
}

// onRows scripts a result set for the given compiled query text.
func (s *stubScript) onRows(query string, cols []string, rows ...[]driver.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[query] = &stubHandler{cols: cols, rows: rows}
}

// onExec scripts an exec outcome for the given compiled query text.
func (s *stubScript) onExec(query string, lastID, affected int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[query] = &stubHandler{lastID: lastID, affected: affected}
}

// onErr scripts a failure for the given compiled query text.
func (s *stubScript) onErr(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[query] = &stubHandler{err: err}
}

func (s *stubScript) handler(query string) (*stubHandler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[query]
	if !ok {
		return nil, fmt.Errorf("stub: no handler for query %q", query)
	}
	return h, nil
}

func (s *stubScript) record(query string, args []driver.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, stubCall{query: query, args: args})
}

// closed returns how many prepared statements for the given compiled query
// text have been closed.
func (s *stubScript) closed(query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes[query]
}

// executed returns the queries run through the stub, in order, excluding
// connection probes.
func (s *stubScript) executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var queries []string
	for _, c := range s.calls {
		if c.query == "SELECT 1" {
			continue
		}
		queries = append(queries, c.query)
	}
	return queries
}

//////////////////////////////////////////
// driver implementation

type stubDriver struct{}

func (stubDriver) Open(name string) (driver.Conn, error) {
	stubMu.Lock()
	defer stubMu.Unlock()
	if stubActive == nil {
		return nil, fmt.Errorf("stub: no active script")
	}
	return &stubConn{script: stubActive}, nil
}

type stubConn struct {
	script *stubScript
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return &stubTx{script: c.script}, nil
}

type stubTx struct {
	script *stubScript
}

func (tx *stubTx) Commit() error {
	tx.script.mu.Lock()
	defer tx.script.mu.Unlock()
	tx.script.commits++
	return nil
}

func (tx *stubTx) Rollback() error {
	tx.script.mu.Lock()
	defer tx.script.mu.Unlock()
	tx.script.rollbacks++
	return nil
}

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error {
	s.conn.script.mu.Lock()
	defer s.conn.script.mu.Unlock()
	s.conn.script.closes[s.query]++
	return nil
}

func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.conn.script.record(s.query, args)
	h, err := s.conn.script.handler(s.query)
	if err != nil {
		return nil, err
	}
	if h.err != nil {
		return nil, h.err
	}
	return &stubRows{cols: h.cols, rows: h.rows}, nil
}

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.conn.script.record(s.query, args)
	h, err := s.conn.script.handler(s.query)
	if err != nil {
		return nil, err
	}
	if h.err != nil {
		return nil, h.err
	}
	return stubResult{lastID: h.lastID, affected: h.affected}, nil
}

type stubResult struct {
	lastID, affected int64
}

func (r stubResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.affected, nil }

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

//////////////////////////////////////////
// test helpers

// newStubDB returns a handle wired to a fresh stub script. The script stays
// active until the test ends; tests using the stub must not run in parallel.
func newStubDB(t *testing.T) (*DB, *stubScript) {
	t.Helper()
	script := newStubScript()
	stubMu.Lock()
	stubActive = script
	stubMu.Unlock()
	t.Cleanup(func() {
		stubMu.Lock()
		stubActive = nil
		stubMu.Unlock()
	})

	db, err := New(Config{
		Host:     "stub:3306",
		User:     "tester",
		Password: "secret",
		Name:     "testdb",
		Driver:   stubDriverName,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, script
}

// compiled rewrites named placeholders to positional ones, matching what the
// stub driver sees after sqlx compiles the query.
func compiled(query string) string {
	return paramPattern.ReplaceAllString(query, "?")
}

// scriptSchema scripts catalog and primary key result sets for the given
// tables. Column sets follow the sample schema used across the tests.
func scriptSchema(script *stubScript) {
	script.onRows(compiled(catalogQuery),
		[]string{"TABLE_NAME", "COLUMN_NAME", "DATA_TYPE"},
		[]driver.Value{"nests", "nest_id", "int"},
		[]driver.Value{"nests", "nest_name", "varchar"},
		[]driver.Value{"nests", "notes", "text"},
		[]driver.Value{"eggs", "egg_id", "int"},
		[]driver.Value{"eggs", "nest_id", "int"},
		[]driver.Value{"eggs", "label", "varchar"},
		[]driver.Value{"eggs", "weight", "int"},
	)
	script.onRows(compiled(primaryKeyQuery),
		[]string{"TABLE_NAME", "COLUMN_NAME"},
		[]driver.Value{"nests", "nest_id"},
		[]driver.Value{"eggs", "egg_id"},
	)
}
