// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/supergnaw/nestbox/lib"
)

// Row is a single result row, keyed by column name.
type Row map[string]interface{}

// Params maps named placeholders to their values. Keys may be given with or
// without the leading colon.
type Params map[string]interface{}

// lastResult captures the outcome of the most recently executed statement.
type lastResult struct {
	cols         []string
	rows         []Row
	rowCount     int64
	lastInsertID int64
}

// Matches named placeholders in SQL text.
var paramPattern = regexp.MustCompile(`:[A-Za-z_][A-Za-z0-9_]*`)

//////////////////////////////////////////
// Statement preparation and execution

// Prep compiles the query into a prepared statement, replacing any
// previously prepared statement on this connection.
func (h *DB) Prep(query string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.connect(); err != nil {
		return err
	}
	return h.prep(query)
}

func (h *DB) prep(query string) error {
	if h.stmt != nil {
		_ = h.stmt.Close()
		h.stmt = nil
		h.stmtQuery = ""
	}
	var (
		stmt *sqlx.NamedStmt
		err  error
	)
	if h.tx != nil {
		stmt, err = h.tx.PrepareNamed(query)
	} else {
		stmt, err = h.db.PrepareNamed(query)
	}
	if err != nil {
		return newQueryError(query, err)
	}
	h.stmt = stmt
	h.stmtQuery = query
	h.last = lastResult{}
	return nil
}

// ExecutePrepared binds params into the current prepared statement and runs
// it. Results, row count and last insert id become available through the
// accessors below.
func (h *DB) ExecutePrepared(params Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.executePrepared(params)
}

func (h *DB) executePrepared(params Params) error {
	if h.stmt == nil {
		return ErrNotPrepared
	}
	args, err := bindArgs(params)
	if err != nil {
		return err
	}
	// Every placeholder in the statement must have a binding; sqlx reports
	// the miss with an opaque error, so check up front.
	for _, name := range h.stmt.Params {
		if _, ok := args[name]; !ok {
			return &BindError{Name: name, Err: fmt.Errorf("no value bound for placeholder :%s", name)}
		}
	}
	if isQuery(h.stmtQuery) {
		rows, err := h.stmt.Queryx(args)
		if err != nil {
			return newQueryError(h.stmtQuery, err)
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			return newQueryError(h.stmtQuery, err)
		}
		var out []Row
		for rows.Next() {
			row := make(Row)
			if err := rows.MapScan(row); err != nil {
				return newQueryError(h.stmtQuery, err)
			}
			normalizeRow(row)
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return newQueryError(h.stmtQuery, err)
		}
		h.last = lastResult{cols: cols, rows: out, rowCount: int64(len(out))}
		return nil
	}
	res, err := h.stmt.Exec(args)
	if err != nil {
		return newQueryError(h.stmtQuery, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return newQueryError(h.stmtQuery, err)
	}
	// Not every statement produces an insert id; ignore driver refusals.
	id, _ := res.LastInsertId()
	h.last = lastResult{rowCount: count, lastInsertID: id}
	return nil
}

// bindArgs validates and converts params into driver arguments.
func bindArgs(params Params) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(params))
	for name, raw := range params {
		v, err := BindValue(raw)
		if err != nil {
			return nil, &BindError{Name: normalizeParam(name), Value: raw, Err: err}
		}
		args[normalizeParam(name)] = v.arg()
	}
	return args, nil
}

// isQuery reports whether the statement produces a result set. Covers plain
// selects, catalog statements, CTEs and parenthesized selects.
func isQuery(query string) bool {
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(trimmed, "(") {
		return true
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "select", "show", "describe", "desc", "explain", "with":
		return true
	}
	return false
}

// normalizeRow converts raw []byte column values to strings.
func normalizeRow(row Row) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}

//////////////////////////////////////////
// Result accessors

// Results returns all rows fetched by the last executed statement.
func (h *DB) Results() []Row {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last.rows
}

// FirstResult returns the first row fetched by the last executed statement,
// and whether at least one row exists.
func (h *DB) FirstResult() (Row, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.last.rows) == 0 {
		return nil, false
	}
	return h.last.rows[0], true
}

// RowCount returns the affected or selected row count of the last executed
// statement.
func (h *DB) RowCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last.rowCount
}

// LastInsertID returns the auto-generated id of the most recent insert, as
// a string.
func (h *DB) LastInsertID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strconv.FormatInt(h.last.lastInsertID, 10)
}

// KeyPair returns the last result set as a mapping from the first selected
// column to the second. The result set must have at least two columns.
func (h *DB) KeyPair() (map[string]interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.last.cols) < 2 {
		return nil, fmt.Errorf("nestbox: key pair requires a two-column result set, got %d columns", len(h.last.cols))
	}
	pairs := make(map[string]interface{}, len(h.last.rows))
	for _, row := range h.last.rows {
		pairs[fmt.Sprint(row[h.last.cols[0]])] = row[h.last.cols[1]]
	}
	return pairs, nil
}

//////////////////////////////////////////
// Top-level execution

// Exec prepares, binds and executes a single statement. Parameters not
// referenced by name in the query text are dropped before binding. If
// closeAfter is set, the connection is closed once the statement completes.
func (h *DB) Exec(query string, params Params, closeAfter bool) (rerr error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer func() {
		if closeAfter {
			rerr = lib.MergeErrors(rerr, h.close(), "; ")
		}
	}()
	return h.exec(query, params)
}

func (h *DB) exec(query string, params Params) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	params = referencedParams(query, params)
	if err := h.connect(); err != nil {
		return err
	}
	if err := h.prep(query); err != nil {
		return err
	}
	return h.executePrepared(params)
}

// referencedParams drops any parameter whose name does not appear as a
// placeholder in the query text. Defensive filtering against stray bindings.
func referencedParams(query string, params Params) Params {
	if len(params) == 0 {
		return params
	}
	referenced := make(map[string]bool)
	for _, m := range paramPattern.FindAllString(query, -1) {
		referenced[normalizeParam(m)] = true
	}
	kept := make(Params, len(params))
	for name, value := range params {
		if referenced[normalizeParam(name)] {
			kept[name] = value
		}
	}
	return kept
}
