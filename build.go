// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"fmt"
	"sort"
	"strings"
)

// Quick queries synthesize single-table SQL from Go maps. Table and column
// names are validated against the cached catalog before being spliced into
// the statement; values always travel as bound parameters.

// quoteIdent backtick-quotes an identifier. Embedded backticks are stripped;
// identifiers are validated against the catalog before quoting, so this is
// formatting, not escaping.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

// sortedKeys returns the parameter names in deterministic order.
func sortedKeys(params Params) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, normalizeParam(k))
	}
	sort.Strings(keys)
	return keys
}

// conjunctionWord normalizes the where-clause conjunction. Anything other
// than OR joins with AND.
func conjunctionWord(conjunction string) string {
	if strings.EqualFold(strings.TrimSpace(conjunction), "OR") {
		return "OR"
	}
	return "AND"
}

//////////////////////////////////////////
// Statement builders

// buildInsert synthesizes a multi-row INSERT. Every row must bind exactly
// the columns of the first row. With update set, an ON DUPLICATE KEY UPDATE
// clause refreshes every non-key column; primary names the key column to
// leave untouched and may be empty.
func buildInsert(table string, rows []Params, update bool, primary string) (string, Params, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("nestbox: insert into %s requires at least one row", table)
	}
	cols := sortedKeys(rows[0])
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("nestbox: insert into %s requires at least one column", table)
	}

	params := make(Params, len(rows)*len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}

	var groups []string
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("nestbox: insert row %d binds %d columns, want %d", i, len(row), len(cols))
		}
		marks := make([]string, len(cols))
		for j, col := range cols {
			value, ok := rowValue(row, col)
			if !ok {
				return "", nil, fmt.Errorf("nestbox: insert row %d is missing column %s", i, col)
			}
			name := col
			if len(rows) > 1 {
				name = fmt.Sprintf("%s_%d", col, i)
			}
			marks[j] = ":" + name
			params[name] = value
		}
		groups = append(groups, "( "+strings.Join(marks, ", ")+" )")
	}

	query := fmt.Sprintf("INSERT INTO %s ( %s ) VALUES %s",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(groups, ", "))

	if update {
		var updates []string
		for _, col := range cols {
			if col == primary {
				continue
			}
			if len(rows) > 1 {
				updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", quoteIdent(col), quoteIdent(col)))
			} else {
				updates = append(updates, fmt.Sprintf("%s = :%s", quoteIdent(col), col))
			}
		}
		if len(updates) > 0 {
			query += " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
		}
	}
	return query, params, nil
}

// buildWhere synthesizes a WHERE clause of equality conditions joined by the
// conjunction. Placeholder names carry the given suffix to keep them apart
// from same-named parameters elsewhere in the statement.
func buildWhere(where Params, conjunction, suffix string) (string, Params) {
	if len(where) == 0 {
		return "", nil
	}
	params := make(Params, len(where))
	var conds []string
	for _, col := range sortedKeys(where) {
		value, _ := rowValue(where, col)
		name := col + suffix
		conds = append(conds, fmt.Sprintf("%s = :%s", quoteIdent(col), name))
		params[name] = value
	}
	return " WHERE " + strings.Join(conds, " "+conjunctionWord(conjunction)+" "), params
}

// buildUpdate synthesizes an UPDATE. Where placeholders that collide with a
// set column are suffixed to keep both bindings.
func buildUpdate(table string, set, where Params, conjunction string) (string, Params, error) {
	if len(set) == 0 {
		return "", nil, fmt.Errorf("nestbox: update of %s requires at least one column", table)
	}
	params := make(Params, len(set)+len(where))
	var assigns []string
	for _, col := range sortedKeys(set) {
		value, _ := rowValue(set, col)
		assigns = append(assigns, fmt.Sprintf("%s = :%s", quoteIdent(col), col))
		params[col] = value
	}

	suffix := ""
	for k := range where {
		if _, collides := params[normalizeParam(k)]; collides {
			suffix = "_w"
			break
		}
	}
	clause, whereParams := buildWhere(where, conjunction, suffix)
	for k, v := range whereParams {
		params[k] = v
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(table), strings.Join(assigns, ", "), clause)
	return query, params, nil
}

func buildDelete(table string, where Params, conjunction string) (string, Params) {
	clause, params := buildWhere(where, conjunction, "")
	return fmt.Sprintf("DELETE FROM %s%s", quoteIdent(table), clause), params
}

func buildSelect(table string, where Params, conjunction string) (string, Params) {
	clause, params := buildWhere(where, conjunction, "")
	return fmt.Sprintf("SELECT * FROM %s%s", quoteIdent(table), clause), params
}

// rowValue looks up a column in a row regardless of whether the caller keyed
// it with a leading colon.
func rowValue(row Params, col string) (interface{}, bool) {
	if v, ok := row[col]; ok {
		return v, true
	}
	v, ok := row[":"+col]
	return v, ok
}

//////////////////////////////////////////
// Quick queries

// Insert adds rows to the table, all binding the same columns. With update
// set, rows that collide on a unique key update their non-key columns
// instead of failing. Returns the number of affected rows.
func (h *DB) Insert(table string, rows []Params, update bool) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.validateQuick(table, rows...); err != nil {
		return 0, err
	}
	primary := h.schema[table].primary
	query, params, err := buildInsert(table, rows, update, primary)
	if err != nil {
		return 0, err
	}
	if err := h.exec(query, params); err != nil {
		return 0, err
	}
	return h.last.rowCount, nil
}

// Update sets the given columns on rows matching the where conditions,
// joined by the conjunction (AND unless OR is given). An empty where map is
// rejected; use UpdateAll to touch every row.
func (h *DB) Update(table string, set, where Params, conjunction string) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyWhere
	}
	return h.update(table, set, where, conjunction)
}

// UpdateAll sets the given columns on every row of the table.
func (h *DB) UpdateAll(table string, set Params) (int64, error) {
	return h.update(table, set, nil, "")
}

func (h *DB) update(table string, set, where Params, conjunction string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.validateQuick(table, set, where); err != nil {
		return 0, err
	}
	query, params, err := buildUpdate(table, set, where, conjunction)
	if err != nil {
		return 0, err
	}
	if err := h.exec(query, params); err != nil {
		return 0, err
	}
	return h.last.rowCount, nil
}

// Delete removes rows matching the where conditions. An empty where map is
// rejected; use DeleteAll to empty the table.
func (h *DB) Delete(table string, where Params, conjunction string) (int64, error) {
	if len(where) == 0 {
		return 0, ErrEmptyWhere
	}
	return h.delete(table, where, conjunction)
}

// DeleteAll removes every row of the table.
func (h *DB) DeleteAll(table string) (int64, error) {
	return h.delete(table, nil, "")
}

func (h *DB) delete(table string, where Params, conjunction string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.validateQuick(table, where); err != nil {
		return 0, err
	}
	query, params := buildDelete(table, where, conjunction)
	if err := h.exec(query, params); err != nil {
		return 0, err
	}
	return h.last.rowCount, nil
}

// Select fetches all columns of rows matching the where conditions. An empty
// where map selects the whole table.
func (h *DB) Select(table string, where Params, conjunction string) ([]Row, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.validateQuick(table, where); err != nil {
		return nil, err
	}
	query, params := buildSelect(table, where, conjunction)
	if err := h.exec(query, params); err != nil {
		return nil, err
	}
	return h.last.rows, nil
}

// validateQuick checks the table and every column referenced by the given
// parameter maps against the catalog before any SQL is assembled.
func (h *DB) validateQuick(table string, paramMaps ...Params) error {
	var cols []string
	for _, m := range paramMaps {
		for k := range m {
			cols = append(cols, normalizeParam(k))
		}
	}
	return h.validFresh(table, cols...)
}
