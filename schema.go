// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import "errors"

// The schema cache holds the table and column catalog of the configured
// database, loaded from information_schema and used to validate identifiers
// before they are spliced into generated SQL. Staleness is tolerated: a
// lookup that misses reloads the catalog once and rechecks before the
// identifier is declared invalid.

const catalogQuery = `
SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = :database_name`

const primaryKeyQuery = `
SELECT TABLE_NAME, COLUMN_NAME
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = :database_name AND CONSTRAINT_NAME = 'PRIMARY'`

// tableInfo is the cached catalog entry for one table: column name to data
// type tag, plus the primary key column if any.
type tableInfo struct {
	columns map[string]string
	primary string
}

// tableSchema maps table names to their cached catalog entries.
type tableSchema map[string]*tableInfo

//////////////////////////////////////////
// Schema loading

// LoadSchema loads the table and column catalog of the configured database
// into the cache, replacing any previously cached catalog.
func (h *DB) LoadSchema() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadSchema()
}

func (h *DB) loadSchema() error {
	params := Params{"database_name": h.conf.Name}
	if err := h.exec(catalogQuery, params); err != nil {
		return err
	}
	schema := make(tableSchema)
	for _, row := range h.last.rows {
		table, _ := row["TABLE_NAME"].(string)
		column, _ := row["COLUMN_NAME"].(string)
		dataType, _ := row["DATA_TYPE"].(string)
		if table == "" || column == "" {
			continue
		}
		info := schema[table]
		if info == nil {
			info = &tableInfo{columns: make(map[string]string)}
			schema[table] = info
		}
		info.columns[column] = dataType
	}
	if err := h.exec(primaryKeyQuery, params); err != nil {
		return err
	}
	for _, row := range h.last.rows {
		table, _ := row["TABLE_NAME"].(string)
		column, _ := row["COLUMN_NAME"].(string)
		if info := schema[table]; info != nil && info.primary == "" {
			info.primary = column
		}
	}
	h.schema = schema
	h.last = lastResult{}
	return nil
}

// ensureSchema loads the catalog if it has not been loaded yet.
func (h *DB) ensureSchema() error {
	if h.schema != nil {
		return nil
	}
	return h.loadSchema()
}

// validFresh checks the table and columns against the cache, reloading the
// catalog once on a miss before declaring the identifier invalid.
func (h *DB) validFresh(table string, columns ...string) error {
	if err := h.ensureSchema(); err != nil {
		return err
	}
	if err := h.schema.valid(table, columns...); err == nil {
		return nil
	}
	if err := h.loadSchema(); err != nil {
		return err
	}
	return h.schema.valid(table, columns...)
}

//////////////////////////////////////////
// Identifier validation

// ValidSchema reports whether the table exists and, when columns are given,
// whether every column exists in that table. A nil error means valid.
func (h *DB) ValidSchema(table string, columns ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.validFresh(table, columns...)
}

// ValidTable reports whether the table exists in the configured database.
func (h *DB) ValidTable(table string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureSchema(); err != nil {
		return false, err
	}
	if h.schema[table] != nil {
		return true, nil
	}
	// Recheck against the live catalog before declaring the table invalid.
	if err := h.loadSchema(); err != nil {
		return false, err
	}
	return h.schema[table] != nil, nil
}

// ValidColumn reports whether the column exists in the named table. A false
// return with nil error means the table exists but the column does not.
func (h *DB) ValidColumn(table, column string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.validFresh(table, column)
	if err == nil {
		return true, nil
	}
	var cerr *InvalidColumnError
	if errors.As(err, &cerr) {
		return false, nil
	}
	return false, err
}

// ColumnType returns the catalog data type tag of the named column.
func (h *DB) ColumnType(table, column string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.validFresh(table, column); err != nil {
		return "", err
	}
	return h.schema[table].columns[column], nil
}

// TablePrimaryKey returns the primary key column of the named table, or the
// empty string if the table has no primary key.
func (h *DB) TablePrimaryKey(table string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.validFresh(table); err != nil {
		return "", err
	}
	return h.schema[table].primary, nil
}

func (s tableSchema) valid(table string, columns ...string) error {
	info := s[table]
	if info == nil {
		return &InvalidTableError{Table: table}
	}
	for _, column := range columns {
		if _, ok := info.columns[column]; !ok {
			return &InvalidColumnError{Table: table, Column: column}
		}
	}
	return nil
}
