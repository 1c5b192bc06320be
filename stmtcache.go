// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"github.com/golang/groupcache/lru"
	"github.com/jmoiron/sqlx"

	"github.com/supergnaw/nestbox/lib/log"
)

const defaultStmtCacheSize = 64

// stmtCache is an LRU cache of labeled prepared statements. Statements
// evicted to make room are closed. Not safe for concurrent use; callers
// hold the DB mutex.
type stmtCache struct {
	cache *lru.Cache
}

func newStmtCache(maxEntries int) *stmtCache {
	c := &stmtCache{cache: lru.New(maxEntries)}
	c.cache.OnEvicted = func(key lru.Key, value interface{}) {
		if err := value.(*sqlx.NamedStmt).Close(); err != nil {
			log.Warnf("nestbox: failed closing evicted statement %v: %v", key, err)
		}
	}
	return c
}

func (c *stmtCache) get(label string) (*sqlx.NamedStmt, bool) {
	v, ok := c.cache.Get(label)
	if !ok {
		return nil, false
	}
	return v.(*sqlx.NamedStmt), true
}

func (c *stmtCache) put(label string, stmt *sqlx.NamedStmt) {
	// Add on an existing key replaces the value without firing OnEvicted;
	// drop the old entry first so its statement is closed.
	if _, ok := c.cache.Get(label); ok {
		c.cache.Remove(label)
	}
	c.cache.Add(label, stmt)
}

// purge closes and drops every cached statement.
func (c *stmtCache) purge() {
	c.cache.Clear()
}

//////////////////////////////////////////
// Labeled statements on the handle

// Register prepares the query and caches the statement under the given
// label, evicting the least recently used statement if the cache is full.
// Statements cannot be registered while a transaction is open; a statement
// prepared on a transaction dies with it.
func (h *DB) Register(label, query string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tx != nil {
		return ErrTransactionInProgress
	}
	if err := h.connect(); err != nil {
		return err
	}
	stmt, err := h.db.PrepareNamed(query)
	if err != nil {
		return newQueryError(query, err)
	}
	h.stmts.put(label, stmt)
	return nil
}

// ExecuteRegistered binds params into the statement registered under label
// and runs it as a query. Results are read through the usual accessors.
// Refused while a transaction is open: the cached statement is bound to the
// plain connection, which the transaction holds.
func (h *DB) ExecuteRegistered(label string, params Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tx != nil {
		return ErrTransactionInProgress
	}
	stmt, ok := h.stmts.get(label)
	if !ok {
		return ErrNotPrepared
	}
	prev, prevQuery := h.stmt, h.stmtQuery
	h.stmt, h.stmtQuery = stmt, stmt.QueryString
	err := h.executePrepared(params)
	h.stmt, h.stmtQuery = prev, prevQuery
	return err
}
