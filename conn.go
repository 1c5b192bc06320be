// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/supergnaw/nestbox/lib"
	"github.com/supergnaw/nestbox/lib/log"
)

// DB is a database handle. It owns a single lazily opened connection, the
// current prepared statement, the transaction state and the schema cache.
// All methods serialize on an internal mutex; the handle is safe for use
// from multiple goroutines, but operations are strictly one at a time.
type DB struct {
	mu   sync.Mutex
	conf Config

	db *sqlx.DB
	tx *sqlx.Tx

	// Current prepared statement. Replaced on every prep, discarded on close.
	stmt      *sqlx.NamedStmt
	stmtQuery string
	last      lastResult

	schema tableSchema
	stmts  *stmtCache
}

// New returns a handle for the given configuration. No connection is opened
// until the first operation needs one.
func New(conf Config) (*DB, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &DB{
		conf:  conf,
		stmts: newStmtCache(defaultStmtCacheSize),
	}, nil
}

// Connect opens the database connection if no healthy connection exists.
func (h *DB) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connect()
}

func (h *DB) connect() error {
	if h.tx != nil {
		// The transaction holds the connection.
		return nil
	}
	if h.db != nil && h.checkConnection() {
		return nil
	}
	if err := h.conf.validate(); err != nil {
		return err
	}
	db, err := sqlx.Open(h.conf.driver(), h.conf.DSN())
	if err != nil {
		return &ConnectionError{Err: err}
	}
	// Single persistent connection, reused across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return &ConnectionError{Err: err}
	}
	h.db = db
	return nil
}

// CheckConnection reports whether a live connection exists. It probes the
// server; if the probe fails or returns an unexpected value, the handle is
// closed and false is returned.
func (h *DB) CheckConnection() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db != nil && h.checkConnection()
}

func (h *DB) checkConnection() bool {
	if h.db == nil {
		return false
	}
	var probe int
	if err := h.queryer().QueryRowx("SELECT 1").Scan(&probe); err != nil || probe != 1 {
		log.Warnf("nestbox: connection probe failed (got %d): %v", probe, err)
		_ = h.close()
		return false
	}
	return true
}

// Close releases the connection. It is idempotent and safe to call on a
// handle that was never connected.
func (h *DB) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.close()
}

func (h *DB) close() error {
	if h.db == nil {
		return nil
	}
	h.stmts.purge()
	if h.stmt != nil {
		_ = h.stmt.Close()
		h.stmt = nil
		h.stmtQuery = ""
	}
	if h.tx != nil {
		_ = h.tx.Rollback()
		h.tx = nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// Setters below change a single connection parameter at runtime. Any open
// connection is closed first; the next operation reconnects.

func (h *DB) SetHost(host string) error {
	return h.setConf(func(c *Config) { c.Host = host })
}

func (h *DB) SetUser(user string) error {
	return h.setConf(func(c *Config) { c.User = user })
}

func (h *DB) SetPassword(password string) error {
	return h.setConf(func(c *Config) { c.Password = password })
}

func (h *DB) SetName(name string) error {
	return h.setConf(func(c *Config) { c.Name = name })
}

func (h *DB) setConf(apply func(*Config)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.close()
	apply(&h.conf)
	h.schema = nil
	return lib.MergeErrors(err, h.conf.validate(), "; ")
}

// queryer returns the handle to run queries on: the open transaction if one
// exists, the plain connection otherwise. With a single connection, going
// around an open transaction would deadlock.
func (h *DB) queryer() sqlx.Queryer {
	if h.tx != nil {
		return h.tx
	}
	return h.db
}
