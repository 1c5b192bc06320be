// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"strconv"

	"github.com/supergnaw/nestbox/lib"
)

// Statement is one query with its bound parameters, for execution inside a
// transaction. Statements are executed in slice order.
type Statement struct {
	Query  string
	Params Params
}

// StatementResult captures the outcome of one statement executed inside a
// transaction.
type StatementResult struct {
	Rows         []Row
	RowCount     int64
	LastInsertID string
}

//////////////////////////////////////////
// All-or-nothing execution

// TransactionExecute runs the statements in order inside a single
// transaction. If any statement fails the transaction is rolled back and no
// statement takes effect. Returns the captured result of each statement.
func (h *DB) TransactionExecute(stmts []Statement) ([]StatementResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tx != nil {
		return nil, ErrTransactionInProgress
	}
	if err := h.connect(); err != nil {
		return nil, err
	}
	if err := h.begin(); err != nil {
		return nil, err
	}
	results := make([]StatementResult, 0, len(stmts))
	for _, s := range stmts {
		if err := h.exec(s.Query, s.Params); err != nil {
			return nil, h.failTransaction(err)
		}
		results = append(results, StatementResult{
			Rows:         h.last.rows,
			RowCount:     h.last.rowCount,
			LastInsertID: strconv.FormatInt(h.last.lastInsertID, 10),
		})
	}
	if err := h.commit(); err != nil {
		return nil, err
	}
	return results, nil
}

//////////////////////////////////////////
// Incremental transactions

// Transaction executes one statement inside the current transaction, opening
// one if none exists. With commit set the transaction is committed after the
// statement; with closeAfter set the connection is closed once the call
// completes. Any failure rolls the transaction back.
func (h *DB) Transaction(query string, params Params, commit, closeAfter bool) (rerr error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer func() {
		if closeAfter {
			rerr = lib.MergeErrors(rerr, h.close(), "; ")
		}
	}()
	if err := h.connect(); err != nil {
		return err
	}
	if h.tx == nil {
		if err := h.begin(); err != nil {
			return err
		}
	}
	if err := h.exec(query, params); err != nil {
		return h.failTransaction(err)
	}
	if commit {
		return h.commit()
	}
	return nil
}

// Commit commits the current transaction.
func (h *DB) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tx == nil {
		return ErrNoTransaction
	}
	return h.commit()
}

// Rollback discards the current transaction. Reports whether a transaction
// was open to discard.
func (h *DB) Rollback() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tx == nil {
		return false, nil
	}
	h.dropTxStmt()
	err := h.tx.Rollback()
	h.tx = nil
	if err != nil {
		return true, &TransactionError{Stage: TxRollback, Err: err}
	}
	return true, nil
}

// InTransaction reports whether a transaction is currently open.
func (h *DB) InTransaction() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tx != nil
}

//////////////////////////////////////////
// Internals

func (h *DB) begin() error {
	tx, err := h.db.Beginx()
	if err != nil {
		return &TransactionError{Stage: TxBegin, Err: err}
	}
	h.tx = tx
	return nil
}

func (h *DB) commit() error {
	h.dropTxStmt()
	err := h.tx.Commit()
	h.tx = nil
	if err != nil {
		return &TransactionError{Stage: TxCommit, Err: err}
	}
	return nil
}

// failTransaction rolls back after a failed step. If the rollback itself
// fails, both errors are reported.
func (h *DB) failTransaction(cause error) error {
	h.dropTxStmt()
	err := h.tx.Rollback()
	h.tx = nil
	if err != nil {
		return &TransactionError{Stage: TxRollback, Err: cause, RollbackErr: err}
	}
	return &TransactionError{Stage: TxExec, Err: cause}
}

// dropTxStmt discards the current prepared statement if it was prepared on
// the transaction. Transaction statements do not survive commit or rollback.
func (h *DB) dropTxStmt() {
	if h.stmt != nil {
		_ = h.stmt.Close()
		h.stmt = nil
		h.stmtQuery = ""
	}
}
