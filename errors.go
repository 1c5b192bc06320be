// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/supergnaw/nestbox/lib"
)

var (
	// Error returned when a required connection parameter is missing.
	ErrMissingConfig = errors.New("nestbox: missing connection configuration")
	// Error returned when an empty or whitespace-only query is submitted.
	ErrEmptyQuery = errors.New("nestbox: empty query")
	// Error returned when a slice, array or map value is bound as a single
	// parameter. Callers must flatten such values first.
	ErrCannotBindArray = errors.New("nestbox: cannot bind array value")
	// Error returned when execution is attempted with no prepared statement.
	ErrNotPrepared = errors.New("nestbox: no statement prepared")
	// Error returned when a transaction is opened while one is already open.
	ErrTransactionInProgress = errors.New("nestbox: transaction already in progress")
	// Error returned by Commit when no transaction is open.
	ErrNoTransaction = errors.New("nestbox: no transaction in progress")
	// Error returned by Update and Delete when the where map is empty.
	// Whole-table statements require UpdateAll or DeleteAll.
	ErrEmptyWhere = errors.New("nestbox: empty where clause")
)

// ConnectionError wraps a driver failure while opening or probing the
// database connection.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("nestbox: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvalidTableError reports a table name not present in the database catalog.
type InvalidTableError struct {
	Table string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("nestbox: invalid table %q", e.Table)
}

// InvalidColumnError reports a column name not present in the named table.
type InvalidColumnError struct {
	Table  string
	Column string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("nestbox: invalid column %q in table %q", e.Column, e.Table)
}

// BindError reports a parameter that could not be bound, either because its
// value is not bindable or because the statement references no such name.
type BindError struct {
	Name  string
	Value interface{}
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("nestbox: failed binding parameter %q (value %v): %v", e.Name, e.Value, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// QueryError wraps a driver-reported statement failure. Number and SQLState
// are filled in when the underlying error is a *mysql.MySQLError.
type QueryError struct {
	Query    string
	Number   uint16
	SQLState string
	Message  string
	Err      error
}

func newQueryError(query string, err error) *QueryError {
	qerr := &QueryError{Query: query, Message: err.Error(), Err: err}
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		qerr.Number = merr.Number
		qerr.SQLState = string(merr.SQLState[:])
		qerr.Message = merr.Message
	}
	return qerr
}

func (e *QueryError) Error() string {
	if e.Number != 0 {
		return fmt.Sprintf("nestbox: query failed [%d/%s]: %s", e.Number, e.SQLState, e.Message)
	}
	return fmt.Sprintf("nestbox: query failed: %s", e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TxStage identifies the transaction step that failed.
type TxStage int

const (
	// TxExec marks a failure of a statement inside the transaction.
	TxExec TxStage = iota
	// TxBegin marks a failure to open the transaction.
	TxBegin
	// TxCommit marks a commit failure.
	TxCommit
	// TxRollback marks a rollback failure after an already-failed step.
	TxRollback
)

func (s TxStage) String() string {
	switch s {
	case TxBegin:
		return "begin"
	case TxCommit:
		return "commit"
	case TxRollback:
		return "rollback"
	default:
		return "execute"
	}
}

// TransactionError wraps a failure during a transaction. For TxRollback,
// Err is the original failure and RollbackErr the subsequent rollback
// failure; for all other stages RollbackErr is nil.
type TransactionError struct {
	Stage       TxStage
	Err         error
	RollbackErr error
}

func (e *TransactionError) Error() string {
	if e.Stage == TxRollback {
		return fmt.Sprintf("nestbox: transaction rollback failed: %v",
			lib.MergeErrors(e.Err, e.RollbackErr, "; rollback: "))
	}
	return fmt.Sprintf("nestbox: transaction %s failed: %v", e.Stage, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
