// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nestbox is a minimal data-access layer over a MySQL-like database.
//
// A DB wraps a single lazily opened database connection and provides
// parameterized statement execution with named placeholders, transaction
// support, and schema-validated quick queries (Insert/Update/Delete/Select)
// that synthesize SQL from table, column and value inputs.
//
// Table and column names referenced by the quick queries are validated
// against a cached snapshot of the database catalog before any SQL is
// assembled; data values are only ever transferred through bound parameters.
//
// A DB serializes all operations internally: there is a single connection,
// a single in-flight statement, and at most one open transaction. Methods
// block until the underlying driver call completes.
package nestbox
