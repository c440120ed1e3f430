// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import "database/sql"

// DB wraps an opened database handle. It is carried, untouched, by every
// DataFrame and Series built on it, and only dereferenced when a frame or
// value is actually queried.
type DB struct {
	sqldb *sql.DB
}

// NewDB returns a handle over an opened database. The caller stays
// responsible for closing sqldb.
func NewDB(sqldb *sql.DB) *DB {
	return &DB{sqldb: sqldb}
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}
