// Package database manages the SQLite store used for state that must
// survive a daemon restart, such as each zone's persisted thermal mode.
//
// It wraps database/sql with the mattn/go-sqlite3 driver, applies the WAL
// and busy-timeout pragmas, and runs embedded SQL migrations in version
// order, each in its own transaction.
package database
