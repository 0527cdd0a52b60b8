// Package repository implements the storage layer on database/sql. Every
// repository takes the shared *sql.DB plus a logger; mutating methods accept
// an optional *sql.Tx so callers can group writes into one logical unit.
package repository

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// execer abstracts *sql.DB / *sql.Tx for methods usable inside and outside a
// transaction.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// pick returns tx when present, otherwise the shared handle.
func pick(db *sql.DB, tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error.
// The storage layer is what makes concurrent duplicate inserts race-safe:
// the unique index rejects the loser, and repositories translate that into
// apperr.ErrDuplicate.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
