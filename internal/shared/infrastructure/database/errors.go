package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNoRows is returned when a query expected to return a row returns none.
var ErrNoRows = errors.New("no rows in result set")

// IsNoRows returns true if the error indicates no rows were found.
// This handles both pgx.ErrNoRows and sql.ErrNoRows.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrNoRows)
}

// ConstraintKind classifies integrity violations reported by the store.
type ConstraintKind int

const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintUnique
	ConstraintExclusion
	ConstraintForeignKey
	ConstraintCheck
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	pgUniqueViolation     = "23505"
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// ConstraintViolation is a driver-neutral description of an integrity error.
// Name is the constraint name on PostgreSQL and the raised message on SQLite,
// where exclusion rules are implemented as triggers.
type ConstraintViolation struct {
	Kind ConstraintKind
	Name string
	Err  error
}

func (v *ConstraintViolation) Error() string {
	return "constraint violation (" + v.Name + "): " + v.Err.Error()
}

func (v *ConstraintViolation) Unwrap() error { return v.Err }

// AsConstraintViolation inspects a driver error and reports whether it is an
// integrity violation.
func AsConstraintViolation(err error) (*ConstraintViolation, bool) {
	if err == nil {
		return nil, false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := ConstraintUnknown
		switch pgErr.Code {
		case pgUniqueViolation:
			kind = ConstraintUnique
		case pgExclusionViolation:
			kind = ConstraintExclusion
		case pgForeignKeyViolation:
			kind = ConstraintForeignKey
		case pgCheckViolation:
			kind = ConstraintCheck
		default:
			return nil, false
		}
		return &ConstraintViolation{Kind: kind, Name: pgErr.ConstraintName, Err: err}, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &ConstraintViolation{Kind: ConstraintUnique, Name: liteErr.Error(), Err: err}, true
		case sqlite3.SQLITE_CONSTRAINT_TRIGGER:
			return &ConstraintViolation{Kind: ConstraintExclusion, Name: liteErr.Error(), Err: err}, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return &ConstraintViolation{Kind: ConstraintForeignKey, Name: liteErr.Error(), Err: err}, true
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return &ConstraintViolation{Kind: ConstraintCheck, Name: liteErr.Error(), Err: err}, true
		}
	}

	// Wrapped or proxied drivers only keep the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &ConstraintViolation{Kind: ConstraintUnique, Name: msg, Err: err}, true
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &ConstraintViolation{Kind: ConstraintForeignKey, Name: msg, Err: err}, true
	case strings.Contains(msg, "CHECK constraint failed"):
		return &ConstraintViolation{Kind: ConstraintCheck, Name: msg, Err: err}, true
	case strings.Contains(msg, "constraint failed"):
		return &ConstraintViolation{Kind: ConstraintExclusion, Name: msg, Err: err}, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err is a unique-key violation.
func IsUniqueViolation(err error) bool {
	v, ok := AsConstraintViolation(err)
	return ok && v.Kind == ConstraintUnique
}

// IsConstraint reports whether err violates the named constraint.
func IsConstraint(err error, name string) bool {
	v, ok := AsConstraintViolation(err)
	return ok && strings.Contains(v.Name, name)
}
