package db

import (
	"strings"

	"github.com/teranos/factgate/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
var ErrDatabaseClosed = errors.Mark(errors.New("database is closed"), errors.ErrServiceUnavailable)

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// This handles both wrapped ErrDatabaseClosed errors from this package and raw
// driver errors, which we cannot wrap at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	return strings.Contains(err.Error(), "database is closed")
}

// IsConstraintViolation reports whether err came from a UNIQUE or
// foreign-key constraint in SQLite.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}
