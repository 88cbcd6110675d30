package store

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the taxonomy shared by all components.
// Callers branch with errors.Is; the concrete message carries the detail.
var (
	// ErrConnection means the database is unreachable (missing file,
	// network mount down, auth failure). Read paths degrade on it.
	ErrConnection = errors.New("store: connection failed")

	// ErrLockContention is a transient write conflict on a shared
	// database. Writers retry with backoff before surfacing it.
	ErrLockContention = errors.New("store: lock contention")

	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("store: validation failed")

	// ErrNotFound marks a missing key or id.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict marks a unique-key violation (e.g. duplicate memory key).
	ErrConflict = errors.New("store: already exists")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// isUniqueViolation matches unique-constraint errors from both backends.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "SQLSTATE 23505") || // postgres
		strings.Contains(msg, "duplicate key value")
}

// isLockContention matches transient lock errors from both backends.
func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || // sqlite
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLSTATE 40001") || // postgres serialization
		strings.Contains(msg, "SQLSTATE 55P03") || // lock not available
		strings.Contains(msg, "deadlock detected")
}
