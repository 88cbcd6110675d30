package store

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect abstracts the SQL differences between the embedded SQLite backend
// and the networked PostgreSQL backend, so the rest of the store can write
// one query with '?' placeholders.
type dialect struct {
	postgres bool
}

// rebind converts '?' placeholders to '$N' for postgres.
func (d dialect) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pk returns the auto-incrementing primary key column definition.
func (d dialect) pk() string {
	if d.postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// now returns the current-timestamp SQL expression.
func (d dialect) now() string {
	if d.postgres {
		return "NOW()"
	}
	return "datetime('now')"
}

// olderThan returns an expression for "now minus n hours", used in age
// comparisons like `created_at <= <olderThan(24)>`.
func (d dialect) olderThan(hours int) string {
	if d.postgres {
		return fmt.Sprintf("NOW() - INTERVAL '%d hours'", hours)
	}
	return fmt.Sprintf("datetime('now', '-%d hours')", hours)
}

// like returns a case-insensitive LIKE clause for the column with one
// '?' placeholder. SQLite's bare LIKE is only ASCII-case-insensitive and
// collation-dependent, so both sides are lowered explicitly.
func (d dialect) like(column string) string {
	if d.postgres {
		return column + " ILIKE ?"
	}
	return "LOWER(" + column + ") LIKE LOWER(?)"
}

// insertIgnore wraps an INSERT so that a conflict on the given columns is a
// no-op instead of an error. Both taxonomy registration and curation audit
// inserts rely on this racing safely across concurrent curator runs.
func (d dialect) insertIgnore(table, columns, values, conflictColumns string) string {
	if d.postgres {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
			table, columns, values, conflictColumns)
	}
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
}

// textTimestamp returns the column type used for timestamps.
func (d dialect) textTimestamp() string {
	if d.postgres {
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}
