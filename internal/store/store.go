// Package store implements the persistent worklog database.
//
// It supports two backends behind one API: embedded SQLite
// (modernc.org/sqlite) for single-system use, and PostgreSQL
// (jackc/pgx via database/sql) when the store is shared across systems.
// The store owns the schema, all SQL, and the transactional guarantees;
// higher layers (recall, compress, curation) never see a raw connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/worklog-dev/worklog/internal/config"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store is the shared worklog database.
type Store struct {
	db      *sql.DB
	d       dialect
	system  string
	retries int
	base    time.Duration
}

// Open connects to the configured backend, applies connection settings,
// and runs idempotent migrations.
func Open(cfg config.StoreConfig) (*Store, error) {
	var (
		db  *sql.DB
		d   dialect
		err error
	)

	switch cfg.Backend {
	case config.BackendPostgres:
		d = dialect{postgres: true}
		db, err = openDB("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: open postgres: %v", ErrConnection, err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

	case config.BackendSQLite:
		d = dialect{}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %v", ErrConnection, err)
		}
		db, err = openDB("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: open sqlite: %v", ErrConnection, err)
		}

		// WAL assumes the POSIX locking semantics of a local disk; on a
		// network mount fall back to the rollback journal.
		journal := "PRAGMA journal_mode = WAL"
		if cfg.NetworkShared {
			journal = "PRAGMA journal_mode = DELETE"
		}
		pragmas := []string{
			journal,
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA foreign_keys = ON",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				return nil, fmt.Errorf("%w: pragma %q: %v", ErrConnection, p, err)
			}
		}

	default:
		return nil, validationErr("unknown backend %q", cfg.Backend)
	}

	retries := cfg.RetryAttempts
	if retries <= 0 {
		retries = 3
	}
	base := cfg.RetryBaseWait
	if base <= 0 {
		base = 5 * time.Second
	}

	s := &Store{db: db, d: d, system: cfg.System, retries: retries, base: base}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	if err := s.seedTaxonomy(context.Background()); err != nil {
		return nil, fmt.Errorf("store: seed taxonomy: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// System returns the identifier of this installation.
func (s *Store) System() string {
	return s.system
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// ─── SQL helpers ─────────────────────────────────────────────────────────────

// exec runs a write with bounded retry on lock contention. After retry
// exhaustion the error wraps ErrLockContention so callers can echo the
// attempted write back to the user.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q := s.d.rebind(query)
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(s.base, attempt)):
			}
		}
		res, err := s.db.ExecContext(ctx, q, args...)
		if err == nil {
			return res, nil
		}
		if !isLockContention(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %d attempts: %v", ErrLockContention, s.retries, lastErr)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// insertReturningID runs an INSERT ... RETURNING id, which both backends
// support (LastInsertId does not exist on the pgx driver).
func (s *Store) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	q := s.d.rebind(query + " RETURNING id")
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff(s.base, attempt)):
			}
		}
		var id int64
		err := s.db.QueryRowContext(ctx, q, args...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !isLockContention(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("%w: %d attempts: %v", ErrLockContention, s.retries, lastErr)
}

// backoff returns an exponentially increasing wait with ±25% jitter,
// capped at 30 seconds.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 10 {
		attempt = 10
	}
	wait := base * time.Duration(1<<uint(attempt-1))
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(wait)/2+1)) - wait/4
	return wait + jitter
}

// ─── Shared helpers ──────────────────────────────────────────────────────────

// JoinTags serializes a tag list into the comma-separated storage form.
func JoinTags(tags []string) string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}

// SplitTags parses the comma-separated storage form into a tag list.
func SplitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
