package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TaskTypes is the closed set of work entry task types.
var TaskTypes = []string{
	"configuration", "deployment", "debugging", "development",
	"documentation", "research", "maintenance", "handoff",
}

// WorkEntry is an append-only log record of completed work.
type WorkEntry struct {
	ID           int64    `json:"id"`
	Agent        string   `json:"agent"`
	TaskType     string   `json:"task_type"`
	Title        string   `json:"title"`
	Details      *string  `json:"details,omitempty"`
	Outcome      *string  `json:"outcome,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	RelatedFiles *string  `json:"related_files,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// LogEntryParams holds the input for logging a work entry.
type LogEntryParams struct {
	Agent        string   `json:"agent,omitempty"`
	TaskType     string   `json:"task_type"`
	Title        string   `json:"title"`
	Details      string   `json:"details,omitempty"`
	Outcome      string   `json:"outcome,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	RelatedFiles string   `json:"related_files,omitempty"`
}

// LogEntry appends a work entry. Entries are never updated or deleted.
func (s *Store) LogEntry(ctx context.Context, p LogEntryParams) (*WorkEntry, error) {
	if p.Title == "" {
		return nil, validationErr("entry title is required")
	}
	if !contains(TaskTypes, p.TaskType) {
		return nil, validationErr("invalid task_type %q, must be one of %v", p.TaskType, TaskTypes)
	}
	agent := orDefault(p.Agent, "agent")

	id, err := s.insertReturningID(ctx,
		`INSERT INTO entries (agent, task_type, title, details, outcome, tags, related_files)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		agent, p.TaskType, p.Title,
		nullableString(p.Details), nullableString(p.Outcome),
		nullableString(JoinTags(p.Tags)), nullableString(p.RelatedFiles),
	)
	if err != nil {
		return nil, fmt.Errorf("log entry: %w", err)
	}
	return s.getEntryByID(ctx, id)
}

// RecentEntries returns work entries from the last `days` days,
// optionally filtered by agent and by a topic substring over title and
// tags, newest first.
func (s *Store) RecentEntries(ctx context.Context, agent, topic string, days, limit int) ([]WorkEntry, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 20
	}

	query := entrySelect + ` WHERE created_at > ` + s.d.olderThan(days*24)
	var args []any
	if agent != "" {
		query += ` AND agent = ?`
		args = append(args, agent)
	}
	if topic != "" {
		term := "%" + topic + "%"
		query += ` AND (` + s.d.like("title") + ` OR ` + s.d.like("tags") + `)`
		args = append(args, term, term)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return s.collectEntries(rows)
}

// ─── Error patterns ──────────────────────────────────────────────────────────

// ErrorPattern captures a recognized failure with its root cause and fix.
type ErrorPattern struct {
	ID             int64    `json:"id"`
	ErrorSignature string   `json:"error_signature"`
	ErrorMessage   *string  `json:"error_message,omitempty"`
	RootCause      *string  `json:"root_cause,omitempty"`
	Resolution     *string  `json:"resolution,omitempty"`
	PreventionTip  *string  `json:"prevention_tip,omitempty"`
	Language       *string  `json:"language,omitempty"`
	Platform       *string  `json:"platform,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
}

// StoreErrorPatternParams holds the input for recording an error pattern.
type StoreErrorPatternParams struct {
	ErrorSignature string   `json:"error_signature"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	RootCause      string   `json:"root_cause,omitempty"`
	Resolution     string   `json:"resolution,omitempty"`
	PreventionTip  string   `json:"prevention_tip,omitempty"`
	Language       string   `json:"language,omitempty"`
	Platform       string   `json:"platform,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// StoreErrorPattern records a new error pattern.
func (s *Store) StoreErrorPattern(ctx context.Context, p StoreErrorPatternParams) (int64, error) {
	if p.ErrorSignature == "" {
		return 0, validationErr("error_signature is required")
	}
	id, err := s.insertReturningID(ctx,
		`INSERT INTO error_patterns (error_signature, error_message, root_cause, resolution, prevention_tip, language, platform, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ErrorSignature, nullableString(p.ErrorMessage), nullableString(p.RootCause),
		nullableString(p.Resolution), nullableString(p.PreventionTip),
		nullableString(p.Language), nullableString(p.Platform), nullableString(JoinTags(p.Tags)),
	)
	if err != nil {
		return 0, fmt.Errorf("store error pattern: %w", err)
	}
	return id, nil
}

// ActiveErrorPatterns returns non-retired error patterns, newest first.
// A non-empty topic narrows by substring over signature, message, and
// tags.
func (s *Store) ActiveErrorPatterns(ctx context.Context, topic string, limit int) ([]ErrorPattern, error) {
	if limit <= 0 {
		limit = 20
	}
	query := errorPatternSelect + ` WHERE status = 'active'`
	var args []any
	if topic != "" {
		term := "%" + topic + "%"
		query += ` AND (` + s.d.like("error_signature") + ` OR ` + s.d.like("error_message") + ` OR ` + s.d.like("tags") + `)`
		args = append(args, term, term, term)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("active error patterns: %w", err)
	}
	defer rows.Close()

	var out []ErrorPattern
	for rows.Next() {
		var e ErrorPattern
		var tags *string
		if err := rows.Scan(
			&e.ID, &e.ErrorSignature, &e.ErrorMessage, &e.RootCause, &e.Resolution,
			&e.PreventionTip, &e.Language, &e.Platform, &tags, &e.Status, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if tags != nil {
			e.Tags = SplitTags(*tags)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Internal ────────────────────────────────────────────────────────────────

const entrySelect = `SELECT id, agent, task_type, title, details, outcome, tags, related_files, created_at
	FROM entries`

const errorPatternSelect = `SELECT id, error_signature, error_message, root_cause, resolution, prevention_tip, language, platform, tags, status, created_at
	FROM error_patterns`

func (s *Store) getEntryByID(ctx context.Context, id int64) (*WorkEntry, error) {
	var e WorkEntry
	var tags *string
	if err := s.queryRow(ctx, entrySelect+` WHERE id = ?`, id).Scan(
		&e.ID, &e.Agent, &e.TaskType, &e.Title, &e.Details, &e.Outcome, &tags, &e.RelatedFiles, &e.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if tags != nil {
		e.Tags = SplitTags(*tags)
	}
	return &e, nil
}

func (s *Store) collectEntries(rows *sql.Rows) ([]WorkEntry, error) {
	defer rows.Close()
	var out []WorkEntry
	for rows.Next() {
		var e WorkEntry
		var tags *string
		if err := rows.Scan(
			&e.ID, &e.Agent, &e.TaskType, &e.Title, &e.Details, &e.Outcome, &tags, &e.RelatedFiles, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if tags != nil {
			e.Tags = SplitTags(*tags)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
