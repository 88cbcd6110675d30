package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Memory statuses and types mirror the shared vocabulary of the database.
const (
	StatusStaging  = "staging"
	StatusPromoted = "promoted"
	StatusArchived = "archived"
	StatusCritical = "critical"
)

// MemoryTypes is the closed set of accepted memory_type values.
var MemoryTypes = []string{"fact", "entity", "preference", "context"}

// MemoryStatuses is the closed set of accepted status values.
var MemoryStatuses = []string{StatusStaging, StatusPromoted, StatusArchived, StatusCritical}

// Memory is transient working knowledge captured during a session.
// It starts in staging and is promoted or archived by curation policy.
type Memory struct {
	ID           int64    `json:"id"`
	Key          string   `json:"key"`
	Content      string   `json:"content"`
	Summary      *string  `json:"summary,omitempty"`
	MemoryType   string   `json:"memory_type"`
	Importance   int      `json:"importance"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags,omitempty"`
	SourceAgent  *string  `json:"source_agent,omitempty"`
	System       *string  `json:"system,omitempty"`
	AccessCount  int      `json:"access_count"`
	LastAccessed *string  `json:"last_accessed,omitempty"`
	PromotedAt   *string  `json:"promoted_at,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// StoreMemoryParams holds the input for creating a memory.
type StoreMemoryParams struct {
	Key         string   `json:"key"`
	Content     string   `json:"content"`
	Summary     string   `json:"summary,omitempty"`
	MemoryType  string   `json:"memory_type,omitempty"`
	Importance  int      `json:"importance,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SourceAgent string   `json:"source_agent,omitempty"`
}

// UpdateMemoryParams holds partial update fields for a memory.
type UpdateMemoryParams struct {
	Content    *string  `json:"content,omitempty"`
	Summary    *string  `json:"summary,omitempty"`
	Importance *int     `json:"importance,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Status     *string  `json:"status,omitempty"`
}

// validStatusTransition enforces lifecycle monotonicity:
// staging → promoted → archived, with critical settable from anywhere
// (the out-of-band escalation). No transition may move backwards.
func validStatusTransition(from, to string) bool {
	if from == to || to == StatusCritical {
		return true
	}
	switch from {
	case StatusStaging:
		return to == StatusPromoted || to == StatusArchived
	case StatusPromoted:
		return to == StatusArchived
	case StatusCritical:
		return to == StatusArchived
	}
	return false
}

// StoreMemory creates a new memory in staging.
// Fails with ErrConflict if the key already exists.
func (s *Store) StoreMemory(ctx context.Context, p StoreMemoryParams) (*Memory, error) {
	if p.Key == "" {
		return nil, validationErr("memory key is required")
	}
	if p.Content == "" {
		return nil, validationErr("memory content is required")
	}
	memType := p.MemoryType
	if memType == "" {
		memType = "fact"
	}
	if !contains(MemoryTypes, memType) {
		return nil, validationErr("invalid memory_type %q, must be one of %v", memType, MemoryTypes)
	}
	importance := p.Importance
	if importance == 0 {
		importance = 5
	}
	if importance < 1 || importance > 10 {
		return nil, validationErr("importance must be in [1,10], got %d", importance)
	}

	id, err := s.insertReturningID(ctx,
		`INSERT INTO memories (key, content, summary, memory_type, importance, tags, source_agent, system)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Key, p.Content, nullableString(p.Summary), memType, importance,
		nullableString(JoinTags(p.Tags)), nullableString(p.SourceAgent), nullableString(s.system),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: memory key %q", ErrConflict, p.Key)
		}
		return nil, fmt.Errorf("store memory: %w", err)
	}
	return s.getMemoryByID(ctx, id)
}

// GetMemory retrieves a memory by key and records the access
// (access_count increment + last_accessed bump).
func (s *Store) GetMemory(ctx context.Context, key string) (*Memory, error) {
	if _, err := s.exec(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = `+s.d.now()+` WHERE key = ?`,
		key,
	); err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}

	m, err := s.scanMemory(s.queryRow(ctx, memorySelect+` WHERE key = ?`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("memory %q", key)
		}
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// UpdateMemory applies a partial update by key. Status changes are
// validated against the lifecycle rules; a promotion also stamps
// promoted_at.
func (s *Store) UpdateMemory(ctx context.Context, key string, p UpdateMemoryParams) (*Memory, error) {
	current, err := s.scanMemory(s.queryRow(ctx, memorySelect+` WHERE key = ?`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("memory %q", key)
		}
		return nil, fmt.Errorf("update memory: %w", err)
	}

	var sets []string
	var args []any

	if p.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *p.Content)
	}
	if p.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *p.Summary)
	}
	if p.Importance != nil {
		if *p.Importance < 1 || *p.Importance > 10 {
			return nil, validationErr("importance must be in [1,10], got %d", *p.Importance)
		}
		sets = append(sets, "importance = ?")
		args = append(args, *p.Importance)
	}
	if p.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, JoinTags(p.Tags))
	}
	if p.Status != nil {
		if !contains(MemoryStatuses, *p.Status) {
			return nil, validationErr("invalid status %q, must be one of %v", *p.Status, MemoryStatuses)
		}
		if !validStatusTransition(current.Status, *p.Status) {
			return nil, validationErr("status transition %s → %s not allowed", current.Status, *p.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
		if *p.Status == StatusPromoted {
			sets = append(sets, "promoted_at = "+s.d.now())
		}
	}

	if len(sets) == 0 {
		return nil, validationErr("no fields to update")
	}

	args = append(args, key)
	if _, err := s.exec(ctx,
		`UPDATE memories SET `+strings.Join(sets, ", ")+` WHERE key = ?`, args...,
	); err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}

	return s.getMemoryByID(ctx, current.ID)
}

// HighImportanceMemories returns non-archived memories with
// importance >= floor, most important first. A non-empty topic narrows
// by substring over key, content, and tags.
func (s *Store) HighImportanceMemories(ctx context.Context, topic string, floor, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	query := memorySelect + ` WHERE importance >= ? AND status != ?`
	args := []any{floor, StatusArchived}
	if topic != "" {
		term := "%" + topic + "%"
		query += ` AND (` + s.d.like("key") + ` OR ` + s.d.like("content") + ` OR ` + s.d.like("tags") + `)`
		args = append(args, term, term, term)
	}
	query += ` ORDER BY importance DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("high importance memories: %w", err)
	}
	return s.collectMemories(rows)
}

// CriticalMemories returns memories eagerly attached at aggressive
// automation: status critical, or importance >= 9.
func (s *Store) CriticalMemories(ctx context.Context, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.query(ctx,
		memorySelect+` WHERE (status = ? OR importance >= 9) AND status != ?
		 ORDER BY importance DESC LIMIT ?`,
		StatusCritical, StatusArchived, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("critical memories: %w", err)
	}
	return s.collectMemories(rows)
}

// StagingMemories returns memories in staging, oldest first, for the
// curation engine's lifecycle phase.
func (s *Store) StagingMemories(ctx context.Context, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.query(ctx,
		memorySelect+` WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		StatusStaging, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("staging memories: %w", err)
	}
	return s.collectMemories(rows)
}

// ArchivalCandidates returns memories that look abandoned: importance
// below the floor, older than the given age, and linked to no
// relationship or topic. Staging and promoted rows both qualify.
// Callers flag these for review; nothing here archives anything.
func (s *Store) ArchivalCandidates(ctx context.Context, importanceBelow, olderThanHours, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.query(ctx,
		memorySelect+` WHERE status IN (?, ?) AND importance < ?
		 AND created_at <= `+s.d.olderThan(olderThanHours)+`
		 AND NOT EXISTS (
			SELECT 1 FROM relationships r
			WHERE (r.source_table = 'memories' AND r.source_id = memories.id)
			   OR (r.target_table = 'memories' AND r.target_id = memories.id)
		 )
		 AND NOT EXISTS (
			SELECT 1 FROM topic_entries te
			WHERE te.entry_table = 'memories' AND te.entry_id = memories.id
		 )
		 ORDER BY created_at ASC LIMIT ?`,
		StatusStaging, StatusPromoted, importanceBelow, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archival candidates: %w", err)
	}
	return s.collectMemories(rows)
}

// MemoryAgeHours reports how many hours ago the memory was created,
// computed by the database so both backends agree on the clock.
func (s *Store) MemoryAgeHours(ctx context.Context, id int64) (float64, error) {
	var q string
	if s.d.postgres {
		q = `SELECT EXTRACT(EPOCH FROM (NOW() - created_at)) / 3600.0 FROM memories WHERE id = ?`
	} else {
		q = `SELECT (julianday('now') - julianday(created_at)) * 24.0 FROM memories WHERE id = ?`
	}
	var hours float64
	if err := s.queryRow(ctx, q, id).Scan(&hours); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFoundErr("memory id %d", id)
		}
		return 0, fmt.Errorf("memory age: %w", err)
	}
	return hours, nil
}

// ─── Internal ────────────────────────────────────────────────────────────────

const memorySelect = `SELECT id, key, content, summary, memory_type, importance, status,
	tags, source_agent, system, access_count, last_accessed, promoted_at, created_at
	FROM memories`

func (s *Store) getMemoryByID(ctx context.Context, id int64) (*Memory, error) {
	m, err := s.scanMemory(s.queryRow(ctx, memorySelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("memory id %d", id)
		}
		return nil, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var tags *string
	if err := row.Scan(
		&m.ID, &m.Key, &m.Content, &m.Summary, &m.MemoryType, &m.Importance, &m.Status,
		&tags, &m.SourceAgent, &m.System, &m.AccessCount, &m.LastAccessed, &m.PromotedAt, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if tags != nil {
		m.Tags = SplitTags(*tags)
	}
	return &m, nil
}

func (s *Store) collectMemories(rows *sql.Rows) ([]Memory, error) {
	defer rows.Close()
	var out []Memory
	for rows.Next() {
		m, err := s.scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
