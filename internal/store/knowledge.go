package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// KBCategories is the closed set of knowledge base categories.
var KBCategories = []string{
	"system-administration", "development", "infrastructure",
	"decisions", "projects", "protocols",
}

// amendSeparator joins appended content to an existing knowledge entry.
// The original content always remains a strict prefix of the result.
const amendSeparator = "\n\n---\n\n"

// KnowledgeEntry is durable, reusable documentation. Entries are never
// hard-deleted and never silently overwritten: new content for an
// existing title is appended.
type KnowledgeEntry struct {
	ID          int64    `json:"id"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags,omitempty"`
	SourceAgent *string  `json:"source_agent,omitempty"`
	System      string   `json:"system"`
	SourceURL   *string  `json:"source_url,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// StoreKnowledgeParams holds the input for storing knowledge.
type StoreKnowledgeParams struct {
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags,omitempty"`
	SourceAgent string   `json:"source_agent,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	// OverlapThreshold is the keyword-overlap ratio above which an
	// existing title is considered the same entry (default 0.6).
	OverlapThreshold float64 `json:"-"`
}

// StoreKnowledgeResult reports whether a new row was created or an
// existing one amended.
type StoreKnowledgeResult struct {
	Entry    *KnowledgeEntry `json:"entry"`
	Appended bool            `json:"appended"`
}

// StoreKnowledge creates a knowledge entry, or appends to an existing one
// when a title in the same category overlaps materially with the new one.
// The dedup check runs before every insert so compression and manual
// stores can never create near-duplicate rows.
func (s *Store) StoreKnowledge(ctx context.Context, p StoreKnowledgeParams) (*StoreKnowledgeResult, error) {
	if p.Title == "" {
		return nil, validationErr("knowledge title is required")
	}
	if p.Content == "" {
		return nil, validationErr("knowledge content is required")
	}
	if !contains(KBCategories, p.Category) {
		return nil, validationErr("invalid category %q, must be one of %v", p.Category, KBCategories)
	}
	threshold := p.OverlapThreshold
	if threshold <= 0 {
		threshold = 0.6
	}

	existing, err := s.findOverlappingKnowledge(ctx, p.Category, p.Title, threshold)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if _, err := s.exec(ctx,
			`UPDATE knowledge_base SET content = content || ?, updated_at = `+s.d.now()+` WHERE id = ?`,
			amendSeparator+p.Content, existing.ID,
		); err != nil {
			return nil, fmt.Errorf("amend knowledge: %w", err)
		}
		entry, err := s.GetKnowledgeEntry(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		return &StoreKnowledgeResult{Entry: entry, Appended: true}, nil
	}

	id, err := s.insertReturningID(ctx,
		`INSERT INTO knowledge_base (category, title, content, tags, source_agent, system, source_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Category, p.Title, p.Content,
		nullableString(JoinTags(p.Tags)), nullableString(p.SourceAgent),
		orDefault(s.system, "shared"), nullableString(p.SourceURL),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: knowledge %q/%q", ErrConflict, p.Category, p.Title)
		}
		return nil, fmt.Errorf("store knowledge: %w", err)
	}
	entry, err := s.GetKnowledgeEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StoreKnowledgeResult{Entry: entry}, nil
}

// GetKnowledgeEntry retrieves a full knowledge entry by id.
func (s *Store) GetKnowledgeEntry(ctx context.Context, id int64) (*KnowledgeEntry, error) {
	e, err := s.scanKnowledge(s.queryRow(ctx, knowledgeSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("knowledge entry %d", id)
		}
		return nil, fmt.Errorf("get knowledge: %w", err)
	}
	return e, nil
}

// RecentKnowledge returns the most recently updated entries. A non-empty
// topic narrows by substring over title, content, tags, and category.
func (s *Store) RecentKnowledge(ctx context.Context, topic string, limit int) ([]KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := knowledgeSelect
	var args []any
	if topic != "" {
		term := "%" + topic + "%"
		query += ` WHERE ` + s.d.like("title") + ` OR ` + s.d.like("content") + ` OR ` + s.d.like("tags") + ` OR ` + s.d.like("category")
		args = append(args, term, term, term, term)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent knowledge: %w", err)
	}
	return s.collectKnowledge(rows)
}

// findOverlappingKnowledge looks for an entry in the category whose title
// shares enough keywords with the candidate title.
func (s *Store) findOverlappingKnowledge(ctx context.Context, category, title string, threshold float64) (*KnowledgeEntry, error) {
	rows, err := s.query(ctx, knowledgeSelect+` WHERE category = ?`, category)
	if err != nil {
		return nil, fmt.Errorf("dedup scan: %w", err)
	}
	entries, err := s.collectKnowledge(rows)
	if err != nil {
		return nil, err
	}

	var best *KnowledgeEntry
	bestScore := threshold
	for i := range entries {
		score := TitleOverlap(title, entries[i].Title)
		if score >= bestScore {
			best = &entries[i]
			bestScore = score
		}
	}
	return best, nil
}

// TitleOverlap computes the keyword overlap ratio of two titles:
// |shared words| / |words of the shorter title|, ignoring case and
// short stop-words. Identical titles score 1.
func TitleOverlap(a, b string) float64 {
	wa := titleWords(a)
	wb := titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shorter := len(wa)
	if len(wb) < shorter {
		shorter = len(wb)
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	shared := 0
	for _, w := range wb {
		if set[w] {
			shared++
			delete(set, w) // count each shared word once
		}
	}
	return float64(shared) / float64(shorter)
}

func titleWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,:;!?\"'()[]")
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

const knowledgeSelect = `SELECT id, category, title, content, tags, source_agent, system, source_url, created_at, updated_at
	FROM knowledge_base`

func (s *Store) scanKnowledge(row rowScanner) (*KnowledgeEntry, error) {
	var e KnowledgeEntry
	var tags *string
	if err := row.Scan(
		&e.ID, &e.Category, &e.Title, &e.Content, &tags,
		&e.SourceAgent, &e.System, &e.SourceURL, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if tags != nil {
		e.Tags = SplitTags(*tags)
	}
	return &e, nil
}

func (s *Store) collectKnowledge(rows *sql.Rows) ([]KnowledgeEntry, error) {
	defer rows.Close()
	var out []KnowledgeEntry
	for rows.Next() {
		e, err := s.scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
