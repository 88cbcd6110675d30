package store

import (
	"context"
	"fmt"
)

// SearchHit is one ranked search result with its origin table.
type SearchHit struct {
	Table   string   `json:"table"`
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Tags    []string `json:"tags,omitempty"`
	Rank    int      `json:"rank"`
}

// Search runs a case-insensitive substring match over title, content,
// summary, key, and tags of the knowledge tables. Results are ordered by
// each table's own relevance criterion (importance for memories, recency
// for the rest) and interleaved table by table.
func (s *Store) Search(ctx context.Context, query string, tables []string, limit int) ([]SearchHit, error) {
	if query == "" {
		return nil, validationErr("search query is required")
	}
	if limit <= 0 {
		limit = 10
	}
	if len(tables) == 0 {
		tables = []string{"memories", "knowledge_base", "entries", "error_patterns"}
	}

	term := "%" + query + "%"
	var hits []SearchHit

	for _, table := range tables {
		var (
			q    string
			args []any
		)
		switch table {
		case "memories":
			q = `SELECT id, key, COALESCE(summary, content), COALESCE(tags, '') FROM memories
			     WHERE (` + s.d.like("content") + ` OR ` + s.d.like("summary") + ` OR ` + s.d.like("key") + ` OR ` + s.d.like("tags") + `)
			       AND status != ?
			     ORDER BY importance DESC, created_at DESC LIMIT ?`
			args = []any{term, term, term, term, StatusArchived, limit}
		case "knowledge_base":
			q = `SELECT id, title, content, COALESCE(tags, '') FROM knowledge_base
			     WHERE ` + s.d.like("title") + ` OR ` + s.d.like("content") + ` OR ` + s.d.like("tags") + ` OR ` + s.d.like("category") + `
			     ORDER BY updated_at DESC LIMIT ?`
			args = []any{term, term, term, term, limit}
		case "entries":
			q = `SELECT id, title, COALESCE(outcome, COALESCE(details, '')), COALESCE(tags, '') FROM entries
			     WHERE ` + s.d.like("title") + ` OR ` + s.d.like("details") + ` OR ` + s.d.like("outcome") + ` OR ` + s.d.like("tags") + `
			     ORDER BY created_at DESC LIMIT ?`
			args = []any{term, term, term, term, limit}
		case "error_patterns":
			q = `SELECT id, error_signature, COALESCE(resolution, COALESCE(root_cause, '')), COALESCE(tags, '') FROM error_patterns
			     WHERE ` + s.d.like("error_signature") + ` OR ` + s.d.like("error_message") + ` OR ` + s.d.like("root_cause") + ` OR ` + s.d.like("tags") + `
			     ORDER BY created_at DESC LIMIT ?`
			args = []any{term, term, term, term, limit}
		default:
			return nil, validationErr("unsearchable table %q", table)
		}

		rows, err := s.query(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", table, err)
		}
		rank := 0
		for rows.Next() {
			var h SearchHit
			var snippet, tags string
			if err := rows.Scan(&h.ID, &h.Title, &snippet, &tags); err != nil {
				rows.Close()
				return nil, err
			}
			h.Table = table
			h.Snippet = Truncate(snippet, 300)
			h.Tags = SplitTags(tags)
			h.Rank = rank
			rank++
			hits = append(hits, h)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return hits, nil
}
