package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Topic is a named semantic cluster over entries in other tables.
type Topic struct {
	ID        int64    `json:"id"`
	TopicName string   `json:"topic_name"`
	Summary   *string  `json:"summary,omitempty"`
	KeyTerms  []string `json:"key_terms,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// TopicEntry links a topic to one record with a relevance score.
type TopicEntry struct {
	ID             int64   `json:"id"`
	TopicID        int64   `json:"topic_id"`
	EntryTable     string  `json:"entry_table"`
	EntryID        int64   `json:"entry_id"`
	RelevanceScore float64 `json:"relevance_score"`
	CreatedAt      string  `json:"created_at"`
}

// UpsertTopic creates a topic or updates its summary/key terms if it
// already exists, returning the topic id either way.
func (s *Store) UpsertTopic(ctx context.Context, name, summary string, keyTerms []string) (int64, error) {
	if name == "" {
		return 0, validationErr("topic_name is required")
	}

	var id int64
	err := s.queryRow(ctx, `SELECT id FROM topic_index WHERE topic_name = ?`, name).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.exec(ctx,
			`UPDATE topic_index SET summary = ?, key_terms = ?, updated_at = `+s.d.now()+` WHERE id = ?`,
			nullableString(summary), nullableString(JoinTags(keyTerms)), id,
		); err != nil {
			return 0, fmt.Errorf("update topic: %w", err)
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		id, err = s.insertReturningID(ctx,
			`INSERT INTO topic_index (topic_name, summary, key_terms) VALUES (?, ?, ?)`,
			name, nullableString(summary), nullableString(JoinTags(keyTerms)),
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Lost a race with a concurrent curator; reuse its row.
				if err := s.queryRow(ctx, `SELECT id FROM topic_index WHERE topic_name = ?`, name).Scan(&id); err != nil {
					return 0, fmt.Errorf("upsert topic: %w", err)
				}
				return id, nil
			}
			return 0, fmt.Errorf("insert topic: %w", err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("upsert topic: %w", err)
	}
}

// LinkTopicEntry attaches a record to a topic. Re-linking an existing
// pair updates the relevance score instead of failing.
func (s *Store) LinkTopicEntry(ctx context.Context, topicID int64, table string, entryID int64, relevance float64) error {
	if !contains(EntryTables, table) {
		return validationErr("entry_table must be one of %v", EntryTables)
	}
	if relevance < 0 || relevance > 1 {
		return validationErr("relevance_score must be in [0,1], got %v", relevance)
	}

	q := s.d.insertIgnore("topic_entries",
		"topic_id, entry_table, entry_id, relevance_score", "?, ?, ?, ?",
		"topic_id, entry_table, entry_id")
	res, err := s.exec(ctx, q, topicID, table, entryID, relevance)
	if err != nil {
		return fmt.Errorf("link topic entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.exec(ctx,
			`UPDATE topic_entries SET relevance_score = ? WHERE topic_id = ? AND entry_table = ? AND entry_id = ?`,
			relevance, topicID, table, entryID,
		); err != nil {
			return fmt.Errorf("link topic entry: %w", err)
		}
	}
	return nil
}

// GetTopic retrieves a topic by name.
func (s *Store) GetTopic(ctx context.Context, name string) (*Topic, error) {
	var t Topic
	var keyTerms *string
	err := s.queryRow(ctx,
		`SELECT id, topic_name, summary, key_terms, created_at, updated_at FROM topic_index WHERE topic_name = ?`,
		name,
	).Scan(&t.ID, &t.TopicName, &t.Summary, &keyTerms, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("topic %q", name)
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	if keyTerms != nil {
		t.KeyTerms = SplitTags(*keyTerms)
	}
	return &t, nil
}

// TopicEntries returns the links of one topic, most relevant first.
func (s *Store) TopicEntries(ctx context.Context, topicID int64) ([]TopicEntry, error) {
	rows, err := s.query(ctx,
		`SELECT id, topic_id, entry_table, entry_id, relevance_score, created_at
		 FROM topic_entries WHERE topic_id = ? ORDER BY relevance_score DESC`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("topic entries: %w", err)
	}
	defer rows.Close()

	var out []TopicEntry
	for rows.Next() {
		var e TopicEntry
		if err := rows.Scan(&e.ID, &e.TopicID, &e.EntryTable, &e.EntryID, &e.RelevanceScore, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
