package store

import (
	"context"
	"fmt"
)

// RelationshipTypes is the closed set of accepted relationship types.
var RelationshipTypes = []string{
	"relates_to", "supersedes", "implements", "documents",
	"duplicate_of", "depends_on", "parent_of", "child_of",
}

// EntryTables are the tables relationships and topics may point into.
var EntryTables = []string{"memories", "knowledge_base", "entries"}

// Relationship is a typed, directed link between two records.
type Relationship struct {
	ID               int64   `json:"id"`
	SourceTable      string  `json:"source_table"`
	SourceID         int64   `json:"source_id"`
	TargetTable      string  `json:"target_table"`
	TargetID         int64   `json:"target_id"`
	RelationshipType string  `json:"relationship_type"`
	Confidence       float64 `json:"confidence"`
	CreatedBy        *string `json:"created_by,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// AddRelationshipParams holds the input for creating a relationship.
type AddRelationshipParams struct {
	SourceTable      string  `json:"source_table"`
	SourceID         int64   `json:"source_id"`
	TargetTable      string  `json:"target_table"`
	TargetID         int64   `json:"target_id"`
	RelationshipType string  `json:"relationship_type,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	CreatedBy        string  `json:"created_by,omitempty"`
}

// AddRelationship creates a typed directed link. An already existing
// identical link is a no-op, so rediscovery across curation runs is
// idempotent. Returns the inserted id, or 0 when the link already existed.
func (s *Store) AddRelationship(ctx context.Context, p AddRelationshipParams) (int64, error) {
	if !contains(EntryTables, p.SourceTable) || !contains(EntryTables, p.TargetTable) {
		return 0, validationErr("relationship tables must be one of %v", EntryTables)
	}
	if p.SourceTable == p.TargetTable && p.SourceID == p.TargetID {
		return 0, validationErr("relationship cannot link a record to itself")
	}
	relType := orDefault(p.RelationshipType, "relates_to")
	if !contains(RelationshipTypes, relType) {
		return 0, validationErr("invalid relationship_type %q, must be one of %v", relType, RelationshipTypes)
	}
	confidence := p.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	if confidence < 0 || confidence > 1 {
		return 0, validationErr("confidence must be in [0,1], got %v", confidence)
	}

	q := s.d.insertIgnore("relationships",
		"source_table, source_id, target_table, target_id, relationship_type, confidence, created_by",
		"?, ?, ?, ?, ?, ?, ?",
		"source_table, source_id, target_table, target_id, relationship_type")
	res, err := s.exec(ctx, q,
		p.SourceTable, p.SourceID, p.TargetTable, p.TargetID, relType, confidence,
		nullableString(p.CreatedBy),
	)
	if err != nil {
		return 0, fmt.Errorf("add relationship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, nil
	}

	var id int64
	err = s.queryRow(ctx,
		`SELECT id FROM relationships
		 WHERE source_table = ? AND source_id = ? AND target_table = ? AND target_id = ? AND relationship_type = ?`,
		p.SourceTable, p.SourceID, p.TargetTable, p.TargetID, relType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add relationship: %w", err)
	}
	return id, nil
}

// RelationshipsFor returns every relationship where the record is either
// endpoint.
func (s *Store) RelationshipsFor(ctx context.Context, table string, id int64) ([]Relationship, error) {
	rows, err := s.query(ctx,
		`SELECT id, source_table, source_id, target_table, target_id, relationship_type, confidence, created_by, created_at
		 FROM relationships
		 WHERE (source_table = ? AND source_id = ?) OR (target_table = ? AND target_id = ?)
		 ORDER BY created_at ASC`,
		table, id, table, id,
	)
	if err != nil {
		return nil, fmt.Errorf("relationships for %s/%d: %w", table, id, err)
	}
	defer rows.Close()

	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(
			&r.ID, &r.SourceTable, &r.SourceID, &r.TargetTable, &r.TargetID,
			&r.RelationshipType, &r.Confidence, &r.CreatedBy, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasLinks reports whether the record has at least one relationship or
// topic link, the promotion precondition.
func (s *Store) HasLinks(ctx context.Context, table string, id int64) (bool, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM relationships
		 WHERE (source_table = ? AND source_id = ?) OR (target_table = ? AND target_id = ?)`,
		table, id, table, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has links: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	err = s.queryRow(ctx,
		`SELECT COUNT(*) FROM topic_entries WHERE entry_table = ? AND entry_id = ?`,
		table, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has links: %w", err)
	}
	return n > 0, nil
}

// UnlinkedHighImportanceMemories returns non-archived memories with
// importance >= floor that have no relationship rows at all. This is
// the relationship discovery work queue.
func (s *Store) UnlinkedHighImportanceMemories(ctx context.Context, floor, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		memorySelect+` WHERE importance >= ? AND status != ?
		 AND NOT EXISTS (
			SELECT 1 FROM relationships r
			WHERE (r.source_table = 'memories' AND r.source_id = memories.id)
			   OR (r.target_table = 'memories' AND r.target_id = memories.id)
		 )
		 ORDER BY importance DESC, created_at ASC LIMIT ?`,
		floor, StatusArchived, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("unlinked memories: %w", err)
	}
	return s.collectMemories(rows)
}
