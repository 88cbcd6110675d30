package store

import (
	"context"
	"fmt"
)

// Duplicate candidate statuses. Only pending may be written by automated
// code; confirmed and rejected are reviewer decisions.
const (
	DuplicatePending   = "pending"
	DuplicateConfirmed = "confirmed"
	DuplicateRejected  = "rejected"
)

// DuplicateCandidate is a flagged possible duplicate pair.
// Automated detection only ever creates pending rows; resolution is a
// human action recorded against the same row. Nothing here merges or
// deletes the underlying records; that capability does not exist in
// this codebase.
type DuplicateCandidate struct {
	ID              int64   `json:"id"`
	Entry1Table     string  `json:"entry1_table"`
	Entry1ID        int64   `json:"entry1_id"`
	Entry2Table     string  `json:"entry2_table"`
	Entry2ID        int64   `json:"entry2_id"`
	SimilarityScore float64 `json:"similarity_score"`
	DetectionMethod *string `json:"detection_method,omitempty"`
	Status          string  `json:"status"`
	ResolvedBy      *string `json:"resolved_by,omitempty"`
	ResolvedAt      *string `json:"resolved_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// FlagDuplicate records a possible duplicate pair with status pending.
// Re-flagging a known pair is a no-op so repeated detection runs are
// idempotent. Returns true if a new candidate row was created.
func (s *Store) FlagDuplicate(ctx context.Context, t1 string, id1 int64, t2 string, id2 int64, score float64, method string) (bool, error) {
	if !contains(EntryTables, t1) || !contains(EntryTables, t2) {
		return false, validationErr("duplicate tables must be one of %v", EntryTables)
	}
	if t1 == t2 && id1 == id2 {
		return false, validationErr("cannot flag a record as a duplicate of itself")
	}
	if score < 0 || score > 1 {
		return false, validationErr("similarity_score must be in [0,1], got %v", score)
	}

	// Normalize pair order so (a,b) and (b,a) hit the same unique row.
	if t2 < t1 || (t1 == t2 && id2 < id1) {
		t1, t2 = t2, t1
		id1, id2 = id2, id1
	}

	q := s.d.insertIgnore("duplicate_candidates",
		"entry1_table, entry1_id, entry2_table, entry2_id, similarity_score, detection_method",
		"?, ?, ?, ?, ?, ?",
		"entry1_table, entry1_id, entry2_table, entry2_id")
	res, err := s.exec(ctx, q, t1, id1, t2, id2, score, nullableString(method))
	if err != nil {
		return false, fmt.Errorf("flag duplicate: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PendingDuplicates returns unresolved candidates, highest similarity first.
func (s *Store) PendingDuplicates(ctx context.Context, limit int) ([]DuplicateCandidate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		`SELECT id, entry1_table, entry1_id, entry2_table, entry2_id, similarity_score, detection_method, status, resolved_by, resolved_at, created_at
		 FROM duplicate_candidates WHERE status = ? ORDER BY similarity_score DESC LIMIT ?`,
		DuplicatePending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending duplicates: %w", err)
	}
	defer rows.Close()

	var out []DuplicateCandidate
	for rows.Next() {
		var d DuplicateCandidate
		if err := rows.Scan(
			&d.ID, &d.Entry1Table, &d.Entry1ID, &d.Entry2Table, &d.Entry2ID,
			&d.SimilarityScore, &d.DetectionMethod, &d.Status, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ResolveDuplicate records a reviewer's decision on a pending candidate.
// This is the only operation that moves a candidate out of pending, and
// it is never called by the curation engine.
func (s *Store) ResolveDuplicate(ctx context.Context, id int64, status, reviewer string) error {
	if status != DuplicateConfirmed && status != DuplicateRejected {
		return validationErr("resolution status must be %q or %q", DuplicateConfirmed, DuplicateRejected)
	}
	if reviewer == "" {
		return validationErr("reviewer is required for duplicate resolution")
	}

	res, err := s.exec(ctx,
		`UPDATE duplicate_candidates
		 SET status = ?, resolved_by = ?, resolved_at = `+s.d.now()+`
		 WHERE id = ? AND status = ?`,
		status, reviewer, id, DuplicatePending,
	)
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr("pending duplicate candidate %d", id)
	}
	return nil
}
