package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// CurationOperations is the closed set of audited curation phase names.
var CurationOperations = []string{
	"tag_normalization", "relationship_discovery", "topic_indexing",
	"duplicate_detection", "memory_promotion", "full_curation",
}

// PromotionRecord is one audited memory status transition. Append-only.
type PromotionRecord struct {
	ID         int64   `json:"id"`
	MemoryID   int64   `json:"memory_id"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	Reason     *string `json:"reason,omitempty"`
	PromotedBy *string `json:"promoted_by,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// CurationRun is one audited execution of a curation phase. Append-only.
type CurationRun struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id"`
	Operation string `json:"operation"`
	Agent     string `json:"agent,omitempty"`
	Stats     string `json:"stats,omitempty"`
	RunAt     string `json:"run_at"`
}

// RecordPromotion appends one promotion audit row.
func (s *Store) RecordPromotion(ctx context.Context, memoryID int64, from, to, reason, promotedBy string) error {
	if _, err := s.exec(ctx,
		`INSERT INTO promotion_history (memory_id, from_status, to_status, reason, promoted_by)
		 VALUES (?, ?, ?, ?, ?)`,
		memoryID, from, to, nullableString(reason), nullableString(promotedBy),
	); err != nil {
		return fmt.Errorf("record promotion: %w", err)
	}
	return nil
}

// PromotionHistory returns the transition audit trail for one memory,
// oldest first.
func (s *Store) PromotionHistory(ctx context.Context, memoryID int64) ([]PromotionRecord, error) {
	rows, err := s.query(ctx,
		`SELECT id, memory_id, from_status, to_status, reason, promoted_by, created_at
		 FROM promotion_history WHERE memory_id = ? ORDER BY id ASC`,
		memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("promotion history: %w", err)
	}
	defer rows.Close()

	var out []PromotionRecord
	for rows.Next() {
		var r PromotionRecord
		if err := rows.Scan(&r.ID, &r.MemoryID, &r.FromStatus, &r.ToStatus, &r.Reason, &r.PromotedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LogCurationRun appends one curation audit row. Stats may be any
// JSON-serializable value; it is stored as a JSON blob.
func (s *Store) LogCurationRun(ctx context.Context, runID, operation, agent string, stats any) error {
	if !contains(CurationOperations, operation) {
		return validationErr("invalid curation operation %q, must be one of %v", operation, CurationOperations)
	}
	blob, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("log curation run: marshal stats: %w", err)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO curation_history (run_id, operation, agent, stats) VALUES (?, ?, ?, ?)`,
		runID, operation, nullableString(agent), string(blob),
	); err != nil {
		return fmt.Errorf("log curation run: %w", err)
	}
	return nil
}

// CurationHistory returns audit rows for one run id, in phase order.
func (s *Store) CurationHistory(ctx context.Context, runID string) ([]CurationRun, error) {
	rows, err := s.query(ctx,
		`SELECT id, run_id, operation, agent, stats, run_at
		 FROM curation_history WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("curation history: %w", err)
	}
	defer rows.Close()

	var out []CurationRun
	for rows.Next() {
		var r CurationRun
		var agent, stats *string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Operation, &agent, &stats, &r.RunAt); err != nil {
			return nil, err
		}
		if agent != nil {
			r.Agent = *agent
		}
		if stats != nil {
			r.Stats = *stats
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RegisterSystem upserts this installation's configuration record.
// Insert-if-not-exists keeps concurrent first registrations safe; an
// existing row is refreshed with the current profile.
func (s *Store) RegisterSystem(ctx context.Context, profile, automationLevel, backend string) error {
	if s.system == "" {
		return validationErr("system identifier is not configured")
	}
	q := s.d.insertIgnore("systems", "system, profile, automation_level, backend", "?, ?, ?, ?", "system")
	res, err := s.exec(ctx, q, s.system, nullableString(profile), nullableString(automationLevel), nullableString(backend))
	if err != nil {
		return fmt.Errorf("register system: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.exec(ctx,
			`UPDATE systems SET profile = ?, automation_level = ?, backend = ? WHERE system = ?`,
			nullableString(profile), nullableString(automationLevel), nullableString(backend), s.system,
		); err != nil {
			return fmt.Errorf("register system: %w", err)
		}
	}
	return nil
}
