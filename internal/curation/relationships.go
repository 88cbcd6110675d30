package curation

import (
	"context"
	"errors"
	"fmt"

	"github.com/worklog-dev/worklog/internal/classify"
	"github.com/worklog-dev/worklog/internal/store"
)

// candidatePoolSize bounds how many recent records are offered to the
// classifier per subject.
const candidatePoolSize = 20

// discoverRelationships proposes typed links for high-importance
// memories that have none yet. The classifier only ever suggests; every
// accepted suggestion lands as an additive relationships row, and a
// suggestion below the confidence floor is dropped. Without a reachable
// classifier the phase records itself as skipped.
func (e *Engine) discoverRelationships(ctx context.Context, pr *PhaseReport) error {
	if e.classifier == nil {
		pr.Skipped = "no classifier configured"
		return nil
	}

	subjects, err := e.store.UnlinkedHighImportanceMemories(ctx, e.cfg.PromotionImportance, e.cfg.MaxItemsPerPhase)
	if err != nil {
		return fmt.Errorf("load unlinked memories: %w", err)
	}
	if len(subjects) == 0 {
		return nil
	}

	candidates, err := e.candidatePool(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		pr.Skipped = "no candidate records"
		return nil
	}

	for _, m := range subjects {
		pr.Examined++
		subject := classify.Record{
			Table:   "memories",
			ID:      m.ID,
			Title:   m.Key,
			Content: m.Content,
			Tags:    m.Tags,
		}
		related, err := e.classifier.RelateCandidates(ctx, subject, candidates)
		if err != nil {
			if errors.Is(err, classify.ErrUnavailable) {
				pr.Skipped = "classifier unavailable"
				return nil
			}
			return fmt.Errorf("relate memory %d: %w", m.ID, err)
		}
		for _, r := range related {
			if r.Confidence < e.cfg.ConfidenceFloor {
				continue
			}
			if r.Target.Table == subject.Table && r.Target.ID == subject.ID {
				continue
			}
			id, err := e.store.AddRelationship(ctx, store.AddRelationshipParams{
				SourceTable:      subject.Table,
				SourceID:         subject.ID,
				TargetTable:      r.Target.Table,
				TargetID:         r.Target.ID,
				RelationshipType: r.RelationshipType,
				Confidence:       r.Confidence,
				CreatedBy:        e.agent,
			})
			if err != nil {
				e.log.Warn("relationship rejected", "source", m.Key, "type", r.RelationshipType, "err", err)
				continue
			}
			if id != 0 {
				pr.Changed++
			}
		}
	}
	return nil
}

// candidatePool gathers recent knowledge and work entries as link targets.
func (e *Engine) candidatePool(ctx context.Context) ([]classify.Record, error) {
	var pool []classify.Record

	knowledge, err := e.store.RecentKnowledge(ctx, "", candidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("load knowledge candidates: %w", err)
	}
	for _, k := range knowledge {
		pool = append(pool, classify.Record{
			Table:   "knowledge_base",
			ID:      k.ID,
			Title:   k.Title,
			Content: store.Truncate(k.Content, 500),
			Tags:    k.Tags,
		})
	}

	entries, err := e.store.RecentEntries(ctx, "", "", 30, candidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("load entry candidates: %w", err)
	}
	for _, en := range entries {
		content := ""
		if en.Details != nil {
			content = store.Truncate(*en.Details, 500)
		}
		pool = append(pool, classify.Record{
			Table:   "entries",
			ID:      en.ID,
			Title:   en.Title,
			Content: content,
			Tags:    en.Tags,
		})
	}
	return pool, nil
}
