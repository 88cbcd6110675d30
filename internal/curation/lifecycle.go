package curation

import (
	"context"
	"fmt"

	"github.com/worklog-dev/worklog/internal/store"
)

// runLifecycle advances the memory lifecycle. A staging memory is
// promoted once it clears all three gates: importance at or above the
// promotion floor, age past the settling delay, and at least one
// relationship or topic link. Low-importance memories past the archival
// age with no links are flagged as archival candidates in the phase
// report; nothing is archived here.
func (e *Engine) runLifecycle(ctx context.Context, pr *PhaseReport) error {
	staging, err := e.store.StagingMemories(ctx, e.cfg.MaxItemsPerPhase)
	if err != nil {
		return fmt.Errorf("load staging memories: %w", err)
	}

	for _, m := range staging {
		pr.Examined++
		if m.Importance < e.cfg.PromotionImportance {
			continue
		}
		age, err := e.store.MemoryAgeHours(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("memory age %q: %w", m.Key, err)
		}
		if age < e.cfg.PromotionDelay.Hours() {
			continue
		}
		linked, err := e.store.HasLinks(ctx, "memories", m.ID)
		if err != nil {
			return fmt.Errorf("memory links %q: %w", m.Key, err)
		}
		if !linked {
			continue
		}

		status := store.StatusPromoted
		if _, err := e.store.UpdateMemory(ctx, m.Key, store.UpdateMemoryParams{Status: &status}); err != nil {
			return fmt.Errorf("promote %q: %w", m.Key, err)
		}
		reason := fmt.Sprintf("importance %d, age %.0fh, linked", m.Importance, age)
		if err := e.store.RecordPromotion(ctx, m.ID, store.StatusStaging, store.StatusPromoted, reason, e.agent); err != nil {
			return fmt.Errorf("record promotion %q: %w", m.Key, err)
		}
		pr.Changed++
	}

	stale, err := e.store.ArchivalCandidates(ctx,
		e.cfg.ArchivalImportance, int(e.cfg.ArchivalAge.Hours()), e.cfg.MaxItemsPerPhase)
	if err != nil {
		return fmt.Errorf("load archival candidates: %w", err)
	}
	for _, m := range stale {
		pr.Flagged = append(pr.Flagged, "archive:"+m.Key)
	}
	return nil
}
