package curation

import (
	"context"
	"fmt"
	"strings"
)

const similarityMethod = "similarity"

// detectDuplicates compares records pairwise within each table and flags
// pairs whose weighted similarity reaches the floor. Flagging is the
// phase's only power: confirmed-or-rejected is a reviewer decision, and
// an already flagged pair is left alone.
func (e *Engine) detectDuplicates(ctx context.Context, pr *PhaseReport) error {
	weights := Weights{
		Title:   e.cfg.TitleWeight,
		Content: e.cfg.ContentWeight,
		Tags:    e.cfg.TagWeight,
	}

	groups, err := e.duplicateGroups(ctx)
	if err != nil {
		return err
	}

	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				pr.Examined++
				score := Similarity(weights, group[i], group[j])
				if score < e.cfg.SimilarityFloor {
					continue
				}
				created, err := e.store.FlagDuplicate(ctx,
					group[i].table, group[i].id,
					group[j].table, group[j].id,
					score, similarityMethod,
				)
				if err != nil {
					return fmt.Errorf("flag duplicate %s/%d vs %s/%d: %w",
						group[i].table, group[i].id, group[j].table, group[j].id, err)
				}
				if created {
					pr.Changed++
					pr.Flagged = append(pr.Flagged,
						fmt.Sprintf("%s/%d~%s/%d", group[i].table, group[i].id, group[j].table, group[j].id))
				}
			}
		}
	}
	return nil
}

// duplicateGroups loads the comparison groups: knowledge entries split
// by category, and all non-archived memories as one group. Pairs only
// form inside a group, which keeps the quadratic comparison small.
func (e *Engine) duplicateGroups(ctx context.Context) ([][]item, error) {
	var groups [][]item

	knowledge, err := e.store.RecentKnowledge(ctx, "", e.cfg.MaxItemsPerPhase)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	byCategory := make(map[string][]item)
	for _, k := range knowledge {
		byCategory[k.Category] = append(byCategory[k.Category], item{
			table:   "knowledge_base",
			id:      k.ID,
			title:   k.Title,
			content: k.Content,
			tags:    k.Tags,
		})
	}
	for _, g := range byCategory {
		if len(g) > 1 {
			groups = append(groups, g)
		}
	}

	memories, err := e.store.HighImportanceMemories(ctx, "", 1, e.cfg.MaxItemsPerPhase)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	var memGroup []item
	for _, m := range memories {
		memGroup = append(memGroup, item{
			table:   "memories",
			id:      m.ID,
			title:   strings.ReplaceAll(m.Key, "_", " "),
			content: m.Content,
			tags:    m.Tags,
		})
	}
	if len(memGroup) > 1 {
		groups = append(groups, memGroup)
	}
	return groups, nil
}
