package curation

import (
	"context"
	"fmt"
	"strings"
)

// topicMinMembers is how many records must share a canonical tag before
// it becomes a topic.
const topicMinMembers = 2

// indexTopics groups records by canonical tag: every canonical tag
// carried by at least topicMinMembers records becomes (or updates) a
// topic_index row, and each carrier is linked through topic_entries.
// Upserts and ignore-on-conflict links keep repeat runs no-ops.
func (e *Engine) indexTopics(ctx context.Context, pr *PhaseReport) error {
	taxonomy, err := e.store.Taxonomy(ctx)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}
	entities, err := e.store.TaggedEntities(ctx, e.cfg.MaxItemsPerPhase)
	if err != nil {
		return fmt.Errorf("load tagged entities: %w", err)
	}
	if len(taxonomy) == 0 || len(entities) == 0 {
		pr.Skipped = "nothing to index"
		return nil
	}

	byTag := make(map[string][]int)
	for i, ent := range entities {
		for _, t := range ent.Tags {
			byTag[t] = append(byTag[t], i)
		}
	}

	for _, canon := range taxonomy {
		members := byTag[canon.CanonicalTag]
		if len(members) < topicMinMembers {
			continue
		}
		pr.Examined++

		summary := fmt.Sprintf("Records tagged %s", canon.CanonicalTag)
		keyTerms := append([]string{canon.CanonicalTag}, canon.Aliases...)
		topicID, err := e.store.UpsertTopic(ctx, canon.CanonicalTag, summary, keyTerms)
		if err != nil {
			return fmt.Errorf("upsert topic %q: %w", canon.CanonicalTag, err)
		}

		for _, i := range members {
			ent := entities[i]
			relevance := tagRelevance(ent.Tags, canon.CanonicalTag)
			if err := e.store.LinkTopicEntry(ctx, topicID, ent.Table, ent.ID, relevance); err != nil {
				e.log.Warn("topic link rejected",
					"topic", canon.CanonicalTag, "table", ent.Table, "id", ent.ID, "err", err)
				continue
			}
			pr.Changed++
		}
	}
	return nil
}

// tagRelevance scores how much of a record's tagging the topic tag
// represents. A record tagged only "golang" is more about golang than
// one carrying it among six other tags.
func tagRelevance(tags []string, topicTag string) float64 {
	if len(tags) == 0 {
		return 0.5
	}
	for _, t := range tags {
		if strings.EqualFold(t, topicTag) {
			return 1.0 / float64(len(tags))
		}
	}
	return 0.5
}
