package curation

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/worklog-dev/worklog/internal/store"
)

// normalizeTags rewrites every tagged record's tags through the alias
// map. Aliases collapse to their canonical form and duplicates collapse
// to one. A tag the taxonomy has never seen is resolved first: it is
// merged into an existing canonical when it is a spelling variant of
// one, and registered as a new canonical tag otherwise, so after the
// phase every entity carries canonical tags only. Running it twice
// changes nothing the second time.
func (e *Engine) normalizeTags(ctx context.Context, pr *PhaseReport) error {
	aliases, err := e.store.AliasMap(ctx)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}

	entities, err := e.store.TaggedEntities(ctx, e.cfg.MaxItemsPerPhase)
	if err != nil {
		return fmt.Errorf("load tagged entities: %w", err)
	}

	for _, ent := range entities {
		pr.Examined++
		for _, tag := range ent.Tags {
			if _, known := aliases[tag]; known {
				continue
			}
			if canonical, ok := fuzzyCanonical(tag, aliases); ok {
				if err := e.store.AddAlias(ctx, canonical, tag); err != nil {
					return fmt.Errorf("merge tag %q into %q: %w", tag, canonical, err)
				}
				aliases[tag] = canonical
				pr.Flagged = append(pr.Flagged, "alias:"+tag+">"+canonical)
				continue
			}
			if err := e.store.RegisterCanonicalTag(ctx, store.TagTaxonomy{CanonicalTag: tag}); err != nil {
				return fmt.Errorf("register tag %q: %w", tag, err)
			}
			aliases[tag] = tag
			pr.Flagged = append(pr.Flagged, "new_tag:"+tag)
		}

		normalized, changed := normalizeTagList(ent.Tags, aliases)
		if !changed {
			continue
		}
		if err := e.store.RewriteEntityTags(ctx, ent.Table, ent.ID, normalized); err != nil {
			return fmt.Errorf("rewrite tags %s/%d: %w", ent.Table, ent.ID, err)
		}
		pr.Changed++
	}
	return nil
}

// normalizeTagList maps each tag through the alias map and drops exact
// duplicates, preserving first-seen order.
func normalizeTagList(tags []string, aliases map[string]string) ([]string, bool) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	changed := false
	for _, t := range tags {
		canonical, ok := aliases[t]
		if !ok {
			canonical = t
		} else if canonical != t {
			changed = true
		}
		if _, dup := seen[canonical]; dup {
			changed = true
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out, changed
}

// fuzzyCanonical finds an existing canonical tag the unresolved tag is a
// spelling variant of: the same letters once separators are stripped, or
// a singular/plural pair.
func fuzzyCanonical(tag string, aliases map[string]string) (string, bool) {
	want := squashTag(tag)
	for _, canonical := range aliases {
		got := squashTag(canonical)
		if want == got || want == got+"s" || got == want+"s" {
			return canonical, true
		}
	}
	return "", false
}

// squashTag lowercases and strips separator characters so variants like
// "docker-compose" and "docker_compose" compare equal.
func squashTag(t string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return unicode.ToLower(r)
	}, t)
}
