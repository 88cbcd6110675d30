package store

import (
	"context"
	"fmt"
)

// TagTaxonomy maps a canonical tag to its known aliases.
// Every alias resolves to exactly one canonical tag; canonical tags are
// idempotent under normalization.
type TagTaxonomy struct {
	ID           int64    `json:"id"`
	CanonicalTag string   `json:"canonical_tag"`
	Aliases      []string `json:"aliases,omitempty"`
	Category     string   `json:"category,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

// RegisterCanonicalTag inserts a canonical tag if it does not exist.
// A concurrent insert of the same tag is a no-op, not an error, so
// racing curator runs are safe.
func (s *Store) RegisterCanonicalTag(ctx context.Context, t TagTaxonomy) error {
	if t.CanonicalTag == "" {
		return validationErr("canonical_tag is required")
	}
	q := s.d.insertIgnore("tag_taxonomy", "canonical_tag, aliases, category", "?, ?, ?", "canonical_tag")
	if _, err := s.exec(ctx, q,
		t.CanonicalTag, nullableString(JoinTags(t.Aliases)), nullableString(t.Category),
	); err != nil {
		return fmt.Errorf("register canonical tag: %w", err)
	}
	return nil
}

// AddAlias appends an alias to an existing canonical tag.
func (s *Store) AddAlias(ctx context.Context, canonical, alias string) error {
	tax, err := s.Taxonomy(ctx)
	if err != nil {
		return err
	}
	for _, t := range tax {
		if t.CanonicalTag != canonical {
			continue
		}
		for _, a := range t.Aliases {
			if a == alias {
				return nil
			}
		}
		aliases := JoinTags(append(t.Aliases, alias))
		if _, err := s.exec(ctx,
			`UPDATE tag_taxonomy SET aliases = ? WHERE canonical_tag = ?`, aliases, canonical,
		); err != nil {
			return fmt.Errorf("add alias: %w", err)
		}
		return nil
	}
	return notFoundErr("canonical tag %q", canonical)
}

// Taxonomy returns all taxonomy rows.
func (s *Store) Taxonomy(ctx context.Context) ([]TagTaxonomy, error) {
	rows, err := s.query(ctx,
		`SELECT id, canonical_tag, aliases, category, created_at FROM tag_taxonomy ORDER BY canonical_tag`,
	)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	defer rows.Close()

	var out []TagTaxonomy
	for rows.Next() {
		var t TagTaxonomy
		var aliases, category *string
		if err := rows.Scan(&t.ID, &t.CanonicalTag, &aliases, &category, &t.CreatedAt); err != nil {
			return nil, err
		}
		if aliases != nil {
			t.Aliases = SplitTags(*aliases)
		}
		if category != nil {
			t.Category = *category
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AliasMap returns a lookup from every alias (and canonical tag) to its
// canonical form.
func (s *Store) AliasMap(ctx context.Context) (map[string]string, error) {
	tax, err := s.Taxonomy(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(tax)*2)
	for _, t := range tax {
		m[t.CanonicalTag] = t.CanonicalTag
		for _, a := range t.Aliases {
			m[a] = t.CanonicalTag
		}
	}
	return m, nil
}

// ─── Tagged entity access (used by tag normalization) ───────────────────────

// taggedTables are the entity tables carrying a tags column.
var taggedTables = []string{"memories", "knowledge_base", "entries", "error_patterns"}

// TaggedEntity is an (table, id, tags) triple for tag rewriting.
type TaggedEntity struct {
	Table string   `json:"table"`
	ID    int64    `json:"id"`
	Tags  []string `json:"tags"`
}

// TaggedEntities returns every row of every entity table that has a
// non-empty tags column.
func (s *Store) TaggedEntities(ctx context.Context, limit int) ([]TaggedEntity, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []TaggedEntity
	for _, table := range taggedTables {
		rows, err := s.query(ctx,
			`SELECT id, tags FROM `+table+` WHERE tags IS NOT NULL AND tags != '' ORDER BY id LIMIT ?`,
			limit,
		)
		if err != nil {
			return nil, fmt.Errorf("tagged entities %s: %w", table, err)
		}
		for rows.Next() {
			var e TaggedEntity
			var tags string
			if err := rows.Scan(&e.ID, &tags); err != nil {
				rows.Close()
				return nil, err
			}
			e.Table = table
			e.Tags = SplitTags(tags)
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// RewriteEntityTags replaces the tags column of one entity row.
func (s *Store) RewriteEntityTags(ctx context.Context, table string, id int64, tags []string) error {
	if !contains(taggedTables, table) {
		return validationErr("table %q has no tags column", table)
	}
	if _, err := s.exec(ctx,
		`UPDATE `+table+` SET tags = ? WHERE id = ?`, JoinTags(tags), id,
	); err != nil {
		return fmt.Errorf("rewrite tags %s/%d: %w", table, id, err)
	}
	return nil
}
