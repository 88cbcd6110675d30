package store

import (
	"context"
	"fmt"
)

// migrate creates the schema. Every statement is idempotent
// (CREATE ... IF NOT EXISTS) so concurrent first-openers and upgrades of
// existing databases are both safe.
func (s *Store) migrate() error {
	d := s.d
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id            %s,
			key           TEXT UNIQUE NOT NULL,
			content       TEXT NOT NULL,
			summary       TEXT,
			memory_type   TEXT NOT NULL DEFAULT 'fact',
			importance    INTEGER NOT NULL DEFAULT 5,
			status        TEXT NOT NULL DEFAULT 'staging',
			tags          TEXT,
			source_agent  TEXT,
			system        TEXT,
			access_count  INTEGER NOT NULL DEFAULT 0,
			last_accessed %s,
			promoted_at   %s,
			created_at    %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.textTimestamp(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_base (
			id           %s,
			category     TEXT NOT NULL,
			title        TEXT NOT NULL,
			content      TEXT NOT NULL,
			tags         TEXT,
			source_agent TEXT,
			system       TEXT NOT NULL DEFAULT 'shared',
			source_url   TEXT,
			created_at   %s NOT NULL DEFAULT (%s),
			updated_at   %s NOT NULL DEFAULT (%s),
			UNIQUE(category, title)
		)`, d.pk(), d.textTimestamp(), d.now(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entries (
			id        %s,
			agent     TEXT NOT NULL DEFAULT 'agent',
			task_type TEXT NOT NULL,
			title     TEXT NOT NULL,
			details   TEXT,
			outcome   TEXT,
			tags      TEXT,
			related_files TEXT,
			created_at %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS error_patterns (
			id              %s,
			error_signature TEXT NOT NULL,
			error_message   TEXT,
			root_cause      TEXT,
			resolution      TEXT,
			prevention_tip  TEXT,
			language        TEXT,
			platform        TEXT,
			tags            TEXT,
			status          TEXT NOT NULL DEFAULT 'active',
			created_at      %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tag_taxonomy (
			id            %s,
			canonical_tag TEXT UNIQUE NOT NULL,
			aliases       TEXT,
			category      TEXT,
			created_at    %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS relationships (
			id                %s,
			source_table      TEXT NOT NULL,
			source_id         INTEGER NOT NULL,
			target_table      TEXT NOT NULL,
			target_id         INTEGER NOT NULL,
			relationship_type TEXT NOT NULL DEFAULT 'relates_to',
			confidence        REAL NOT NULL DEFAULT 1.0,
			created_by        TEXT,
			created_at        %s NOT NULL DEFAULT (%s),
			UNIQUE(source_table, source_id, target_table, target_id, relationship_type)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS topic_index (
			id         %s,
			topic_name TEXT UNIQUE NOT NULL,
			summary    TEXT,
			key_terms  TEXT,
			created_at %s NOT NULL DEFAULT (%s),
			updated_at %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS topic_entries (
			id              %s,
			topic_id        INTEGER NOT NULL,
			entry_table     TEXT NOT NULL,
			entry_id        INTEGER NOT NULL,
			relevance_score REAL NOT NULL DEFAULT 0.5,
			created_at      %s NOT NULL DEFAULT (%s),
			UNIQUE(topic_id, entry_table, entry_id)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS duplicate_candidates (
			id               %s,
			entry1_table     TEXT NOT NULL,
			entry1_id        INTEGER NOT NULL,
			entry2_table     TEXT NOT NULL,
			entry2_id        INTEGER NOT NULL,
			similarity_score REAL NOT NULL,
			detection_method TEXT,
			status           TEXT NOT NULL DEFAULT 'pending',
			resolved_by      TEXT,
			resolved_at      %s,
			created_at       %s NOT NULL DEFAULT (%s),
			UNIQUE(entry1_table, entry1_id, entry2_table, entry2_id)
		)`, d.pk(), d.textTimestamp(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS promotion_history (
			id          %s,
			memory_id   INTEGER NOT NULL,
			from_status TEXT NOT NULL,
			to_status   TEXT NOT NULL,
			reason      TEXT,
			promoted_by TEXT,
			created_at  %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS curation_history (
			id        %s,
			run_id    TEXT NOT NULL,
			operation TEXT NOT NULL,
			agent     TEXT,
			stats     TEXT,
			run_at    %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS systems (
			id               %s,
			system           TEXT UNIQUE NOT NULL,
			profile          TEXT,
			automation_level TEXT,
			backend          TEXT,
			registered_at    %s NOT NULL DEFAULT (%s)
		)`, d.pk(), d.textTimestamp(), d.now()),

		`CREATE INDEX IF NOT EXISTS idx_memories_key        ON memories(key)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_status     ON memories(status)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance)`,
		`CREATE INDEX IF NOT EXISTS idx_kb_category         ON knowledge_base(category)`,
		`CREATE INDEX IF NOT EXISTS idx_kb_updated          ON knowledge_base(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_created     ON entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_agent       ON entries(agent)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_source          ON relationships(source_table, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_target          ON relationships(target_table, target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_topic_entries_topic ON topic_entries(topic_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dup_status          ON duplicate_candidates(status)`,
		`CREATE INDEX IF NOT EXISTS idx_promo_memory        ON promotion_history(memory_id)`,
		`CREATE INDEX IF NOT EXISTS idx_curation_run        ON curation_history(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// defaultTaxonomy maps canonical tags to their known aliases. Seeded on
// first open; registration is insert-if-not-exists so reseeding and
// concurrent openers are no-ops.
var defaultTaxonomy = []TagTaxonomy{
	{CanonicalTag: "kubernetes", Aliases: []string{"k8s", "kube"}, Category: "infrastructure"},
	{CanonicalTag: "postgresql", Aliases: []string{"pg", "postgres", "psql"}, Category: "database"},
	{CanonicalTag: "sqlite", Aliases: []string{"sqlite3"}, Category: "database"},
	{CanonicalTag: "docker", Aliases: []string{"docker-compose", "dockerfile"}, Category: "infrastructure"},
	{CanonicalTag: "javascript", Aliases: []string{"js"}, Category: "language"},
	{CanonicalTag: "typescript", Aliases: []string{"ts"}, Category: "language"},
	{CanonicalTag: "golang", Aliases: []string{"go"}, Category: "language"},
	{CanonicalTag: "configuration", Aliases: []string{"config", "cfg"}, Category: "task"},
	{CanonicalTag: "deployment", Aliases: []string{"deploy", "release"}, Category: "task"},
	{CanonicalTag: "debugging", Aliases: []string{"debug", "bugfix"}, Category: "task"},
}

func (s *Store) seedTaxonomy(ctx context.Context) error {
	for _, t := range defaultTaxonomy {
		if err := s.RegisterCanonicalTag(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
