package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Tables is the full set of queryable tables.
var Tables = []string{
	"memories", "knowledge_base", "entries", "error_patterns",
	"tag_taxonomy", "relationships", "topic_index", "topic_entries",
	"duplicate_candidates", "promotion_history", "curation_history", "systems",
}

// QueryParams is a generic read-only filter spec used by the curation
// engine and diagnostics. Filters are ANDed equality matches; columns and
// tables are validated against whitelists before any SQL is built.
type QueryParams struct {
	Table   string         `json:"table"`
	Filters map[string]any `json:"filters,omitempty"`
	OrderBy string         `json:"order_by,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

// QueryResult holds generic rows plus the total matching count.
type QueryResult struct {
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
	Total int              `json:"total"`
}

// identPattern accepts plain SQL identifiers, optionally with a
// trailing sort direction for order_by.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*( (?i:ASC|DESC))?$`)

// QueryTable runs a whitelisted, parameterized read over one table.
func (s *Store) QueryTable(ctx context.Context, p QueryParams) (*QueryResult, error) {
	if !contains(Tables, p.Table) {
		return nil, validationErr("invalid table %q, must be one of %v", p.Table, Tables)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	for col, val := range p.Filters {
		if !identPattern.MatchString(col) || strings.Contains(col, " ") {
			return nil, validationErr("invalid filter column %q", col)
		}
		where = append(where, col+" = ?")
		args = append(args, val)
	}

	base := "FROM " + p.Table
	if len(where) > 0 {
		base += " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.queryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("query table count: %w", err)
	}

	q := "SELECT * " + base
	if p.OrderBy != "" {
		if !identPattern.MatchString(strings.ToLower(p.OrderBy)) {
			return nil, validationErr("invalid order_by %q", p.OrderBy)
		}
		q += " ORDER BY " + p.OrderBy
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, p.Offset)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Total: total}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.Count = len(result.Rows)
	return result, nil
}

// TableCounts returns the row count of every table, for the list_tables
// diagnostic tool.
func (s *Store) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(Tables))
	for _, table := range Tables {
		var n int
		if err := s.queryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
