package worktools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/store"
)

// QueryTableTool handles the query_table MCP tool.
type QueryTableTool struct {
	store *store.Store
}

// NewQueryTableTool creates a QueryTableTool.
func NewQueryTableTool(s *store.Store) *QueryTableTool {
	return &QueryTableTool{store: s}
}

// Definition returns the MCP tool definition for query_table.
func (t *QueryTableTool) Definition() mcp.Tool {
	return mcp.NewTool("query_table",
		mcp.WithDescription(
			"Run a filtered read over any worklog table. Filters are exact-match AND conditions. "+
				"Use list_tables to see what exists.",
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name"),
		),
		mcp.WithObject("filters",
			mcp.Description("Column/value equality filters, e.g. {\"status\": \"staging\"}"),
		),
		mcp.WithString("order_by",
			mcp.Description("Column to sort by, optionally with DESC (e.g. 'created_at DESC')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max rows (default: 20, max: 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Rows to skip, for paging"),
		),
	)
}

// Handle processes the query_table tool call.
func (t *QueryTableTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := req.GetString("table", "")
	if table == "" {
		return mcp.NewToolResultError("'table' is required"), nil
	}

	result, err := t.store.QueryTable(ctx, store.QueryParams{
		Table:   table,
		Filters: mapArg(req, "filters"),
		OrderBy: req.GetString("order_by", ""),
		Limit:   intArg(req, "limit", 0),
		Offset:  intArg(req, "offset", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(result)
}

// ─── ListTablesTool ──────────────────────────────────────────────────────────

// ListTablesTool handles the list_tables MCP tool.
type ListTablesTool struct {
	store *store.Store
}

// NewListTablesTool creates a ListTablesTool.
func NewListTablesTool(s *store.Store) *ListTablesTool {
	return &ListTablesTool{store: s}
}

// Definition returns the MCP tool definition for list_tables.
func (t *ListTablesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tables",
		mcp.WithDescription("List every worklog table with its current row count."),
	)
}

// Handle processes the list_tables tool call.
func (t *ListTablesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := t.store.TableCounts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count tables: %v", err)), nil
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Worklog tables:\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-22s %d rows\n", name, counts[name])
	}
	return mcp.NewToolResultText(b.String()), nil
}
