package worktools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/curation"
	"github.com/worklog-dev/worklog/internal/store"
)

// RunCurationTool handles the run_curation MCP tool.
type RunCurationTool struct {
	engine *curation.Engine
}

// NewRunCurationTool creates a RunCurationTool.
func NewRunCurationTool(engine *curation.Engine) *RunCurationTool {
	return &RunCurationTool{engine: engine}
}

// Definition returns the MCP tool definition for run_curation.
func (t *RunCurationTool) Definition() mcp.Tool {
	return mcp.NewTool("run_curation",
		mcp.WithDescription(
			"Run curation phases over the store: normalize tags, discover relationships, "+
				"index topics, flag duplicates, and advance the memory lifecycle. Every phase "+
				"is additive and safe to re-run; nothing is ever deleted or merged.",
		),
		mcp.WithString("operations",
			mcp.Description("Comma-separated subset of: tag_normalization, relationship_discovery, topic_indexing, duplicate_detection, memory_promotion (default: all)"),
		),
	)
}

// Handle processes the run_curation tool call.
func (t *RunCurationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.engine.Run(ctx, listArg(req, "operations"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("curation failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Curation run %s:\n\n", report.RunID)
	for _, p := range report.Phases {
		switch {
		case p.Error != "":
			fmt.Fprintf(&b, "  %-24s FAILED: %s\n", p.Operation, p.Error)
		case p.Skipped != "":
			fmt.Fprintf(&b, "  %-24s skipped (%s)\n", p.Operation, p.Skipped)
		default:
			fmt.Fprintf(&b, "  %-24s examined %d, changed %d, flagged %d\n",
				p.Operation, p.Examined, p.Changed, len(p.Flagged))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ReviewDuplicateTool ─────────────────────────────────────────────────────

// ReviewDuplicateTool handles the review_duplicate MCP tool. This is the
// only path out of a pending duplicate flag, and it requires a reviewer.
type ReviewDuplicateTool struct {
	store *store.Store
}

// NewReviewDuplicateTool creates a ReviewDuplicateTool.
func NewReviewDuplicateTool(s *store.Store) *ReviewDuplicateTool {
	return &ReviewDuplicateTool{store: s}
}

// Definition returns the MCP tool definition for review_duplicate.
func (t *ReviewDuplicateTool) Definition() mcp.Tool {
	return mcp.NewTool("review_duplicate",
		mcp.WithDescription(
			"List or resolve flagged duplicate pairs. Without an id, lists pending flags. "+
				"With an id and a verdict, marks the pair confirmed or rejected. Resolution "+
				"only annotates the flag; both records stay untouched.",
		),
		mcp.WithNumber("id",
			mcp.Description("Duplicate candidate ID to resolve"),
		),
		mcp.WithString("verdict",
			mcp.Description("confirmed or rejected"),
		),
		mcp.WithString("reviewer",
			mcp.Description("Who is resolving, required with a verdict"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max pending flags to list (default: 20)"),
		),
	)
}

// Handle processes the review_duplicate tool call.
func (t *ReviewDuplicateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		pending, err := t.store.PendingDuplicates(ctx, intArg(req, "limit", 20))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list duplicates: %v", err)), nil
		}
		if len(pending) == 0 {
			return mcp.NewToolResultText("No pending duplicate flags."), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d pending duplicate flags:\n\n", len(pending))
		for _, d := range pending {
			fmt.Fprintf(&b, "  [%d] %s/%d ~ %s/%d (score %.2f)\n",
				d.ID, d.Entry1Table, d.Entry1ID, d.Entry2Table, d.Entry2ID, d.SimilarityScore)
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	verdict := req.GetString("verdict", "")
	reviewer := req.GetString("reviewer", "")
	if verdict == "" {
		return mcp.NewToolResultError("'verdict' is required when resolving"), nil
	}
	if err := t.store.ResolveDuplicate(ctx, int64(id), verdict, reviewer); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve duplicate: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Duplicate %d marked %s by %s.", id, verdict, reviewer)), nil
}

// ─── CurationHistoryTool ─────────────────────────────────────────────────────

// CurationHistoryTool handles the get_curation_history MCP tool.
type CurationHistoryTool struct {
	store *store.Store
}

// NewCurationHistoryTool creates a CurationHistoryTool.
func NewCurationHistoryTool(s *store.Store) *CurationHistoryTool {
	return &CurationHistoryTool{store: s}
}

// Definition returns the MCP tool definition for get_curation_history.
func (t *CurationHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_curation_history",
		mcp.WithDescription("Show the audit trail of one curation run: every phase with its stats."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Curation run ID"),
		),
	)
}

// Handle processes the get_curation_history tool call.
func (t *CurationHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := req.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("'run_id' is required"), nil
	}
	runs, err := t.store.CurationHistory(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No curation history for run %s.", runID)), nil
	}
	return jsonResult(runs)
}
