package worktools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/worklog-dev/worklog/internal/store"
)

// AddRelationshipTool handles the add_relationship MCP tool.
type AddRelationshipTool struct {
	store *store.Store
}

// NewAddRelationshipTool creates an AddRelationshipTool.
func NewAddRelationshipTool(s *store.Store) *AddRelationshipTool {
	return &AddRelationshipTool{store: s}
}

// Definition returns the MCP tool definition for add_relationship.
func (t *AddRelationshipTool) Definition() mcp.Tool {
	return mcp.NewTool("add_relationship",
		mcp.WithDescription(
			"Link two records with a typed, directed relationship. Adding the same link "+
				"twice is a no-op. Links also count toward memory promotion.",
		),
		mcp.WithString("source_table",
			mcp.Required(),
			mcp.Description("One of: memories, knowledge_base, entries"),
		),
		mcp.WithNumber("source_id",
			mcp.Required(),
			mcp.Description("Source record ID"),
		),
		mcp.WithString("target_table",
			mcp.Required(),
			mcp.Description("One of: memories, knowledge_base, entries"),
		),
		mcp.WithNumber("target_id",
			mcp.Required(),
			mcp.Description("Target record ID"),
		),
		mcp.WithString("relationship_type",
			mcp.Description("One of: relates_to, supersedes, implements, documents, duplicate_of, depends_on, parent_of, child_of (default: relates_to)"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Confidence 0-1 (default: 1.0)"),
		),
		mcp.WithString("agent",
			mcp.Description("Who is asserting this link"),
		),
	)
}

// Handle processes the add_relationship tool call.
func (t *AddRelationshipTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := intArg(req, "source_id", 0)
	targetID := intArg(req, "target_id", 0)
	if sourceID <= 0 || targetID <= 0 {
		return mcp.NewToolResultError("'source_id' and 'target_id' are required"), nil
	}

	id, err := t.store.AddRelationship(ctx, store.AddRelationshipParams{
		SourceTable:      req.GetString("source_table", ""),
		SourceID:         int64(sourceID),
		TargetTable:      req.GetString("target_table", ""),
		TargetID:         int64(targetID),
		RelationshipType: req.GetString("relationship_type", ""),
		Confidence:       floatArg(req, "confidence", 0),
		CreatedBy:        req.GetString("agent", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add relationship: %v", err)), nil
	}
	if id == 0 {
		return mcp.NewToolResultText("Relationship already exists."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Relationship added (ID: %d)", id)), nil
}

// ─── CreateTopicTool ─────────────────────────────────────────────────────────

// CreateTopicTool handles the create_topic MCP tool.
type CreateTopicTool struct {
	store *store.Store
}

// NewCreateTopicTool creates a CreateTopicTool.
func NewCreateTopicTool(s *store.Store) *CreateTopicTool {
	return &CreateTopicTool{store: s}
}

// Definition returns the MCP tool definition for create_topic.
func (t *CreateTopicTool) Definition() mcp.Tool {
	return mcp.NewTool("create_topic",
		mcp.WithDescription(
			"Create or update a named topic grouping related records. "+
				"Existing topics are updated in place, never duplicated.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Topic name, e.g. 'kubernetes-networking'"),
		),
		mcp.WithString("summary",
			mcp.Description("One-paragraph topic summary"),
		),
		mcp.WithString("key_terms",
			mcp.Description("Comma-separated key terms"),
		),
	)
}

// Handle processes the create_topic tool call.
func (t *CreateTopicTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	id, err := t.store.UpsertTopic(ctx, name, req.GetString("summary", ""), listArg(req, "key_terms"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create topic: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Topic %q ready (ID: %d)", name, id)), nil
}
