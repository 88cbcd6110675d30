// Worklog: cross-session memory for AI coding agents.
//
// Usage:
//
//	worklog serve    # Start the MCP server (stdio transport)
//	worklog init     # Create the schema and verify connectivity
//	worklog curate   # Run curation phases
//	worklog hook     # Handle agent lifecycle events
package main

import "github.com/worklog-dev/worklog/internal/cli"

func main() {
	cli.Execute()
}
