package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewResearchMCPServer creates an MCP server with the 4 research tools
// registered: run_research, get_run_status, list_runs and verify_run.
func NewResearchMCPServer(svc *ResearchService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "dossier",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_research",
		Description: "Execute the full research pipeline for a topic: plan, gather sources, extract claims, render a cited report and audit it. Resumable via runId; an underspecified topic returns clarification questions instead of running.",
	}, svc.RunResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_run_status",
		Description: "Get the status of one research run: how far it got, whether its audit passed, and whether it is waiting on clarification.",
	}, svc.GetRunStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List all research runs with their status, newest first.",
	}, svc.ListRuns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "verify_run",
		Description: "Re-run the citation audit over an existing run's report and paragraph log, and rewrite its verification artifacts.",
	}, svc.VerifyRunTool)

	return server
}

// RunStdio serves MCP on stdio transport, blocking until stdin closes or the
// context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// StreamableHandler wraps the MCP server for mounting on an HTTP router.
func StreamableHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}
