package mcptools

import (
	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/status"
)

// --- MCP Tool Input/Output Types ---
// These structs define the JSON schema for each MCP tool. The MCP Go SDK
// auto-generates JSON schemas from struct tags.

// RunResearchInput is the input for the run_research MCP tool.
type RunResearchInput struct {
	Topic   string `json:"topic,omitempty" jsonschema:"research topic to investigate. Optional when resuming by runId"`
	RunID   string `json:"runId,omitempty" jsonschema:"resume an existing run by id (default: derive a new id from the topic)"`
	Depth   string `json:"depth,omitempty" jsonschema:"research depth: brief, medium or deep (default: medium)"`
	Budget  int    `json:"budget,omitempty" jsonschema:"number of sources to gather (default: 10)"`
	Workers int    `json:"workers,omitempty" jsonschema:"parallel fetch width (default: 5)"`
	Lang    string `json:"lang,omitempty" jsonschema:"research language tag (default: en)"`
}

// RunResearchOutput is the result of the run_research MCP tool.
type RunResearchOutput struct {
	RunID      string   `json:"runId"`
	Status     string   `json:"status"` // "completed", "verification_failed", "clarification_needed" or "failed"
	Passed     bool     `json:"passed"`
	ReportPath string   `json:"reportPath,omitempty"`
	Questions  []string `json:"questions,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// GetRunStatusInput is the input for the get_run_status MCP tool.
type GetRunStatusInput struct {
	RunID string `json:"runId" jsonschema:"the run identifier to inspect"`
}

// GetRunStatusOutput is the result of the get_run_status MCP tool.
type GetRunStatusOutput struct {
	Run status.RunInfo `json:"run"`
}

// ListRunsInput is the input for the list_runs MCP tool.
type ListRunsInput struct{}

// ListRunsOutput is the result of the list_runs MCP tool.
type ListRunsOutput struct {
	Runs  []status.RunInfo `json:"runs"`
	Total int              `json:"total"`
}

// VerifyRunInput is the input for the verify_run MCP tool.
type VerifyRunInput struct {
	RunID string `json:"runId" jsonschema:"the run whose report should be re-verified"`
}

// VerifyRunOutput is the result of the verify_run MCP tool.
type VerifyRunOutput struct {
	RunID   string                      `json:"runId"`
	Passed  bool                        `json:"passed"`
	Verdict orchestrator.VerifySnapshot `json:"verdict"`
}
