// Package mcptools exposes the research pipeline over the Model Context
// Protocol so agent frontends drive runs through structured tools instead of
// shelling out to the CLI.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/pool"
	"github.com/averyhale/dossier/internal/status"
)

// ResearchService handles MCP tool calls. Tool handlers may run
// concurrently, so each run_research call builds its own Pipeline; only the
// read-only status scans share the service's pool.
type ResearchService struct {
	cfg    orchestrator.Config
	collab orchestrator.Collaborators
	logger zerolog.Logger
	pool   *pool.Pool
}

// NewResearchService creates a ResearchService. Collaborators follow the
// same nil-means-default rules as orchestrator.NewPipeline.
func NewResearchService(cfg orchestrator.Config, logger zerolog.Logger, collab orchestrator.Collaborators) *ResearchService {
	cfg = cfg.WithDefaults()
	return &ResearchService{
		cfg:    cfg,
		collab: collab,
		logger: logger,
		pool:   pool.New(cfg.Workers),
	}
}

// RunResearch executes the full pipeline for a topic. Pipeline outcomes
// (verification failure, clarification questions) are reported in the
// output, not as tool errors; only infrastructure faults error out.
func (s *ResearchService) RunResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunResearchInput,
) (*mcp.CallToolResult, RunResearchOutput, error) {
	if strings.TrimSpace(input.Topic) == "" && input.RunID == "" {
		return nil, RunResearchOutput{Status: "failed", Message: "topic is required"},
			fmt.Errorf("topic is required when no runId is given")
	}

	p, err := orchestrator.NewPipeline(s.cfg, s.logger, s.collab)
	if err != nil {
		return nil, RunResearchOutput{Status: "failed", Message: err.Error()}, err
	}
	defer p.Close()

	run, err := p.Run(ctx, input.Topic, orchestrator.Options{
		RunID:   input.RunID,
		Depth:   input.Depth,
		Budget:  input.Budget,
		Workers: input.Workers,
		Lang:    input.Lang,
	})

	out := RunResearchOutput{}
	if run != nil {
		out.RunID = run.ID
	}

	switch {
	case err == nil:
		out.Status = "completed"
		out.Passed = true
		out.ReportPath = orchestrator.ReportPath(s.cfg.RunsDir, run.ID)
	case errors.Is(err, orchestrator.ErrClarificationNeeded):
		var ce *orchestrator.ClarificationError
		if errors.As(err, &ce) {
			out.Questions = ce.Questions
		}
		out.Status = "clarification_needed"
		out.Message = "refine the topic using the questions and call run_research again with the same runId"
	case errors.Is(err, orchestrator.ErrVerificationFailed):
		out.Status = "verification_failed"
		out.ReportPath = orchestrator.ReportPath(s.cfg.RunsDir, run.ID)
		out.Message = err.Error()
	default:
		out.Status = "failed"
		out.Message = err.Error()
	}
	return nil, out, nil
}

// GetRunStatus reports the state of one run directory.
func (s *ResearchService) GetRunStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetRunStatusInput,
) (*mcp.CallToolResult, GetRunStatusOutput, error) {
	if input.RunID == "" {
		return nil, GetRunStatusOutput{}, fmt.Errorf("runId is required")
	}
	info, err := status.Collect(s.cfg.RunsDir, input.RunID)
	if err != nil {
		return nil, GetRunStatusOutput{}, err
	}
	return nil, GetRunStatusOutput{Run: info}, nil
}

// ListRuns scans the runs directory, newest first.
func (s *ResearchService) ListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	runs, err := status.List(ctx, s.pool, s.cfg.RunsDir)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	return nil, ListRunsOutput{Runs: runs, Total: len(runs)}, nil
}

// VerifyRunTool re-runs the audit checks over a run's artifacts.
func (s *ResearchService) VerifyRunTool(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input VerifyRunInput,
) (*mcp.CallToolResult, VerifyRunOutput, error) {
	if input.RunID == "" {
		return nil, VerifyRunOutput{}, fmt.Errorf("runId is required")
	}
	snap, err := orchestrator.VerifyRun(s.cfg.RunsDir, input.RunID)
	if err != nil {
		return nil, VerifyRunOutput{}, err
	}
	return nil, VerifyRunOutput{RunID: input.RunID, Passed: snap.Passed, Verdict: snap}, nil
}
