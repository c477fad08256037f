// Package status inspects run directories without executing anything: it
// reports how far each run got, whether its audit passed, and which runs are
// stalled waiting on clarification.
package status

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/pool"
)

// Run lifecycle states as derived from on-disk artifacts. A crashed run is
// indistinguishable from one still executing, so both read as incomplete.
const (
	StatusCompleted             = "completed"
	StatusFailed                = "failed"
	StatusIncomplete            = "incomplete"
	StatusAwaitingClarification = "awaiting_clarification"
	StatusEmpty                 = "empty"
)

// RunInfo summarizes one run directory.
type RunInfo struct {
	RunID     string      `json:"run_id"`
	Topic     string      `json:"topic,omitempty"`
	Status    string      `json:"status"`
	LastStage string      `json:"last_stage,omitempty"`
	Passed    *bool       `json:"passed,omitempty"`
	HasReport bool        `json:"has_report"`
	UpdatedAt time.Time   `json:"updated_at"`
	Stages    []StageInfo `json:"stages"`
}

// StageInfo is one row of the per-stage history: the last status a stage
// reached and how many times it was started across attempts.
type StageInfo struct {
	Stage    int    `json:"stage"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
}

// Collect builds the status of a single run from its directory. A missing
// run directory is an error matching fs.ErrNotExist.
func Collect(runsDir, runID string) (RunInfo, error) {
	dir := orchestrator.RunDir(runsDir, runID)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return RunInfo{}, fmt.Errorf("status: run %s: %w", runID, err)
	}

	info := RunInfo{RunID: runID, UpdatedAt: dirInfo.ModTime()}

	var clar *clarify.Record
	if rec, err := clarify.LoadRecord(orchestrator.ClarifyPath(runsDir, runID)); err == nil {
		clar = &rec
		info.Topic = rec.OriginalTopic
		if resolved := rec.ResolvedTopic(); resolved != "" {
			info.Topic = resolved
		}
	}
	if rec, err := orchestrator.LoadPlanRecord(orchestrator.PlanPath(runsDir, runID)); err == nil {
		if len(rec.Plan.Queries) > 0 {
			info.Topic = rec.Plan.Queries[0]
		}
	}

	entries, _ := orchestrator.ReadStageLog(orchestrator.StageLogPath(runsDir, runID))
	info.Status, info.LastStage = deriveStatus(entries, clar)
	info.Stages = SummarizeStages(entries)

	if snap, err := orchestrator.LoadVerifySnapshot(orchestrator.VerdictPath(runsDir, runID)); err == nil && snap.Final() {
		passed := snap.Passed
		info.Passed = &passed
	}

	if _, err := os.Stat(orchestrator.ReportPath(runsDir, runID)); err == nil {
		info.HasReport = true
	}

	info.UpdatedAt = latestMTime(info.UpdatedAt,
		orchestrator.StageLogPath(runsDir, runID),
		orchestrator.ReportPath(runsDir, runID),
		orchestrator.VerdictPath(runsDir, runID),
		orchestrator.ClarifyPath(runsDir, runID),
	)
	return info, nil
}

// List collects the status of every run under runsDir, fanning the per-run
// work over the worker pool. Runs deleted between the directory scan and
// their collection are skipped. Results come back newest first.
func List(ctx context.Context, p *pool.Pool, runsDir string) ([]RunInfo, error) {
	dirEntries, err := os.ReadDir(runsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status: scan runs dir: %w", err)
	}

	var ids []string
	for _, e := range dirEntries {
		if !e.IsDir() || e.Name() == ".cache" {
			continue
		}
		ids = append(ids, e.Name())
	}

	infos, err := pool.MapUnordered(ctx, p, ids, func(_ context.Context, id string) (RunInfo, error) {
		info, err := Collect(runsDir, id)
		if errors.Is(err, fs.ErrNotExist) {
			return RunInfo{}, nil
		}
		return info, err
	})
	if err != nil {
		return nil, err
	}

	out := infos[:0]
	for _, info := range infos {
		if info.RunID != "" {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

// SummarizeStages folds the transition log into one StageInfo per pipeline
// stage; stages the run never reached read as pending.
func SummarizeStages(entries []orchestrator.StageLogEntry) []StageInfo {
	lastStatus := make(map[string]string)
	attempts := make(map[string]int)
	for _, e := range entries {
		if e.Status == orchestrator.StageStatusStarted {
			attempts[e.Stage]++
		}
		lastStatus[e.Stage] = e.Status
	}

	stages := orchestrator.Stages()
	out := make([]StageInfo, 0, len(stages))
	for _, stage := range stages {
		name := stage.String()
		s, ok := lastStatus[name]
		if !ok {
			s = "pending"
		}
		out = append(out, StageInfo{
			Stage:    int(stage),
			Name:     name,
			Status:   s,
			Attempts: attempts[name],
		})
	}
	return out
}

// deriveStatus reads the run's lifecycle off the stage log, falling back to
// the clarification record when no stage ever ran.
func deriveStatus(entries []orchestrator.StageLogEntry, clar *clarify.Record) (status, lastStage string) {
	if len(entries) == 0 {
		if clar != nil && clar.Status == clarify.StatusPending {
			return StatusAwaitingClarification, ""
		}
		return StatusEmpty, ""
	}

	last := entries[len(entries)-1]
	switch {
	case last.Status == orchestrator.StageStatusFailed:
		return StatusFailed, last.Stage
	case last.Status == orchestrator.StageStatusCompleted && !last.Succeeded():
		// A stage that completed without success aborted the run; in
		// practice that is a failed audit.
		return StatusFailed, last.Stage
	case last.Stage == orchestrator.StageCache.String() && last.Status == orchestrator.StageStatusCompleted:
		return StatusCompleted, last.Stage
	default:
		return StatusIncomplete, last.Stage
	}
}

// latestMTime returns the newest modification time among base and the named
// files, ignoring files that do not exist.
func latestMTime(base time.Time, paths ...string) time.Time {
	latest := base
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}
