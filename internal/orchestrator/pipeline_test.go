package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/pool"
	"github.com/averyhale/dossier/internal/research"
	"github.com/averyhale/dossier/internal/verify"
)

// A topic long and specific enough to pass the clarification gate.
const specificTopic = "quantum error correction codes"

// newTestPipeline builds a Pipeline over a temp runs directory with default
// offline collaborators, overridable via c.
func newTestPipeline(t *testing.T, c Collaborators) (*Pipeline, Config) {
	t.Helper()
	cfg := Config{
		RunsDir: t.TempDir(),
		Workers: 2,
		Budget:  3,
	}
	p, err := NewPipeline(cfg, zerolog.Nop(), c)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, cfg
}

// countingFetcher counts FetchContent calls, then delegates.
type countingFetcher struct {
	inner research.Fetcher
	calls atomic.Int64
}

func (f *countingFetcher) FetchContent(ctx context.Context, src research.Source) (research.Document, error) {
	f.calls.Add(1)
	return f.inner.FetchContent(ctx, src)
}

// failingFetcher fails for one specific source URL and delegates otherwise.
type failingFetcher struct {
	inner   research.Fetcher
	failURL string
}

func (f *failingFetcher) FetchContent(ctx context.Context, src research.Source) (research.Document, error) {
	if src.URL == f.failURL {
		return research.Document{}, errors.New("connection reset")
	}
	return f.inner.FetchContent(ctx, src)
}

// newlineTitleFetcher returns documents whose titles contain a line break.
// Key points derived from such titles split the rendered report into
// paragraphs that cannot all end with a citation, so the audit must fail.
type newlineTitleFetcher struct{}

func (newlineTitleFetcher) FetchContent(_ context.Context, src research.Source) (research.Document, error) {
	return research.Document{
		URL:       src.URL,
		Title:     strings.Replace(src.Title, " ", "\n", 1),
		Content:   "broken content",
		FetchedAt: time.Now().UTC(),
	}, nil
}

// TestPipeline_Run_FullPipeline drives a complete offline run and checks
// every artifact the run directory contract promises.
func TestPipeline_Run_FullPipeline(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{})

	run, err := p.Run(context.Background(), specificTopic, Options{RunID: "full-run"})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, "full-run", run.ID)
	assert.True(t, run.Passed)
	assert.Equal(t, StageCache, run.Stage)
	require.Len(t, run.Sources, 3)
	require.Len(t, run.Documents, 3)
	require.Len(t, run.Extractions, 3)
	require.Len(t, run.Paragraphs, 3)

	// Every contract artifact must exist.
	for _, path := range []string{
		StageLogPath(cfg.RunsDir, run.ID),
		PlanPath(cfg.RunsDir, run.ID),
		ParagraphLogPath(cfg.RunsDir, run.ID),
		ReportPath(cfg.RunsDir, run.ID),
		VerificationSummaryPath(cfg.RunsDir, run.ID),
		CitationsPath(cfg.RunsDir, run.ID),
		VerdictPath(cfg.RunsDir, run.ID),
	} {
		info, err := os.Stat(path)
		require.NoError(t, err, "artifact %s should exist", path)
		assert.Greater(t, info.Size(), int64(0), "artifact %s should not be empty", path)
	}

	// The rendered report must pass the citation check on its own.
	data, err := os.ReadFile(ReportPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Research Report"))
	verdict := verify.CheckReport(string(data))
	assert.True(t, verdict.Passed)
	assert.Equal(t, 3, verdict.TotalParagraphs)

	// Citations C001..C003, one per source, in order.
	var citations citationsRecord
	decodeJSONFile(t, CitationsPath(cfg.RunsDir, run.ID), &citations)
	assert.Equal(t, run.ID, citations.RunID)
	require.Len(t, citations.Citations, 3)
	for i, c := range citations.Citations {
		assert.Equal(t, fmt.Sprintf("C%03d", i+1), c.ID)
		assert.Equal(t, fmt.Sprintf("https://example.com/%d", i), c.URL)
		assert.NotEmpty(t, c.QuoteHash)
	}

	// The final verdict snapshot carries the audit result.
	snap, err := LoadVerifySnapshot(VerdictPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	assert.True(t, snap.Final())
	assert.True(t, snap.Passed)
	assert.True(t, snap.ParagraphEndCitationPassed)
	assert.True(t, snap.ParagraphLogPassed)
	assert.Equal(t, 3, snap.TotalParagraphs)
	assert.Equal(t, 3, snap.CitationsFound)
	assert.Equal(t, 3, snap.VerifiedClaimsCount)
	assert.Equal(t, 0, snap.ConflictsCount)

	// The plan record pins the effective settings for later resumes.
	rec, err := LoadPlanRecord(PlanPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Workers)
	assert.Equal(t, research.DepthMedium, rec.Depth)
	assert.Equal(t, 3, rec.Budget)
	assert.Equal(t, "en", rec.Lang)
	require.NotEmpty(t, rec.Plan.Queries)
	assert.Equal(t, specificTopic, rec.Plan.Queries[0])

	// The fetched documents are cached under the run id.
	blob, hit, err := p.store.Get(run.ID)
	require.NoError(t, err)
	require.True(t, hit, "fetch should have written the cache entry")
	var docs []research.Document
	require.NoError(t, json.Unmarshal(blob, &docs))
	assert.Len(t, docs, 3)
}

// TestPipeline_Run_StageLog verifies the pipeline log records a started and
// a completed line for each of the nine stages, in order, under a single
// attempt id.
func TestPipeline_Run_StageLog(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{})

	run, err := p.Run(context.Background(), specificTopic, Options{RunID: "log-run"})
	require.NoError(t, err)

	entries, err := ReadStageLog(StageLogPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	require.Len(t, entries, 18, "nine stages, two transitions each")

	stages := Stages()
	for i, stage := range stages {
		started := entries[2*i]
		completed := entries[2*i+1]
		assert.Equal(t, stage.String(), started.Stage)
		assert.Equal(t, StageStatusStarted, started.Status)
		assert.Equal(t, stage.String(), completed.Stage)
		assert.Equal(t, StageStatusCompleted, completed.Status)
	}

	attempt := entries[0].AttemptID
	require.NotEmpty(t, attempt)
	for _, e := range entries {
		assert.Equal(t, run.ID, e.RunID)
		assert.Equal(t, attempt, e.AttemptID)
		assert.False(t, e.Time.IsZero(), "log entries must be timestamped")
	}
}

// TestPipeline_Run_CacheSkipsRefetch runs the same run id twice and checks
// the second pass never reaches the fetcher: the first pass wrote the
// documents through to the cache as it fetched them.
func TestPipeline_Run_CacheSkipsRefetch(t *testing.T) {
	fetcher := &countingFetcher{inner: research.SimFetcher{}}
	p, cfg := newTestPipeline(t, Collaborators{Fetcher: fetcher})

	_, err := p.Run(context.Background(), specificTopic, Options{RunID: "cached-run"})
	require.NoError(t, err)
	require.EqualValues(t, 3, fetcher.calls.Load())

	run, err := p.Run(context.Background(), specificTopic, Options{RunID: "cached-run"})
	require.NoError(t, err)
	assert.True(t, run.Passed)
	assert.EqualValues(t, 3, fetcher.calls.Load(), "second pass should be served from cache")

	// The log keeps both attempts: 36 lines under two attempt ids.
	entries, err := ReadStageLog(StageLogPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	require.Len(t, entries, 36)
	attempts := make(map[string]bool)
	for _, e := range entries {
		attempts[e.AttemptID] = true
	}
	assert.Len(t, attempts, 2)
}

// TestPipeline_Run_ResumeRehydratesSettings resumes a run from a fresh
// Pipeline and checks the persisted settings win over the new Pipeline's
// defaults, while explicit options still override everything.
func TestPipeline_Run_ResumeRehydratesSettings(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{})

	_, err := p.Run(context.Background(), specificTopic, Options{
		RunID:   "resume-run",
		Workers: 3,
		Depth:   research.DepthBrief,
		Budget:  2,
		Lang:    "de",
	})
	require.NoError(t, err)

	// A second Pipeline with nothing but the runs dir: its own defaults
	// (workers 5, depth medium, budget 10) must NOT leak into the resume.
	p2, err := NewPipeline(Config{RunsDir: cfg.RunsDir}, zerolog.Nop(), Collaborators{})
	require.NoError(t, err)
	defer p2.Close()

	run, err := p2.Run(context.Background(), "", Options{RunID: "resume-run"})
	require.NoError(t, err)
	assert.Equal(t, 3, run.Workers)
	assert.Equal(t, research.DepthBrief, run.Depth)
	assert.Equal(t, 2, run.Budget)
	assert.Equal(t, "de", run.Lang)
	assert.Equal(t, specificTopic, run.Topic, "topic should rehydrate from the plan record")

	// An explicit option beats the rehydrated value.
	run, err = p2.Run(context.Background(), "", Options{RunID: "resume-run", Budget: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, run.Budget)
	require.Len(t, run.Documents, 4, "a larger budget invalidates the cached fetch")
}

// TestPipeline_Run_FetchFailure checks a failed fetch surfaces as a fetch
// StageError carrying the task index, and that no verdict is written.
func TestPipeline_Run_FetchFailure(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{
		Fetcher: &failingFetcher{inner: research.SimFetcher{}, failURL: "https://example.com/1"},
	})

	run, err := p.Run(context.Background(), specificTopic, Options{RunID: "fetch-fail"})
	require.Error(t, err)
	require.NotNil(t, run, "run state must come back even on failure")

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFetch, se.Stage)

	var te *pool.TaskError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Index)

	assert.False(t, run.Passed)
	_, statErr := os.Stat(VerdictPath(cfg.RunsDir, run.ID))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "verify.json should not exist before the verify stage")

	// The stage log records the fetch failure.
	entries, err := ReadStageLog(StageLogPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, StageFetch.String(), last.Stage)
	assert.Equal(t, StageStatusFailed, last.Status)
	require.NotNil(t, last.Details)
	assert.Contains(t, last.Details["error"], "https://example.com/1")
}

// TestPipeline_Run_AuditFailure forces uncitable paragraphs and checks the
// run fails with ErrVerificationFailed while every artifact, including the
// failing verdict, is still on disk.
func TestPipeline_Run_AuditFailure(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{Fetcher: newlineTitleFetcher{}})

	run, err := p.Run(context.Background(), specificTopic, Options{RunID: "audit-fail"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAudit, se.Stage)

	assert.False(t, run.Passed)
	require.NotNil(t, run.Verdict)
	assert.False(t, run.Verdict.Passed)
	assert.NotEmpty(t, run.Verdict.ParagraphsWithoutCitation)

	// A failed audit still leaves the report and the verdict behind.
	for _, path := range []string{
		ReportPath(cfg.RunsDir, run.ID),
		VerificationSummaryPath(cfg.RunsDir, run.ID),
		VerdictPath(cfg.RunsDir, run.ID),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, "artifact %s should exist after a failed audit", path)
	}

	snap, err := LoadVerifySnapshot(VerdictPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	assert.True(t, snap.Final())
	assert.False(t, snap.Passed)
	assert.False(t, snap.ParagraphEndCitationPassed)
	assert.Greater(t, snap.ParagraphWithoutCitationCount, 0)
	assert.True(t, snap.ParagraphLogPassed, "the structured log itself is well-formed")
}

// TestPipeline_Run_ClarificationGate checks an underspecified topic stops
// before the stage machine, persists a pending record with questions, and
// proceeds once the record is answered.
func TestPipeline_Run_ClarificationGate(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{})

	run, err := p.Run(context.Background(), "ml", Options{RunID: "vague-run"})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.True(t, errors.Is(err, ErrClarificationNeeded))

	var ce *ClarificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ml", ce.Topic)
	require.NotEmpty(t, ce.Questions)
	assert.LessOrEqual(t, len(ce.Questions), 3)

	// The pending record is on disk; the stage machine never started.
	rec, err := clarify.LoadRecord(ClarifyPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	assert.Equal(t, clarify.StatusPending, rec.Status)
	assert.Equal(t, "ml", rec.OriginalTopic)
	assert.Equal(t, ce.Questions, rec.Questions)
	assert.Empty(t, rec.Answers)
	_, statErr := os.Stat(StageLogPath(cfg.RunsDir, run.ID))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no stages should have run")

	// Answer the questions and resume: the run must now complete with the
	// resolved topic driving the plan.
	rec.Status = clarify.StatusClarified
	rec.Answers = []string{"transformer models for code generation"}
	require.NoError(t, rec.Save(ClarifyPath(cfg.RunsDir, run.ID)))

	run, err = p.Run(context.Background(), "ml", Options{RunID: "vague-run"})
	require.NoError(t, err)
	assert.True(t, run.Passed)
	assert.Equal(t, "transformer models for code generation", run.Topic)

	planRec, err := LoadPlanRecord(PlanPath(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	require.NotEmpty(t, planRec.Plan.Queries)
	assert.Equal(t, "transformer models for code generation", planRec.Plan.Queries[0])
}

// TestPipeline_Run_ContextCanceled checks a canceled context stops the run
// before the first stage executes.
func TestPipeline_Run_ContextCanceled(t *testing.T) {
	p, _ := newTestPipeline(t, Collaborators{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, specificTopic, Options{RunID: "canceled-run"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageIntake, se.Stage)
}

// TestPipeline_Run_DerivedRunID checks the run id falls out of the topic
// when none is pinned.
func TestPipeline_Run_DerivedRunID(t *testing.T) {
	p, cfg := newTestPipeline(t, Collaborators{})

	run, err := p.Run(context.Background(), specificTopic, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(run.ID, "quantumerrorcorrec_"), "got %q", run.ID)

	info, err := os.Stat(RunDir(cfg.RunsDir, run.ID))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// TestPipeline_ProgressEvents subscribes to the progress channel, runs the
// pipeline, and verifies a working and a complete event arrive per stage.
func TestPipeline_ProgressEvents(t *testing.T) {
	p, _ := newTestPipeline(t, Collaborators{})

	progressCh := p.Progress()
	require.NotNil(t, progressCh)

	_, err := p.Run(context.Background(), specificTopic, Options{RunID: "progress-run"})
	require.NoError(t, err)

	var events []ProgressEvent
	timeout := time.After(2 * time.Second)
drain:
	for len(events) < 18 {
		select {
		case ev, ok := <-progressCh:
			if !ok {
				break drain
			}
			events = append(events, ev)
		case <-timeout:
			break drain
		}
	}
	require.Len(t, events, 18, "working and complete per stage")

	for i, stage := range Stages() {
		assert.Equal(t, stage, events[2*i].Stage)
		assert.Equal(t, ProgressWorking, events[2*i].Status)
		assert.Equal(t, stage, events[2*i+1].Stage)
		assert.Equal(t, ProgressComplete, events[2*i+1].Status)
	}
}

// TestPipeline_Close verifies Close() closes the progress channel.
func TestPipeline_Close(t *testing.T) {
	cfg := Config{RunsDir: t.TempDir()}
	p, err := NewPipeline(cfg, zerolog.Nop(), Collaborators{})
	require.NoError(t, err)

	progressCh := p.Progress()
	p.Close()

	select {
	case _, ok := <-progressCh:
		assert.False(t, ok, "progress channel should be closed after Close()")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress channel to close")
	}
}

// decodeJSONFile reads path into v, failing the test on any error.
func decodeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
