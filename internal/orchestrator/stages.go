package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/averyhale/dossier/internal/cache"
	"github.com/averyhale/dossier/internal/citation"
	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/pool"
	"github.com/averyhale/dossier/internal/report"
	"github.com/averyhale/dossier/internal/research"
	"github.com/averyhale/dossier/internal/verify"
)

// citationsRecord is the persisted shape of evidence/citations.json.
type citationsRecord struct {
	RunID     string              `json:"run_id"`
	Citations []citation.Citation `json:"citations"`
}

// provisionalVerify is the verify.json shape written by the verify stage.
// The audit stage later replaces it with the full VerifySnapshot.
type provisionalVerify struct {
	Stage           string `json:"stage"`
	Status          string `json:"status"`
	ParagraphsCount int    `json:"paragraphs_count"`
	Verified        bool   `json:"verified"`
}

// ---------------------------------------------------------------------------
// Stage implementations
// ---------------------------------------------------------------------------

// stageIntake normalizes the topic and adopts the clarified topic when a
// completed clarification exchange is on record.
func (p *Pipeline) stageIntake(run *Run) (bool, error) {
	run.Topic = strings.TrimSpace(run.Topic)
	if run.Clarification != nil && run.Clarification.Status == clarify.StatusClarified {
		if resolved := strings.TrimSpace(run.Clarification.ResolvedTopic()); resolved != "" {
			run.Topic = resolved
		}
		if err := run.Clarification.Save(ClarifyPath(p.cfg.RunsDir, run.ID)); err != nil {
			return false, err
		}
	}
	if run.Topic == "" {
		return false, errors.New("empty topic")
	}
	return true, nil
}

// stagePlan derives the research strategy from the topic and persists it
// together with the effective run settings. A rehydrated plan is kept as is
// so a resumed run replays the strategy of the original attempt.
func (p *Pipeline) stagePlan(run *Run) (bool, error) {
	profile, err := research.ProfileFor(run.Depth)
	if err != nil {
		return false, err
	}
	if len(run.Plan.Queries) == 0 {
		run.Plan = research.BuildPlan(run.Topic, run.Depth, run.Budget, profile)
	}
	rec := PlanRecord{
		Workers: run.Workers,
		Depth:   run.Depth,
		Budget:  run.Budget,
		Lang:    run.Lang,
		Plan:    run.Plan,
	}
	if err := writeJSONFile(PlanPath(p.cfg.RunsDir, run.ID), rec); err != nil {
		return false, err
	}
	return true, nil
}

// stageHarvest collects candidate sources for the plan.
func (p *Pipeline) stageHarvest(ctx context.Context, run *Run) (bool, error) {
	sources, err := p.harvester.Harvest(ctx, run.Plan, run.Budget)
	if err != nil {
		return false, fmt.Errorf("harvest: %w", err)
	}
	if len(sources) == 0 {
		return false, errors.New("harvest: no sources found")
	}
	run.Sources = sources
	return true, nil
}

// stageFetch retrieves source content, fanning the fetches out over the
// worker pool. A valid cache entry for this run satisfies the stage without
// touching the fetcher; a corrupt or mismatched entry is treated as a miss.
func (p *Pipeline) stageFetch(ctx context.Context, logger zerolog.Logger, run *Run) (bool, error) {
	if docs, ok := p.cachedDocuments(logger, run); ok {
		run.Documents = docs
		return true, nil
	}

	docs, err := pool.Map(ctx, p.pool, run.Sources, func(ctx context.Context, src research.Source) (research.Document, error) {
		doc, err := p.fetcher.FetchContent(ctx, src)
		if err != nil {
			return research.Document{}, fmt.Errorf("fetch %s: %w", src.URL, err)
		}
		return doc, nil
	})
	if err != nil {
		return false, err
	}
	run.Documents = docs

	// Write-through immediately so an attempt that fails in a later stage
	// still resumes without refetching.
	if err := p.writeCacheEntry(run); err != nil {
		return false, err
	}
	return true, nil
}

// writeCacheEntry seals the fetched documents under the run id.
func (p *Pipeline) writeCacheEntry(run *Run) error {
	blob, err := json.Marshal(run.Documents)
	if err != nil {
		return fmt.Errorf("encode documents for cache: %w", err)
	}
	if err := p.store.Put(run.ID, blob); err != nil {
		return fmt.Errorf("cache run %s: %w", run.ID, err)
	}
	return nil
}

// cachedDocuments reads this run's cache entry. Every failure mode short of
// a healthy hit reports a miss; only decode trouble is worth a log line.
func (p *Pipeline) cachedDocuments(logger zerolog.Logger, run *Run) ([]research.Document, bool) {
	blob, hit, err := p.store.Get(run.ID)
	if err != nil {
		if errors.Is(err, cache.ErrCorrupt) {
			logger.Warn().Err(err).Msg("cache entry corrupt, refetching")
		} else {
			logger.Warn().Err(err).Msg("cache read failed, refetching")
		}
		p.observeCache(false)
		return nil, false
	}
	if !hit {
		p.observeCache(false)
		return nil, false
	}

	var docs []research.Document
	if err := json.Unmarshal(blob, &docs); err != nil {
		logger.Warn().Err(err).Msg("cache entry undecodable, refetching")
		p.observeCache(false)
		return nil, false
	}
	if len(docs) != len(run.Sources) {
		logger.Warn().
			Int("cached", len(docs)).
			Int("sources", len(run.Sources)).
			Msg("cache entry does not cover current sources, refetching")
		p.observeCache(false)
		return nil, false
	}
	p.observeCache(true)
	return docs, true
}

func (p *Pipeline) observeCache(hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.CacheHits.Inc()
	} else {
		p.metrics.CacheMisses.Inc()
	}
}

// stageExtract distills key points and quotes from the fetched documents
// and registers one citation per document, renumbered from C001.
func (p *Pipeline) stageExtract(run *Run) (bool, error) {
	profile, err := research.ProfileFor(run.Depth)
	if err != nil {
		return false, err
	}
	run.Extractions = research.Extract(run.Documents, profile)

	run.Registry.Reset()
	for i, ex := range run.Extractions {
		quote := ""
		if len(ex.Quotes) > 0 {
			quote = ex.Quotes[0]
		}
		id := fmt.Sprintf("C%03d", i+1)
		if _, err := run.Registry.Register(id, ex.URL, ex.Title, ex.URL, quote); err != nil {
			return false, fmt.Errorf("register citation for %s: %w", ex.URL, err)
		}
	}
	return true, nil
}

// stageVerify assembles the cited draft paragraphs, one per extraction,
// writes the paragraph log and records a provisional verification snapshot.
// The authoritative verdict is the audit stage's.
func (p *Pipeline) stageVerify(run *Run) (bool, error) {
	paras := make([]report.Paragraph, 0, len(run.Extractions))
	for i, ex := range run.Extractions {
		text := strings.TrimSpace(strings.Join(ex.KeyPoints, " "))
		if text == "" {
			continue
		}
		paras = append(paras, report.Paragraph{
			Text:    text,
			CiteIDs: []string{fmt.Sprintf("C%03d", i+1)},
		})
	}
	run.Paragraphs = paras

	f, err := os.Create(ParagraphLogPath(p.cfg.RunsDir, run.ID))
	if err != nil {
		return false, fmt.Errorf("create paragraph log: %w", err)
	}
	if err := report.EncodeLog(f, paras); err != nil {
		f.Close()
		return false, fmt.Errorf("write paragraph log: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close paragraph log: %w", err)
	}

	snap := provisionalVerify{
		Stage:           StageVerify.String(),
		Status:          StageStatusCompleted,
		ParagraphsCount: len(paras),
		Verified:        true,
	}
	if err := writeJSONFile(VerdictPath(p.cfg.RunsDir, run.ID), snap); err != nil {
		return false, err
	}
	return true, nil
}

// stageWrite renders the final report and persists the citation registry.
func (p *Pipeline) stageWrite(run *Run) (bool, error) {
	text := report.Render(run.Paragraphs)
	if err := writeTextFile(ReportPath(p.cfg.RunsDir, run.ID), text); err != nil {
		return false, err
	}

	rec := citationsRecord{RunID: run.ID, Citations: run.Registry.All()}
	if err := writeJSONFile(CitationsPath(p.cfg.RunsDir, run.ID), rec); err != nil {
		return false, err
	}
	return true, nil
}

// stageAudit re-checks the rendered report and the paragraph log from disk
// and writes the final verification snapshot and human-readable summary.
// Audit is the one stage whose clean "false" outcome fails the run.
func (p *Pipeline) stageAudit(logger zerolog.Logger, run *Run) (bool, error) {
	verdict, err := verify.CheckReportFile(ReportPath(p.cfg.RunsDir, run.ID))
	if err != nil {
		return false, err
	}
	logPassed, problems := verify.CheckParagraphLogFile(ParagraphLogPath(p.cfg.RunsDir, run.ID))

	passed := verdict.Passed && logPassed
	run.Verdict = &verdict
	run.Passed = passed

	snap := auditSnapshot(verdict, logPassed, passed)
	if err := writeJSONFile(VerdictPath(p.cfg.RunsDir, run.ID), snap); err != nil {
		return false, err
	}
	if err := writeTextFile(VerificationSummaryPath(p.cfg.RunsDir, run.ID), verificationSummary(snap)); err != nil {
		return false, err
	}

	if p.metrics != nil {
		if passed {
			p.metrics.VerificationsPassed.Inc()
		} else {
			p.metrics.VerificationsFailed.Inc()
		}
	}
	if !passed {
		logger.Warn().
			Strs("issues", verdict.Issues).
			Strs("paragraph_log_problems", problems).
			Ints("paragraphs_without_citation", verdict.ParagraphsWithoutCitation).
			Msg("verification failed")
	}
	return passed, nil
}

// stageCache confirms the acquisition cache is sealed for this run. The
// fetch stage already wrote the entry, whether it fetched or was served
// from an earlier attempt.
func (p *Pipeline) stageCache(run *Run) (bool, error) {
	if !p.store.Has(run.ID) {
		return false, fmt.Errorf("cache entry for run %s missing", run.ID)
	}
	return true, nil
}
