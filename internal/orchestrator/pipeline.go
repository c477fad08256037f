// Package orchestrator drives the fixed nine-stage research pipeline:
// intake, plan, harvest, fetch, extract, verify, write, audit, cache. Each
// stage reads the run state its predecessors left behind and persists the
// artifacts the contract requires, so a failed run can resume from its
// run directory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/averyhale/dossier/internal/cache"
	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/observability"
	"github.com/averyhale/dossier/internal/pool"
	"github.com/averyhale/dossier/internal/research"
)

// Compile-time interface check.
var _ Orchestrator = (*Pipeline)(nil)

// Collaborators are the injectable components a Pipeline drives. Nil fields
// fall back to the defaults: heuristic clarifier, simulated acquisition, a
// filesystem cache under the runs directory, and no metrics.
type Collaborators struct {
	Clarifier Clarifier
	Harvester research.Harvester
	Fetcher   research.Fetcher
	Store     cache.Store
	Metrics   *observability.Metrics
}

// Pipeline executes research runs. A Pipeline may run many runs
// sequentially but never concurrently: the worker pool is reconfigured per
// run, so concurrent callers must construct one Pipeline each.
type Pipeline struct {
	cfg       Config
	clarifier Clarifier
	harvester research.Harvester
	fetcher   research.Fetcher
	store     cache.Store
	pool      *pool.Pool
	progress  *ProgressReporter
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewPipeline wires a Pipeline from cfg and collaborators.
func NewPipeline(cfg Config, logger zerolog.Logger, c Collaborators) (*Pipeline, error) {
	cfg = cfg.WithDefaults()

	if c.Clarifier == nil {
		c.Clarifier = clarify.Heuristic{}
	}
	if c.Harvester == nil {
		c.Harvester = research.SimHarvester{}
	}
	if c.Fetcher == nil {
		c.Fetcher = research.SimFetcher{}
	}
	if c.Store == nil {
		store, err := cache.NewFSStore(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: open cache store: %w", err)
		}
		c.Store = store
	}

	return &Pipeline{
		cfg:       cfg,
		clarifier: c.Clarifier,
		harvester: c.Harvester,
		fetcher:   c.Fetcher,
		store:     c.Store,
		pool:      pool.New(cfg.Workers),
		progress:  NewProgressReporter(),
		logger:    logger,
		metrics:   c.Metrics,
	}, nil
}

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan ProgressEvent {
	return p.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when
// the pipeline is no longer needed.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

// Run executes the full pipeline for topic.
//
// When the run directory already exists the run resumes: settings rehydrate
// from the persisted plan record, explicit non-zero opts override them, and
// the fetch stage reuses cached content, so a finished acquisition is never
// repeated. The returned Run reflects whatever state was reached even when
// an error is returned.
//
// An underspecified topic does not start the stage machine at all: Run
// persists a pending clarification record and returns a ClarificationError
// carrying the questions.
func (p *Pipeline) Run(ctx context.Context, topic string, opts Options) (*Run, error) {
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID(topic, time.Now())
	}

	var (
		run     *Run
		err     error
		resumed bool
	)
	if _, statErr := os.Stat(RunDir(p.cfg.RunsDir, runID)); statErr == nil {
		run, err = loadRun(p.cfg.RunsDir, runID, topic)
		resumed = true
	} else {
		run, err = newRun(p.cfg.RunsDir, runID, topic)
	}
	if err != nil {
		return nil, err
	}

	p.applyOptions(run, opts)
	p.pool.SetMaxWorkers(run.Workers)

	// Clarification gate. A previously clarified run passes through; an
	// underspecified topic stops here with questions on record.
	if run.Clarification == nil || run.Clarification.Status != clarify.StatusClarified {
		if p.clarifier.NeedsClarification(run.Topic) {
			questions := p.clarifier.GenerateQuestions(run.Topic)
			run.Clarification = &clarify.Record{
				Status:        clarify.StatusPending,
				OriginalTopic: run.Topic,
				Questions:     questions,
				Answers:       []string{},
			}
			if err := run.Clarification.Save(ClarifyPath(p.cfg.RunsDir, run.ID)); err != nil {
				return run, err
			}
			return run, &ClarificationError{Topic: run.Topic, Questions: questions}
		}
	}

	attemptID := uuid.NewString()
	stageLog, err := newStageLogger(p.cfg.RunsDir, run, attemptID)
	if err != nil {
		return run, err
	}
	defer stageLog.Close()

	logger := observability.WithRun(p.logger, run.ID, attemptID)
	logger.Info().
		Str("topic", run.Topic).
		Int("workers", run.Workers).
		Str("depth", run.Depth).
		Int("budget", run.Budget).
		Str("lang", run.Lang).
		Bool("resumed", resumed).
		Msg("pipeline starting")

	if p.metrics != nil {
		p.metrics.RunsStarted.Inc()
	}
	runStart := time.Now()

	for _, stage := range Stages() {
		if err := ctx.Err(); err != nil {
			p.observeRunEnd(runStart, false)
			return run, &StageError{Stage: stage, Err: err}
		}
		ok, err := p.runStage(ctx, stageLog, logger, run, stage)
		if err != nil {
			p.observeRunEnd(runStart, false)
			return run, &StageError{Stage: stage, Err: err}
		}
		if !ok {
			p.observeRunEnd(runStart, false)
			if stage == StageAudit {
				return run, &StageError{Stage: stage, Err: ErrVerificationFailed}
			}
			return run, &StageError{Stage: stage, Err: errors.New("stage reported failure")}
		}
	}

	p.observeRunEnd(runStart, true)
	logger.Info().Bool("passed", run.Passed).Msg("pipeline complete")
	return run, nil
}

// applyOptions settles the run's effective settings: whatever rehydration
// left at zero falls back to the Pipeline defaults, then explicit overrides
// win.
func (p *Pipeline) applyOptions(run *Run, opts Options) {
	if run.Workers < 1 {
		run.Workers = p.cfg.Workers
	}
	if run.Depth == "" {
		run.Depth = p.cfg.Depth
	}
	if run.Budget < 1 {
		run.Budget = p.cfg.Budget
	}
	if run.Lang == "" {
		run.Lang = p.cfg.Lang
	}

	if opts.Workers > 0 {
		run.Workers = opts.Workers
	}
	if opts.Depth != "" {
		run.Depth = opts.Depth
	}
	if opts.Budget > 0 {
		run.Budget = opts.Budget
	}
	if opts.Lang != "" {
		run.Lang = opts.Lang
	}
}

// runStage executes one stage with logging, progress and metrics around it.
// The bool result is the stage's own verdict; false without an error means
// the stage ran cleanly but rejected the run (only the audit does this).
func (p *Pipeline) runStage(ctx context.Context, stageLog *stageLogger, logger zerolog.Logger, run *Run, stage Stage) (bool, error) {
	run.Stage = stage
	stageLog.log(stage, StageStatusStarted, nil)
	p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressWorking})
	start := time.Now()

	ok, err := p.execute(ctx, logger, run, stage)

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
	}

	if err != nil {
		stageLog.log(stage, StageStatusFailed, map[string]any{"error": err.Error()})
		p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressFailed, Message: err.Error()})
		if p.metrics != nil {
			p.metrics.StagesTotal.WithLabelValues(stage.String(), StageStatusFailed).Inc()
		}
		logger.Error().Err(err).Str("stage", stage.String()).Dur("elapsed", elapsed).Msg("stage failed")
		return false, err
	}

	stageLog.log(stage, StageStatusCompleted, map[string]any{"success": ok})
	if p.metrics != nil {
		p.metrics.StagesTotal.WithLabelValues(stage.String(), StageStatusCompleted).Inc()
	}
	if ok {
		p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressComplete})
	} else {
		p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressFailed, Message: "rejected"})
	}
	logger.Debug().Str("stage", stage.String()).Bool("success", ok).Dur("elapsed", elapsed).Msg("stage finished")
	return ok, nil
}

// execute dispatches to the stage implementation. The stage set is closed,
// so dispatch is a single exhaustive switch rather than a handler table.
func (p *Pipeline) execute(ctx context.Context, logger zerolog.Logger, run *Run, stage Stage) (bool, error) {
	switch stage {
	case StageIntake:
		return p.stageIntake(run)
	case StagePlan:
		return p.stagePlan(run)
	case StageHarvest:
		return p.stageHarvest(ctx, run)
	case StageFetch:
		return p.stageFetch(ctx, logger, run)
	case StageExtract:
		return p.stageExtract(run)
	case StageVerify:
		return p.stageVerify(run)
	case StageWrite:
		return p.stageWrite(run)
	case StageAudit:
		return p.stageAudit(logger, run)
	case StageCache:
		return p.stageCache(run)
	default:
		return false, fmt.Errorf("unknown stage %d", int(stage))
	}
}

func (p *Pipeline) observeRunEnd(start time.Time, completed bool) {
	if p.metrics == nil {
		return
	}
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if completed {
		p.metrics.RunsCompleted.Inc()
	} else {
		p.metrics.RunsFailed.Inc()
	}
}
