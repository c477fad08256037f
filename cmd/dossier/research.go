package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/research"
)

// runResearch executes or resumes one pipeline run and maps its outcome to
// an exit code. opts carries only explicitly requested settings: flag values
// are already merged into cfg, so repeating them in opts matters only for
// resumed runs, where an explicit flag must beat the rehydrated plan record.
func runResearch(ctx context.Context, cfg *config.Config, opts orchestrator.Options, topic string, quiet bool, logger zerolog.Logger) int {
	p, err := orchestrator.NewPipeline(pipelineConfig(cfg), logger, collaborators(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	var printer sync.WaitGroup
	if !quiet {
		printer.Add(1)
		go func() {
			defer printer.Done()
			for ev := range p.Progress() {
				fmt.Fprintln(os.Stderr, orchestrator.FormatProgress(ev))
			}
		}()
	}
	finish := func() {
		p.Close()
		printer.Wait()
	}

	run, err := p.Run(ctx, topic, opts)

	var cerr *orchestrator.ClarificationError
	if errors.As(err, &cerr) {
		if cfg.NonInteractive {
			finish()
			printQuestions(cerr)
			return exitClarificationNeeded
		}
		ok, code := promptAndRecordAnswers(cfg.RunsDir, run.ID, cerr)
		if !ok {
			finish()
			return code
		}
		opts.RunID = run.ID
		run, err = p.Run(ctx, topic, opts)
	}

	finish()

	switch {
	case err == nil:
		printRunSummary(cfg.RunsDir, run)
		return exitOK
	case errors.Is(err, orchestrator.ErrVerificationFailed):
		fmt.Fprintf(os.Stderr, "verification failed for run %s\n", run.ID)
		fmt.Fprintf(os.Stderr, "  report:  %s\n", orchestrator.ReportPath(cfg.RunsDir, run.ID))
		fmt.Fprintf(os.Stderr, "  details: %s\n", orchestrator.VerificationSummaryPath(cfg.RunsDir, run.ID))
		return exitVerificationFailed
	case errors.Is(err, orchestrator.ErrClarificationNeeded):
		return exitClarificationNeeded
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
}

// pipelineConfig maps the app config onto the orchestrator's wiring.
func pipelineConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		RunsDir: cfg.RunsDir,
		Workers: cfg.Workers,
		Depth:   cfg.Depth,
		Budget:  cfg.Budget,
		Lang:    cfg.Lang,
	}
}

// collaborators selects the fetcher per fetch.mode; everything else uses the
// pipeline's offline defaults.
func collaborators(cfg *config.Config) orchestrator.Collaborators {
	c := orchestrator.Collaborators{}
	if cfg.Fetch.Mode == "http" {
		c.Fetcher = research.NewHTTPFetcher(research.HTTPFetcherConfig{
			Timeout:           cfg.Fetch.Timeout,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
			UserAgent:         cfg.Fetch.UserAgent,
			MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
		})
	}
	return c
}

// printQuestions lists the clarification questions for a caller that cannot
// be prompted.
func printQuestions(cerr *orchestrator.ClarificationError) {
	fmt.Fprintf(os.Stderr, "topic %q needs clarification:\n", cerr.Topic)
	for i, q := range cerr.Questions {
		fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, q)
	}
	fmt.Fprintln(os.Stderr, "re-run interactively, or answer via the clarify record and resume with -run-id")
}

// promptAndRecordAnswers runs the interactive clarification exchange and
// persists the outcome. It returns false with the exit code to use when no
// usable answers were collected.
func promptAndRecordAnswers(runsDir, runID string, cerr *orchestrator.ClarificationError) (bool, int) {
	fmt.Printf("The topic %q needs clarification.\n\n", cerr.Topic)

	answers := make([]string, 0, len(cerr.Questions))
	scanner := bufio.NewScanner(os.Stdin)
	for _, q := range cerr.Questions {
		fmt.Printf("%s\n> ", q)
		if !scanner.Scan() {
			break
		}
		if a := strings.TrimSpace(scanner.Text()); a != "" {
			answers = append(answers, a)
		}
	}

	path := orchestrator.ClarifyPath(runsDir, runID)
	rec, err := clarify.LoadRecord(path)
	if err != nil {
		rec = clarify.Record{OriginalTopic: cerr.Topic, Questions: cerr.Questions, Answers: []string{}}
	}

	if len(answers) == 0 {
		rec.Status = clarify.StatusFailed
		rec.FailureReason = "no clarification provided"
		if err := rec.Save(path); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false, exitError
		}
		fmt.Fprintln(os.Stderr, "\nno clarification provided")
		return false, exitClarificationNeeded
	}

	rec.Status = clarify.StatusClarified
	rec.Answers = answers
	rec.FailureReason = ""
	if err := rec.Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return false, exitError
	}
	fmt.Printf("\nclarified topic: %s\n\n", rec.ResolvedTopic())
	return true, exitOK
}

// printRunSummary reports where the artifacts of a passing run landed.
func printRunSummary(runsDir string, run *orchestrator.Run) {
	fmt.Println(orchestrator.FormatRunHeader(run.ID, run.Topic))
	fmt.Printf("  report:       %s\n", orchestrator.ReportPath(runsDir, run.ID))
	if run.Verdict != nil {
		fmt.Printf("  verification: passed (%d paragraphs, %d citations)\n",
			run.Verdict.TotalParagraphs, run.Verdict.CitationsFound)
	}
}
