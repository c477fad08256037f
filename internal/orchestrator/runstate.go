package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/averyhale/dossier/internal/citation"
	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/report"
	"github.com/averyhale/dossier/internal/research"
	"github.com/averyhale/dossier/internal/verify"
)

// ---------------------------------------------------------------------------
// Run directory layout
// ---------------------------------------------------------------------------

// Path helpers for the fixed layout of one run directory:
//
//	<runsDir>/<runID>/
//	  clarify.json             clarification exchange, when one happened
//	  logs/pipeline.jsonl      append-only stage transition log
//	  logs/plan.json           persisted plan and effective settings
//	  drafts/paragraphs.jsonl  structured paragraph log
//	  final/report.md          rendered report
//	  final/verification.md    human-readable verification summary
//	  evidence/citations.json  registered citations
//	  evidence/verify.json     machine-readable verification verdict

func RunDir(runsDir, runID string) string {
	return filepath.Join(runsDir, runID)
}

func ClarifyPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "clarify.json")
}

func StageLogPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "logs", "pipeline.jsonl")
}

func PlanPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "logs", "plan.json")
}

func ParagraphLogPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "drafts", "paragraphs.jsonl")
}

func ReportPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "final", "report.md")
}

func VerificationSummaryPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "final", "verification.md")
}

func CitationsPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "evidence", "citations.json")
}

func VerdictPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, "evidence", "verify.json")
}

// ---------------------------------------------------------------------------
// Run state
// ---------------------------------------------------------------------------

// Run holds the evolving state of one pipeline execution. Stage outputs
// accumulate on it as the machine advances; artifacts on disk mirror the
// subset that must survive a restart.
type Run struct {
	ID    string
	Topic string

	// Stage is the last stage entered.
	Stage Stage

	// Effective settings after defaults, rehydration and overrides.
	Workers int
	Depth   string
	Budget  int
	Lang    string

	Plan        research.Plan
	Sources     []research.Source
	Documents   []research.Document
	Extractions []research.Extraction
	Paragraphs  []report.Paragraph
	Registry    *citation.Registry

	// Verdict and Passed are set by the audit stage.
	Verdict *verify.Verdict
	Passed  bool

	// Clarification is the recorded exchange, when the topic needed one.
	Clarification *clarify.Record
}

// NewRunID derives a run identifier from the topic and a timestamp:
// the topic's first 20 characters reduced to letters, digits, '_' and '-',
// then an underscore and the UTC time, e.g. "quantumerrorcorrec_20260823_141530".
// A topic with no usable characters yields the "no_topic" prefix.
func NewRunID(topic string, now time.Time) string {
	var b strings.Builder
	count := 0
	for _, r := range topic {
		if count == 20 {
			break
		}
		count++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	prefix := b.String()
	if prefix == "" {
		prefix = "no_topic"
	}
	return prefix + "_" + now.UTC().Format("20060102_150405")
}

// newRun creates the run directory skeleton and an initialized Run.
func newRun(runsDir, runID, topic string) (*Run, error) {
	dir := RunDir(runsDir, runID)
	for _, sub := range []string{"logs", "drafts", "final", "evidence"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("orchestrator: create run dir: %w", err)
		}
	}
	return &Run{
		ID:       runID,
		Topic:    topic,
		Registry: citation.NewRegistry(),
	}, nil
}

// loadRun rehydrates a Run from a previous attempt's records: the plan
// record restores the effective settings (and the topic, via the first
// query) and clarify.json restores the clarification exchange. Missing
// records are not errors — a run that failed before the plan stage simply
// has nothing to rehydrate.
func loadRun(runsDir, runID, topic string) (*Run, error) {
	run := &Run{
		ID:       runID,
		Topic:    topic,
		Registry: citation.NewRegistry(),
	}

	if rec, err := LoadPlanRecord(PlanPath(runsDir, runID)); err == nil {
		run.Workers = rec.Workers
		run.Depth = rec.Depth
		run.Budget = rec.Budget
		run.Lang = rec.Lang
		run.Plan = rec.Plan
		if run.Topic == "" && len(rec.Plan.Queries) > 0 {
			run.Topic = rec.Plan.Queries[0]
		}
	}

	if rec, err := clarify.LoadRecord(ClarifyPath(runsDir, runID)); err == nil {
		run.Clarification = &rec
		if run.Topic == "" {
			run.Topic = rec.ResolvedTopic()
		}
	}

	return run, nil
}

// ---------------------------------------------------------------------------
// Persisted records
// ---------------------------------------------------------------------------

// PlanRecord is the persisted logs/plan.json document. Alongside the plan it
// captures the effective run settings so a resumed attempt repeats them.
type PlanRecord struct {
	Workers int           `json:"workers"`
	Depth   string        `json:"depth"`
	Budget  int           `json:"budget"`
	Lang    string        `json:"lang"`
	Plan    research.Plan `json:"plan"`
}

// LoadPlanRecord reads a plan record written by a previous attempt.
func LoadPlanRecord(path string) (PlanRecord, error) {
	var rec PlanRecord
	if err := readJSONFile(path, &rec); err != nil {
		return PlanRecord{}, err
	}
	return rec, nil
}

// VerifySnapshot is the persisted evidence/verify.json document. The verify
// stage writes a provisional one; the audit overwrites it with the full
// verdict.
type VerifySnapshot struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`

	// Provisional fields, written by the verify stage.
	ParagraphsCount int  `json:"paragraphs_count,omitempty"`
	Verified        bool `json:"verified,omitempty"`

	// Final fields, written by the audit.
	VerifiedClaimsCount           int  `json:"verified_claims_count"`
	SingleSourceClaimsCount       int  `json:"single_source_claims_count"`
	ConflictsCount                int  `json:"conflicts_count"`
	TotalParagraphs               int  `json:"total_paragraphs"`
	ParagraphWithoutCitationCount int  `json:"paragraph_without_citation_count"`
	ParagraphEndCitationPassed    bool `json:"paragraph_end_citation_passed"`
	ParagraphLogPassed            bool `json:"paragraphs_jsonl_cite_ids_passed"`
	CitationsFound                int  `json:"citations_found"`
	Passed                        bool `json:"passed"`
}

// Final reports whether the snapshot carries an audit verdict rather than
// the verify stage's provisional marker.
func (s VerifySnapshot) Final() bool {
	return s.Stage == "audit"
}

// LoadVerifySnapshot reads the verdict snapshot of a run.
func LoadVerifySnapshot(path string) (VerifySnapshot, error) {
	var snap VerifySnapshot
	if err := readJSONFile(path, &snap); err != nil {
		return VerifySnapshot{}, err
	}
	return snap, nil
}

// auditSnapshot assembles the final snapshot from the audit's inputs.
func auditSnapshot(v verify.Verdict, logPassed, passed bool) VerifySnapshot {
	return VerifySnapshot{
		Stage:                         "audit",
		Status:                        "completed",
		VerifiedClaimsCount:           v.VerifiedClaimsCount,
		SingleSourceClaimsCount:       v.SingleSourceClaimsCount,
		ConflictsCount:                v.ConflictsCount,
		TotalParagraphs:               v.TotalParagraphs,
		ParagraphWithoutCitationCount: len(v.ParagraphsWithoutCitation),
		ParagraphEndCitationPassed:    len(v.ParagraphsWithoutCitation) == 0,
		ParagraphLogPassed:            logPassed,
		CitationsFound:                v.CitationsFound,
		Passed:                        passed,
	}
}

// verificationSummary renders final/verification.md.
func verificationSummary(snap VerifySnapshot) string {
	var b strings.Builder
	b.WriteString("# Verification Report\n\n")
	fmt.Fprintf(&b, "- paragraph_without_citation_count: %d\n", snap.ParagraphWithoutCitationCount)
	fmt.Fprintf(&b, "- total_paragraphs: %d\n", snap.TotalParagraphs)
	fmt.Fprintf(&b, "- citations_found: %d\n", snap.CitationsFound)
	fmt.Fprintf(&b, "- verified_claims_count: %d\n", snap.VerifiedClaimsCount)
	fmt.Fprintf(&b, "- single_source_claims_count: %d\n", snap.SingleSourceClaimsCount)
	fmt.Fprintf(&b, "- conflicts_count: %d\n", snap.ConflictsCount)
	fmt.Fprintf(&b, "- passed: %t\n", snap.Passed)
	return b.String()
}

// ---------------------------------------------------------------------------
// File helpers
// ---------------------------------------------------------------------------

// writeJSONFile writes v as indented JSON, creating parent directories.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("orchestrator: create dir for %s: %w", filepath.Base(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("orchestrator: read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("orchestrator: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeTextFile writes a text artifact, creating parent directories.
func writeTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("orchestrator: create dir for %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
