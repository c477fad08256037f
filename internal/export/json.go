// Package export assembles a run's artifacts into portable forms: a single
// JSON bundle carrying everything a reviewer needs, and a Mermaid diagram of
// which paragraphs lean on which sources.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/averyhale/dossier/internal/citation"
	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/report"
	"github.com/averyhale/dossier/internal/status"
)

// Bundle is the top-level JSON export for one run.
type Bundle struct {
	BundleID    string                       `json:"bundle_id"`
	GeneratedAt string                       `json:"generated_at"`
	RunID       string                       `json:"run_id"`
	Topic       string                       `json:"topic,omitempty"`
	Status      string                       `json:"status"`
	Plan        *orchestrator.PlanRecord     `json:"plan,omitempty"`
	Citations   []citation.Citation          `json:"citations,omitempty"`
	Verdict     *orchestrator.VerifySnapshot `json:"verdict,omitempty"`
	Report      string                       `json:"report,omitempty"`
	Paragraphs  []report.Paragraph           `json:"paragraphs,omitempty"`
	Stages      []status.StageInfo           `json:"stages"`
}

// Collect gathers every artifact of a run into a Bundle. Artifacts a run
// never produced are simply absent; only a missing run directory is an
// error.
func Collect(runsDir, runID string) (*Bundle, error) {
	info, err := status.Collect(runsDir, runID)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	b := &Bundle{
		BundleID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunID:       runID,
		Topic:       info.Topic,
		Status:      info.Status,
		Stages:      info.Stages,
	}

	if rec, err := orchestrator.LoadPlanRecord(orchestrator.PlanPath(runsDir, runID)); err == nil {
		b.Plan = &rec
	}
	if snap, err := orchestrator.LoadVerifySnapshot(orchestrator.VerdictPath(runsDir, runID)); err == nil && snap.Final() {
		b.Verdict = &snap
	}
	if data, err := os.ReadFile(orchestrator.ReportPath(runsDir, runID)); err == nil {
		b.Report = string(data)
	}
	if f, err := os.Open(orchestrator.ParagraphLogPath(runsDir, runID)); err == nil {
		paras, decodeErr := report.DecodeLog(f)
		f.Close()
		if decodeErr == nil {
			b.Paragraphs = paras
		}
	}

	var citRec struct {
		Citations []citation.Citation `json:"citations"`
	}
	if data, err := os.ReadFile(orchestrator.CitationsPath(runsDir, runID)); err == nil {
		if json.Unmarshal(data, &citRec) == nil {
			b.Citations = citRec.Citations
		}
	}

	return b, nil
}

// WriteFile persists the bundle as indented JSON.
func WriteFile(b *Bundle, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode bundle: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write bundle: %w", err)
	}
	return nil
}
