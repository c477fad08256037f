package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhale/dossier/internal/clarify"
	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/orchestrator"
)

const specificTopic = "quantum error correction codes"

// baseArgs keeps test runs quiet, offline and fast.
func baseArgs(runsDir string, extra ...string) []string {
	args := []string{"-runs-dir", runsDir, "-quiet", "-log-level", "error", "-budget", "2", "-workers", "2"}
	return append(args, extra...)
}

func TestRun_Version(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"-version"}))
}

func TestRun_Help(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"-h"}))
}

func TestRun_UnknownFlag(t *testing.T) {
	assert.Equal(t, exitError, run([]string{"-no-such-flag"}))
}

func TestRun_UsageWithoutTopic(t *testing.T) {
	assert.Equal(t, exitError, run(baseArgs(t.TempDir())))
}

func TestRun_FullPipeline(t *testing.T) {
	runsDir := t.TempDir()

	code := run(baseArgs(runsDir, "-run-id", "cli-run", specificTopic))

	assert.Equal(t, exitOK, code)
	assert.FileExists(t, orchestrator.ReportPath(runsDir, "cli-run"))
	assert.FileExists(t, orchestrator.VerdictPath(runsDir, "cli-run"))
}

func TestRun_TopicFromMultipleArgs(t *testing.T) {
	runsDir := t.TempDir()

	code := run(baseArgs(runsDir, "-run-id", "multi", "quantum", "error", "correction", "codes"))

	assert.Equal(t, exitOK, code)
	rec, err := orchestrator.LoadPlanRecord(orchestrator.PlanPath(runsDir, "multi"))
	require.NoError(t, err)
	require.NotEmpty(t, rec.Plan.Queries)
	assert.Equal(t, specificTopic, rec.Plan.Queries[0])
}

func TestRun_NonInteractiveClarification(t *testing.T) {
	runsDir := t.TempDir()

	code := run(baseArgs(runsDir, "-non-interactive", "-run-id", "vague", "ml"))

	assert.Equal(t, exitClarificationNeeded, code)
	rec, err := clarify.LoadRecord(orchestrator.ClarifyPath(runsDir, "vague"))
	require.NoError(t, err)
	assert.Equal(t, clarify.StatusPending, rec.Status)
	assert.NotEmpty(t, rec.Questions)
}

func TestRun_InteractiveClarification(t *testing.T) {
	runsDir := t.TempDir()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })
	go func() {
		_, _ = w.WriteString("transformer models for code generation\n\n\n")
		_ = w.Close()
	}()

	code := run(baseArgs(runsDir, "-run-id", "answered", "ml"))

	assert.Equal(t, exitOK, code)
	rec, err := clarify.LoadRecord(orchestrator.ClarifyPath(runsDir, "answered"))
	require.NoError(t, err)
	assert.Equal(t, clarify.StatusClarified, rec.Status)
	assert.Equal(t, []string{"transformer models for code generation"}, rec.Answers)
	assert.FileExists(t, orchestrator.ReportPath(runsDir, "answered"))
}

func TestRun_InteractiveClarificationWithoutAnswers(t *testing.T) {
	runsDir := t.TempDir()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })
	_ = w.Close()

	code := run(baseArgs(runsDir, "-run-id", "silent", "ml"))

	assert.Equal(t, exitClarificationNeeded, code)
	rec, err := clarify.LoadRecord(orchestrator.ClarifyPath(runsDir, "silent"))
	require.NoError(t, err)
	assert.Equal(t, clarify.StatusFailed, rec.Status)
	assert.Equal(t, "no clarification provided", rec.FailureReason)
}

func TestRun_VerifyOnly(t *testing.T) {
	runsDir := t.TempDir()
	require.Equal(t, exitOK, run(baseArgs(runsDir, "-run-id", "audit-me", specificTopic)))

	code := run(baseArgs(runsDir, "-verify-only", "-run-id", "audit-me"))
	assert.Equal(t, exitOK, code)

	// An uncited paragraph appended to the report must flip the verdict.
	reportPath := orchestrator.ReportPath(runsDir, "audit-me")
	f, err := os.OpenFile(reportPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\nAn editorial aside nobody sourced.\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	code = run(baseArgs(runsDir, "-verify-only", "-run-id", "audit-me"))
	assert.Equal(t, exitVerificationFailed, code)
}

func TestRun_VerifyOnlyRequiresRunID(t *testing.T) {
	assert.Equal(t, exitError, run(baseArgs(t.TempDir(), "-verify-only")))
}

func TestRun_VerifyOnlyMissingRun(t *testing.T) {
	assert.Equal(t, exitError, run(baseArgs(t.TempDir(), "-verify-only", "-run-id", "ghost")))
}

func TestRun_Export(t *testing.T) {
	runsDir := t.TempDir()
	require.Equal(t, exitOK, run(baseArgs(runsDir, "-run-id", "exp-run", specificTopic)))
	bundlePath := filepath.Join(t.TempDir(), "bundle.json")

	code := run(baseArgs(runsDir, "-export", bundlePath, "-run-id", "exp-run"))

	assert.Equal(t, exitOK, code)
	assert.FileExists(t, bundlePath)
	assert.FileExists(t, filepath.Join(filepath.Dir(bundlePath), "bundle.mmd"))
}

func TestRun_ExportRequiresRunID(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bundle.json")
	assert.Equal(t, exitError, run(baseArgs(t.TempDir(), "-export", out)))
}

func TestRun_Status(t *testing.T) {
	runsDir := t.TempDir()
	require.Equal(t, exitOK, run(baseArgs(runsDir, "-run-id", "seen", specificTopic)))

	assert.Equal(t, exitOK, run(baseArgs(runsDir, "-status")))
	assert.Equal(t, exitOK, run(baseArgs(runsDir, "-status", "-run-id", "seen")))
	assert.Equal(t, exitError, run(baseArgs(runsDir, "-status", "-run-id", "ghost")))
}

func TestRun_StatusEmptyDir(t *testing.T) {
	assert.Equal(t, exitOK, run(baseArgs(t.TempDir(), "-status")))
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &config.Config{RunsDir: "./runs", Workers: 5, Depth: "medium", Budget: 10, Lang: "en"}
	cfg.Logging.Level = "info"
	flags := &cliFlags{Depth: "deep", Budget: 3, Workers: 2, Lang: "de", RunsDir: "/elsewhere", LogLevel: "debug"}

	applyFlagOverrides(cfg, map[string]bool{"depth": true, "budget": true}, flags)

	assert.Equal(t, "deep", cfg.Depth)
	assert.Equal(t, 3, cfg.Budget)
	assert.Equal(t, 5, cfg.Workers, "unset flags keep config values")
	assert.Equal(t, "en", cfg.Lang)
	assert.Equal(t, "./runs", cfg.RunsDir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestRunOptions(t *testing.T) {
	flags := &cliFlags{RunID: "r1", Workers: 9, Depth: "brief", Budget: 4, Lang: "fr"}

	opts := runOptions(map[string]bool{"workers": true, "lang": true}, flags)

	assert.Equal(t, "r1", opts.RunID)
	assert.Equal(t, 9, opts.Workers)
	assert.Equal(t, "fr", opts.Lang)
	assert.Zero(t, opts.Budget, "unset flags stay zero so resume rehydration wins")
	assert.Empty(t, opts.Depth)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-te", truncate("exactly-te", 10))
	assert.Equal(t, "far too...", truncate("far too long a topic", 10))
}
