package orchestrator

import (
	"fmt"
	"os"

	"github.com/averyhale/dossier/internal/verify"
)

// VerifyRun re-runs the audit checks against an existing run's artifacts
// without executing the pipeline, and rewrites evidence/verify.json and
// final/verification.md to match what is on disk now. The run must have
// reached the write stage; without a rendered report there is nothing to
// verify.
func VerifyRun(runsDir, runID string) (VerifySnapshot, error) {
	reportPath := ReportPath(runsDir, runID)
	if _, err := os.Stat(reportPath); err != nil {
		return VerifySnapshot{}, fmt.Errorf("orchestrator: run %s has no report: %w", runID, err)
	}

	verdict, err := verify.CheckReportFile(reportPath)
	if err != nil {
		return VerifySnapshot{}, err
	}
	logPassed, _ := verify.CheckParagraphLogFile(ParagraphLogPath(runsDir, runID))
	passed := verdict.Passed && logPassed

	snap := auditSnapshot(verdict, logPassed, passed)
	if err := writeJSONFile(VerdictPath(runsDir, runID), snap); err != nil {
		return VerifySnapshot{}, err
	}
	if err := writeTextFile(VerificationSummaryPath(runsDir, runID), verificationSummary(snap)); err != nil {
		return VerifySnapshot{}, err
	}
	return snap, nil
}
