package main

import (
	"fmt"
	"os"

	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/orchestrator"
)

// runVerify re-checks the stored artifacts of one run without executing the
// pipeline, refreshing the verdict snapshot on disk.
func runVerify(cfg *config.Config, runID string) int {
	if runID == "" {
		fmt.Fprintln(os.Stderr, "error: -verify-only requires -run-id")
		return exitError
	}

	snap, err := orchestrator.VerifyRun(cfg.RunsDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	if snap.Passed {
		fmt.Printf("Verification result for %s: PASSED\n", runID)
		fmt.Printf("  paragraphs: %d\n", snap.TotalParagraphs)
		fmt.Printf("  citations:  %d\n", snap.CitationsFound)
		return exitOK
	}

	fmt.Printf("Verification result for %s: FAILED\n", runID)
	fmt.Printf("  paragraphs without citation: %d of %d\n",
		snap.ParagraphWithoutCitationCount, snap.TotalParagraphs)
	if !snap.ParagraphLogPassed {
		fmt.Println("  paragraph log: missing or invalid cite ids")
	}
	fmt.Printf("  details: %s\n", orchestrator.VerificationSummaryPath(cfg.RunsDir, runID))
	return exitVerificationFailed
}
