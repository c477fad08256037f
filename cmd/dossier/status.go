package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/pool"
	"github.com/averyhale/dossier/internal/status"
)

// runStatus lists all runs, or details one run when runID is given.
func runStatus(ctx context.Context, cfg *config.Config, runID string) int {
	if runID != "" {
		return printRunDetail(cfg.RunsDir, runID)
	}
	return printRunList(ctx, cfg)
}

func printRunDetail(runsDir, runID string) int {
	info, err := status.Collect(runsDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Printf("Run: %s\n", info.RunID)
	if info.Topic != "" {
		fmt.Printf("  topic:    %s\n", info.Topic)
	}
	fmt.Printf("  status:   %s\n", info.Status)
	if info.Passed != nil {
		fmt.Printf("  verified: %s\n", passedLabel(info.Passed))
	}
	fmt.Printf("  report:   %v\n", info.HasReport)
	fmt.Printf("  updated:  %s\n", info.UpdatedAt.Format(time.RFC3339))

	fmt.Println()
	for _, st := range info.Stages {
		attempts := ""
		if st.Attempts > 1 {
			attempts = fmt.Sprintf(" (x%d)", st.Attempts)
		}
		fmt.Printf("  %d. %-8s [%s]%s\n", st.Stage, st.Name, st.Status, attempts)
	}
	return exitOK
}

func printRunList(ctx context.Context, cfg *config.Config) int {
	runs, err := status.List(ctx, pool.New(cfg.Workers), cfg.RunsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		fmt.Println("Run 'dossier <topic>' to start one.")
		return exitOK
	}

	fmt.Printf("%-28s %-23s %-8s %s\n", "RUN", "STATUS", "VERIFIED", "TOPIC")
	for _, r := range runs {
		fmt.Printf("%-28s %-23s %-8s %s\n", r.RunID, r.Status, passedLabel(r.Passed), truncate(r.Topic, 48))
	}
	return exitOK
}

func passedLabel(passed *bool) string {
	switch {
	case passed == nil:
		return "-"
	case *passed:
		return "yes"
	default:
		return "no"
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
