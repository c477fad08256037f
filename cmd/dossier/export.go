package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/export"
)

// runExport writes a run bundle JSON to path and a Mermaid flowchart of the
// source/citation/paragraph links alongside it.
func runExport(cfg *config.Config, runID, path string) int {
	if runID == "" {
		fmt.Fprintln(os.Stderr, "error: -export requires -run-id")
		return exitError
	}

	bundle, err := export.Collect(cfg.RunsDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	if err := export.WriteFile(bundle, path); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	mmdPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mmd"
	if err := os.WriteFile(mmdPath, []byte(export.GenerateMermaid(bundle)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Printf("exported run %s\n", runID)
	fmt.Printf("  bundle:  %s\n", path)
	fmt.Printf("  diagram: %s\n", mmdPath)
	return exitOK
}
