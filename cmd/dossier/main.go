// Command dossier runs the multi-stage research pipeline: it takes a topic,
// plans queries, gathers and extracts sources, writes a cited report and
// verifies every paragraph against the citation registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/observability"
	"github.com/averyhale/dossier/internal/orchestrator"
)

// cliFlags collects every command line option in one place.
type cliFlags struct {
	RunID          string
	Depth          string
	Budget         int
	Workers        int
	Lang           string
	RunsDir        string
	NonInteractive bool
	VerifyOnly     bool
	Status         bool
	Export         string
	ServeMCP       bool
	ServeHTTP      string
	ConfigPath     string
	LogLevel       string
	Quiet          bool
	Version        bool
}

// version is overridden with -ldflags at release build time.
var version = "dev"

// Exit codes. Callers branch on these, so the three failure modes must stay
// distinguishable.
const (
	exitOK                  = 0
	exitError               = 1
	exitClarificationNeeded = 2
	exitVerificationFailed  = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var flags cliFlags

	fs := flag.NewFlagSet("dossier", flag.ContinueOnError)
	fs.StringVar(&flags.RunID, "run-id", "", "reuse or resume a run id")
	fs.StringVar(&flags.Depth, "depth", "medium", "research depth: brief, medium or deep")
	fs.IntVar(&flags.Budget, "budget", 10, "maximum number of sources to gather")
	fs.IntVar(&flags.Workers, "workers", 5, "parallel fetch workers")
	fs.StringVar(&flags.Lang, "lang", "en", "report language tag")
	fs.StringVar(&flags.RunsDir, "runs-dir", "./runs", "run artifact root directory")
	fs.BoolVar(&flags.NonInteractive, "non-interactive", false, "fail instead of prompting for clarification")
	fs.BoolVar(&flags.VerifyOnly, "verify-only", false, "re-run verification for -run-id without the pipeline")
	fs.BoolVar(&flags.Status, "status", false, "list runs, or show one run with -run-id")
	fs.StringVar(&flags.Export, "export", "", "write a run bundle JSON to the given path (requires -run-id)")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "serve MCP tools on stdio")
	fs.StringVar(&flags.ServeHTTP, "serve-http", "", "serve HTTP (MCP, REST, metrics) on this address")
	fs.StringVar(&flags.ConfigPath, "config", "", "optional YAML config file")
	fs.StringVar(&flags.LogLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	fs.BoolVar(&flags.Quiet, "quiet", false, "suppress console progress output")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	if flags.Version {
		fmt.Println(version)
		return exitOK
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlagOverrides(cfg, set, &flags)

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.ServeMCP:
		return runServeMCP(ctx, cfg, logger)
	case set["serve-http"]:
		return runServeHTTP(ctx, cfg, flags.ServeHTTP, logger)
	case flags.Status:
		return runStatus(ctx, cfg, flags.RunID)
	case flags.VerifyOnly:
		return runVerify(cfg, flags.RunID)
	case flags.Export != "":
		return runExport(cfg, flags.RunID, flags.Export)
	}

	topic := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if topic == "" && flags.RunID == "" {
		fmt.Fprintln(os.Stderr, "usage: dossier [flags] <topic>  (or -run-id to resume; -h for flags)")
		return exitError
	}

	return runResearch(ctx, cfg, runOptions(set, &flags), topic, flags.Quiet, logger)
}

// runOptions picks up only the settings the user asked for on this
// invocation. On a resumed run these beat the rehydrated plan record;
// everything left zero falls back to that record or the config defaults.
func runOptions(set map[string]bool, flags *cliFlags) orchestrator.Options {
	opts := orchestrator.Options{RunID: flags.RunID}
	if set["workers"] {
		opts.Workers = flags.Workers
	}
	if set["depth"] {
		opts.Depth = flags.Depth
	}
	if set["budget"] {
		opts.Budget = flags.Budget
	}
	if set["lang"] {
		opts.Lang = flags.Lang
	}
	return opts
}

// applyFlagOverrides layers explicitly set flags over file and environment
// configuration. Flags left at their defaults do not mask config values.
func applyFlagOverrides(cfg *config.Config, set map[string]bool, flags *cliFlags) {
	if set["depth"] {
		cfg.Depth = flags.Depth
	}
	if set["budget"] {
		cfg.Budget = flags.Budget
	}
	if set["workers"] {
		cfg.Workers = flags.Workers
	}
	if set["lang"] {
		cfg.Lang = flags.Lang
	}
	if set["runs-dir"] {
		cfg.RunsDir = flags.RunsDir
	}
	if set["non-interactive"] {
		cfg.NonInteractive = flags.NonInteractive
	}
	if set["log-level"] {
		cfg.Logging.Level = flags.LogLevel
	}
}
