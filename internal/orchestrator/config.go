package orchestrator

import (
	"path/filepath"

	"github.com/averyhale/dossier/internal/research"
)

// Config holds the fixed wiring for a Pipeline, shared by every run it
// executes.
type Config struct {
	// RunsDir is the directory that holds one subdirectory per run.
	RunsDir string

	// CacheDir is where the fetch cache lives. Defaults to a .cache
	// directory inside RunsDir.
	CacheDir string

	// Workers is the default fan-out width for runs that do not choose one.
	Workers int

	// Depth is the default research depth profile name.
	Depth string

	// Budget is the default number of sources to gather.
	Budget int

	// Lang is the default research language tag.
	Lang string
}

// WithDefaults fills unset fields with the standard defaults.
func (c Config) WithDefaults() Config {
	if c.RunsDir == "" {
		c.RunsDir = "./runs"
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.RunsDir, ".cache")
	}
	if c.Workers < 1 {
		c.Workers = 5
	}
	if c.Depth == "" {
		c.Depth = research.DefaultDepth
	}
	if c.Budget < 1 {
		c.Budget = 10
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	return c
}

// Options are the per-run knobs. Zero-valued fields fall back to the values
// rehydrated from a previous attempt of the same run, then to the Pipeline's
// Config defaults, so resuming a run without repeating its flags keeps the
// original settings.
type Options struct {
	// RunID pins the run identifier. Empty means derive one from the topic.
	RunID string

	// Workers overrides fan-out width when positive.
	Workers int

	// Depth overrides the depth profile when non-empty.
	Depth string

	// Budget overrides the source budget when positive.
	Budget int

	// Lang overrides the language tag when non-empty.
	Lang string
}
