package export

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhale/dossier/internal/orchestrator"
	"github.com/averyhale/dossier/internal/status"
)

// completedRun executes one offline pipeline run and returns the runs dir.
func completedRun(t *testing.T, runID string) string {
	t.Helper()
	runsDir := t.TempDir()
	p, err := orchestrator.NewPipeline(orchestrator.Config{RunsDir: runsDir, Budget: 2}, zerolog.Nop(), orchestrator.Collaborators{})
	require.NoError(t, err)
	defer p.Close()
	_, err = p.Run(context.Background(), "quantum error correction codes", orchestrator.Options{RunID: runID})
	require.NoError(t, err)
	return runsDir
}

func TestCollect_CompletedRunBundle(t *testing.T) {
	runsDir := completedRun(t, "bundle-run")

	b, err := Collect(runsDir, "bundle-run")
	require.NoError(t, err)

	assert.NotEmpty(t, b.BundleID)
	assert.NotEmpty(t, b.GeneratedAt)
	assert.Equal(t, "bundle-run", b.RunID)
	assert.Equal(t, "quantum error correction codes", b.Topic)
	assert.Equal(t, status.StatusCompleted, b.Status)

	require.NotNil(t, b.Plan)
	assert.Equal(t, 2, b.Plan.Budget)

	require.NotNil(t, b.Verdict)
	assert.True(t, b.Verdict.Passed)

	assert.True(t, strings.HasPrefix(b.Report, "# Research Report"))
	require.Len(t, b.Paragraphs, 2)
	require.Len(t, b.Citations, 2)
	assert.Equal(t, "C001", b.Citations[0].ID)

	// Every stage completed exactly once.
	require.Len(t, b.Stages, 9)
	for i, st := range b.Stages {
		assert.Equal(t, i, st.Stage)
		assert.Equal(t, "completed", st.Status)
		assert.Equal(t, 1, st.Attempts)
	}
}

func TestCollect_PartialRunBundle(t *testing.T) {
	runsDir := t.TempDir()
	// A bare run directory with no artifacts at all.
	require.NoError(t, os.MkdirAll(orchestrator.RunDir(runsDir, "bare-run"), 0o755))

	b, err := Collect(runsDir, "bare-run")
	require.NoError(t, err)

	assert.Equal(t, status.StatusEmpty, b.Status)
	assert.Nil(t, b.Plan)
	assert.Nil(t, b.Verdict)
	assert.Empty(t, b.Report)
	assert.Empty(t, b.Citations)
	require.Len(t, b.Stages, 9)
	for _, st := range b.Stages {
		assert.Equal(t, "pending", st.Status)
		assert.Zero(t, st.Attempts)
	}
}

func TestCollect_MissingRun(t *testing.T) {
	_, err := Collect(t.TempDir(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteFile_RoundTrip(t *testing.T) {
	runsDir := completedRun(t, "file-run")
	b, err := Collect(runsDir, "file-run")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "exports", "file-run.json")
	require.NoError(t, WriteFile(b, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Bundle
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b.RunID, decoded.RunID)
	assert.Equal(t, b.BundleID, decoded.BundleID)
	assert.Len(t, decoded.Citations, 2)
}

func TestGenerateMermaid(t *testing.T) {
	runsDir := completedRun(t, "diagram-run")
	b, err := Collect(runsDir, "diagram-run")
	require.NoError(t, err)

	got := GenerateMermaid(b)

	assert.True(t, strings.HasPrefix(got, "graph TD\n"))
	assert.Contains(t, got, "subgraph N0[\"Sources\"]")
	assert.Contains(t, got, "C001: Source 0")
	assert.Contains(t, got, "P1:")

	// Each paragraph points at its citation.
	for i := range b.Paragraphs {
		require.NotEmpty(t, b.Paragraphs[i].CiteIDs)
	}
	assert.Contains(t, got, " --> ")

	// Node ids are unique: a line per declared node, no redefinitions.
	seen := make(map[string]int)
	for _, line := range strings.Split(got, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.IndexByte(line, '['); idx > 0 && !strings.HasPrefix(line, "subgraph") {
			seen[line[:idx]]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "node %s declared %d times", id, n)
	}
}

func TestGenerateMermaid_EmptyBundle(t *testing.T) {
	got := GenerateMermaid(&Bundle{RunID: "empty"})
	assert.Equal(t, "graph TD\n", got)
}

func TestMermaidLabel(t *testing.T) {
	assert.Equal(t, "a 'b' (c)", mermaidLabel("a \"b\" [c]\n"))
	assert.Equal(t, "two  lines", mermaidLabel("two \nlines"))
}
