package orchestrator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Stage transition statuses as they appear in logs/pipeline.jsonl.
const (
	StageStatusStarted   = "started"
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
)

// stageLogger appends structured stage-transition records to the run's
// pipeline log. The file is opened append-only: earlier attempts' records
// are never rewritten, so the log is the full history of the run.
type stageLogger struct {
	file   *os.File
	logger zerolog.Logger
}

func newStageLogger(runsDir string, run *Run, attemptID string) (*stageLogger, error) {
	path := StageLogPath(runsDir, run.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open stage log: %w", err)
	}
	logger := zerolog.New(f).With().
		Timestamp().
		Str("run_id", run.ID).
		Str("attempt_id", attemptID).
		Logger()
	return &stageLogger{file: f, logger: logger}, nil
}

// log appends one transition record. Records are written unleveled so the
// stage log is complete regardless of any console log level.
func (l *stageLogger) log(stage Stage, status string, details map[string]any) {
	ev := l.logger.Log().
		Str("stage", stage.String()).
		Str("status", status)
	if len(details) > 0 {
		ev = ev.Interface("details", details)
	}
	ev.Send()
}

func (l *stageLogger) Close() error {
	return l.file.Close()
}

// StageLogEntry is one decoded line of logs/pipeline.jsonl.
type StageLogEntry struct {
	Time      time.Time      `json:"time"`
	RunID     string         `json:"run_id"`
	AttemptID string         `json:"attempt_id"`
	Stage     string         `json:"stage"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
}

// Succeeded reports whether the entry recorded a passing stage result.
// Entries that carry no success detail (started and failed transitions)
// report true; the status field is what distinguishes those.
func (e StageLogEntry) Succeeded() bool {
	v, ok := e.Details["success"]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// ReadStageLog decodes a run's pipeline log. Undecodable lines are skipped
// rather than failing the read: a log truncated by a crash must still be
// usable to locate where the run stopped.
func ReadStageLog(path string) ([]StageLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open stage log: %w", err)
	}
	defer f.Close()

	var entries []StageLogEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e StageLogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("orchestrator: read stage log: %w", err)
	}
	return entries, nil
}
