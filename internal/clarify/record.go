package clarify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Status tracks where a clarification exchange stands.
type Status string

const (
	// StatusPending means questions were asked and no answers have arrived.
	StatusPending Status = "pending"
	// StatusClarified means the user answered and the run can proceed.
	StatusClarified Status = "clarified"
	// StatusFailed means clarification was requested but never provided.
	StatusFailed Status = "failed"
)

// Record is the persisted state of one clarification exchange.
type Record struct {
	Status Status `json:"status"`
	// OriginalTopic is the topic as first submitted, before any answers
	// refined it. Empty when the run started with no topic at all.
	OriginalTopic string   `json:"original_topic,omitempty"`
	Questions     []string `json:"questions"`
	Answers       []string `json:"answers"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// ResolvedTopic returns the topic the exchange settled on: the joined
// answers when the exchange succeeded, otherwise the original topic.
func (r Record) ResolvedTopic() string {
	if r.Status == StatusClarified && len(r.Answers) > 0 {
		return strings.Join(r.Answers, " ")
	}
	return r.OriginalTopic
}

// Save writes the record to path as indented JSON, creating parent
// directories as needed.
func (r Record) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("clarify: create dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("clarify: encode record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("clarify: write record: %w", err)
	}
	return nil
}

// LoadRecord reads a record previously written by Save.
func LoadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("clarify: read record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("clarify: decode record: %w", err)
	}
	return r, nil
}
