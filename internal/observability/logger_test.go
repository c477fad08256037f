package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"WARN", zerolog.WarnLevel},
		{"  info  ", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNewLogger_AppliesLevel(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "error"})
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())

	logger = NewLogger(LoggingConfig{Level: "nonsense"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestWithRun_StampsEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRun(zerolog.New(&buf), "quantum_20240101_000000", "attempt-1")

	logger.Info().Msg("stage started")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "quantum_20240101_000000", event["run_id"])
	assert.Equal(t, "attempt-1", event["attempt_id"])
	assert.Equal(t, "stage started", event["message"])
}
