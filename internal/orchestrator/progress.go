package orchestrator

import "fmt"

// progressBuffer bounds how many undrained events the reporter holds
// before Emit starts dropping.
const progressBuffer = 64

// ProgressReporter streams stage transitions to a console consumer. The
// pipeline never blocks on it: events beyond the buffer are dropped.
type ProgressReporter struct {
	events chan ProgressEvent
}

// NewProgressReporter returns a reporter ready to emit.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{events: make(chan ProgressEvent, progressBuffer)}
}

// Emit publishes ev, dropping it when the buffer is full.
func (r *ProgressReporter) Emit(ev ProgressEvent) {
	select {
	case r.events <- ev:
	default:
	}
}

// Subscribe returns the event stream. It closes when Close is called.
func (r *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return r.events
}

// Close ends the stream. No Emit may follow.
func (r *ProgressReporter) Close() {
	close(r.events)
}

// FormatProgress renders ev as one console status line.
func FormatProgress(ev ProgressEvent) string {
	var glyph, tail string
	switch ev.Status {
	case ProgressPending:
		glyph, tail = "○", " (pending)"
	case ProgressWorking:
		glyph, tail = "●", "..."
	case ProgressComplete:
		glyph, tail = "✓", " complete"
	case ProgressFailed:
		glyph, tail = "✗", " failed: "+ev.Message
	default:
		glyph, tail = "?", " (unknown status)"
	}
	return fmt.Sprintf("  %s %s%s", glyph, ev.Stage, tail)
}

// FormatRunHeader is the banner line printed when a run starts.
func FormatRunHeader(runID, topic string) string {
	return fmt.Sprintf("[%s] %s", runID, topic)
}
