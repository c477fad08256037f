package orchestrator

import (
	"errors"
	"fmt"
)

// Sentinel outcomes callers must be able to tell apart from ordinary stage
// faults: they map to distinct process exit codes.
var (
	// ErrVerificationFailed means the pipeline ran to the audit and the
	// audit rejected the artifacts. The artifacts themselves exist.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClarificationNeeded means the topic was too underspecified to
	// research and questions were generated instead of a run.
	ErrClarificationNeeded = errors.New("clarification needed")
)

// StageError wraps a failure with the stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("orchestrator: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ClarificationError carries the questions generated for an underspecified
// topic. It matches ErrClarificationNeeded under errors.Is.
type ClarificationError struct {
	Topic     string
	Questions []string
}

func (e *ClarificationError) Error() string {
	return fmt.Sprintf("orchestrator: topic %q needs clarification (%d questions)", e.Topic, len(e.Questions))
}

func (e *ClarificationError) Unwrap() error {
	return ErrClarificationNeeded
}
