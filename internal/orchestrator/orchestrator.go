package orchestrator

import "context"

// Stage identifies one step of the fixed research pipeline (0-8). The
// sequence never varies: every run executes all nine stages in order.
type Stage int

const (
	StageIntake  Stage = 0
	StagePlan    Stage = 1
	StageHarvest Stage = 2
	StageFetch   Stage = 3
	StageExtract Stage = 4
	StageVerify  Stage = 5
	StageWrite   Stage = 6
	StageAudit   Stage = 7
	StageCache   Stage = 8
)

var stageNames = [...]string{
	"intake",
	"plan",
	"harvest",
	"fetch",
	"extract",
	"verify",
	"write",
	"audit",
	"cache",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Stages returns the fixed execution order.
func Stages() []Stage {
	stages := make([]Stage, len(stageNames))
	for i := range stages {
		stages[i] = Stage(i)
	}
	return stages
}

// ParseStage maps a stage name back to its value.
func ParseStage(name string) (Stage, bool) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), true
		}
	}
	return 0, false
}

// ProgressEvent is one stage transition as shown on the console.
type ProgressEvent struct {
	Stage   Stage
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a stage within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Orchestrator coordinates research pipeline runs.
type Orchestrator interface {
	// Run executes the full pipeline for topic and returns the run state,
	// which is valid (if incomplete) even when an error is returned.
	Run(ctx context.Context, topic string, opts Options) (*Run, error)

	// Progress streams stage transitions while Run executes.
	Progress() <-chan ProgressEvent
}

// Clarifier decides whether a topic is specific enough to research and, when
// it is not, what to ask.
type Clarifier interface {
	NeedsClarification(topic string) bool
	GenerateQuestions(topic string) []string
}
