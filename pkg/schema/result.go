package schema

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// StepStatus is the terminal outcome of a single step attempt sequence.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailure StepStatus = "failure"
	StepStatusSkipped StepStatus = "skipped"
)

// StepResult summarizes the outcome of a single step.
type StepResult struct {
	StepID     string             `json:"step_id"`
	Status     StepStatus         `json:"status"`
	Output     any                `json:"output,omitempty"`
	Error      *FlowError         `json:"error,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// WorkflowExecutionResult is returned by the engine with the workflow outcome.
// Callers receive per-step detail even on partial failure.
type WorkflowExecutionResult struct {
	WorkflowID  string             `json:"workflow_id"`
	ExecutionID string             `json:"execution_id"`
	Status      ExecutionStatus    `json:"status"`
	Steps       []StepResult       `json:"steps"`
	DurationMs  int64              `json:"duration_ms"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Suggestions []Suggestion       `json:"suggestions,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Suggestion is an improvement hint produced when an evaluator scores an
// objective below the suggestion threshold.
type Suggestion struct {
	Evaluator string  `json:"evaluator"`
	Objective string  `json:"objective"`
	Score     float64 `json:"score"`
	Message   string  `json:"message"`
}
