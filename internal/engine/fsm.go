package engine

import "github.com/rendis/evoflow/pkg/schema"

// executionTransitions is the allowed lifecycle graph for an execution.
// Cancellation is valid from any non-terminal state.
var executionTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionStatusPending: {
		schema.ExecutionStatusRunning,
		schema.ExecutionStatusCancelled,
	},
	schema.ExecutionStatusRunning: {
		schema.ExecutionStatusCompleted,
		schema.ExecutionStatusFailed,
		schema.ExecutionStatusCancelled,
	},
}

// CanTransition reports whether moving from one execution status to another
// is allowed.
func CanTransition(from, to schema.ExecutionStatus) bool {
	for _, allowed := range executionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an INVALID_TRANSITION error when the move is not
// allowed.
func ValidateTransition(from, to schema.ExecutionStatus) error {
	if !CanTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"cannot transition execution from '%s' to '%s'", from, to)
	}
	return nil
}
