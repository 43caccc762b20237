package streaming

import "context"

// TelemetryEvent is a lifecycle event emitted during workflow execution or
// an optimization run.
type TelemetryEvent struct {
	ExecutionID string `json:"execution_id,omitempty"`
	WorkflowID  string `json:"workflow_id,omitempty"`
	StepID      string `json:"step_id,omitempty"`
	EventType   string `json:"event_type"`
	Payload     any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	ExecutionID string   `json:"execution_id,omitempty"`
	EventTypes  []string `json:"event_types,omitempty"`
}

// TelemetryHub provides fire-and-forget pub/sub for lifecycle events.
// Consumers subscribe before the run starts; publication never blocks the
// engine and requires no acknowledgment.
type TelemetryHub interface {
	Publish(ctx context.Context, event TelemetryEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan TelemetryEvent, func(), error)
}
