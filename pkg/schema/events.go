package schema

// Telemetry event names published on the hub during execution and
// optimization. Fire-and-forget: no subscriber acknowledgment.
const (
	EventWorkflowStart     = "workflow:start"
	EventWorkflowComplete  = "workflow:complete"
	EventWorkflowCancelled = "workflow:cancelled"

	EventStepStart    = "step:start"
	EventStepComplete = "step:complete"
	EventStepError    = "step:error"

	EventEvaluatorRegistered = "evaluator.registered"
	EventEvaluationScores    = "evaluation.scores"

	EventOptimizationStart      = "optimization:start"
	EventOptimizationGeneration = "optimization:generation"
	EventOptimizationComplete   = "optimization:complete"
	EventGenerationComplete     = "generation:complete"
)

// Canonical hook points invoked through the HookSink. Hook failures are
// logged and never propagated.
const (
	HookWorkflowBefore = "workflow:before"
	HookWorkflowAfter  = "workflow:after"
	HookStepBefore     = "workflow:step:before"
	HookStepAfter      = "workflow:step:after"
	HookToolError      = "tool:error"
)
