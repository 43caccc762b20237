package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/evoflow/pkg/schema"
)

// WorkflowContext holds the mutable state of a single workflow execution:
// variables, step outputs, accumulated step results and lifecycle status.
// All accessors are safe for concurrent use. Once the execution is cancelled
// every mutation becomes a silent no-op, so late writers racing with Cancel
// cannot resurrect state.
type WorkflowContext struct {
	ExecutionID string
	WorkflowID  string
	StartedAt   time.Time

	mu          sync.RWMutex
	status      schema.ExecutionStatus
	variables   map[string]any
	stepOutputs map[string]any
	results     []schema.StepResult
	metadata    map[string]any
}

func newWorkflowContext(workflowID string, initialVars map[string]any) *WorkflowContext {
	vars := schema.CopyMap(initialVars)
	if vars == nil {
		vars = make(map[string]any)
	}
	return &WorkflowContext{
		ExecutionID: uuid.NewString(),
		WorkflowID:  workflowID,
		StartedAt:   time.Now(),
		status:      schema.ExecutionStatusPending,
		variables:   vars,
		stepOutputs: make(map[string]any),
		metadata:    make(map[string]any),
	}
}

// Status returns the current execution status.
func (c *WorkflowContext) Status() schema.ExecutionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// MarkRunning transitions the execution to running. Returns false when the
// execution is already terminal.
func (c *WorkflowContext) MarkRunning() bool {
	return c.transition(schema.ExecutionStatusRunning)
}

// MarkCompleted transitions the execution to completed. Returns false when the
// execution is already terminal.
func (c *WorkflowContext) MarkCompleted() bool {
	return c.transition(schema.ExecutionStatusCompleted)
}

// MarkFailed transitions the execution to failed. Returns false when the
// execution is already terminal.
func (c *WorkflowContext) MarkFailed() bool {
	return c.transition(schema.ExecutionStatusFailed)
}

// Cancel transitions the execution to cancelled. All subsequent writes to the
// context are ignored. Returns false when the execution is already terminal.
func (c *WorkflowContext) Cancel() bool {
	return c.transition(schema.ExecutionStatusCancelled)
}

func (c *WorkflowContext) transition(to schema.ExecutionStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !CanTransition(c.status, to) {
		return false
	}
	c.status = to
	return true
}

// SetVariable writes a context variable. No-op after cancellation.
func (c *WorkflowContext) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == schema.ExecutionStatusCancelled {
		return
	}
	c.variables[key] = schema.CopyValue(value)
}

// Variable reads a single context variable.
func (c *WorkflowContext) Variable(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[key]
	return v, ok
}

// Variables returns a deep copy of the current variables.
func (c *WorkflowContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schema.CopyMap(c.variables)
}

// SetStepOutput records the output of a completed step, keyed by step ID.
// No-op after cancellation.
func (c *WorkflowContext) SetStepOutput(stepID string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == schema.ExecutionStatusCancelled {
		return
	}
	c.stepOutputs[stepID] = schema.CopyValue(output)
}

// StepOutputs returns a deep copy of all recorded step outputs.
func (c *WorkflowContext) StepOutputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schema.CopyMap(c.stepOutputs)
}

// AppendResult appends a step result to the execution record. No-op after
// cancellation.
func (c *WorkflowContext) AppendResult(result schema.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == schema.ExecutionStatusCancelled {
		return
	}
	c.results = append(c.results, result)
}

// Results returns a copy of the accumulated step results in execution order.
func (c *WorkflowContext) Results() []schema.StepResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]schema.StepResult, len(c.results))
	copy(out, c.results)
	return out
}

// SetMetadata stores arbitrary execution metadata. No-op after cancellation.
func (c *WorkflowContext) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == schema.ExecutionStatusCancelled {
		return
	}
	c.metadata[key] = value
}

// ContextStore tracks active workflow executions. Contexts are created on
// execution start and removed once the run result has been assembled; List
// exposes the live table for the inspection tools.
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[string]*WorkflowContext
}

// NewContextStore creates an empty context store.
func NewContextStore() *ContextStore {
	return &ContextStore{
		contexts: make(map[string]*WorkflowContext),
	}
}

// Create registers a new execution context with a fresh execution ID and the
// given initial variables.
func (s *ContextStore) Create(workflowID string, initialVars map[string]any) *WorkflowContext {
	wctx := newWorkflowContext(workflowID, initialVars)

	s.mu.Lock()
	s.contexts[wctx.ExecutionID] = wctx
	s.mu.Unlock()

	return wctx
}

// Get returns the context for the given execution ID.
func (s *ContextStore) Get(executionID string) (*WorkflowContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wctx, ok := s.contexts[executionID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"execution '%s' not found", executionID)
	}
	return wctx, nil
}

// Cancel cancels the execution with the given ID. Returns NOT_FOUND when no
// such execution exists and CONFLICT when it already reached a terminal state.
func (s *ContextStore) Cancel(executionID string) error {
	wctx, err := s.Get(executionID)
	if err != nil {
		return err
	}
	if !wctx.Cancel() {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"execution '%s' already finished", executionID)
	}
	return nil
}

// Remove deletes the context for a finished execution.
func (s *ContextStore) Remove(executionID string) {
	s.mu.Lock()
	delete(s.contexts, executionID)
	s.mu.Unlock()
}

// List returns the currently tracked execution contexts.
func (s *ContextStore) List() []*WorkflowContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*WorkflowContext, 0, len(s.contexts))
	for _, wctx := range s.contexts {
		out = append(out, wctx)
	}
	return out
}
