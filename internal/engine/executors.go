package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rendis/evoflow/pkg/schema"
)

// StepExecutor performs the work of one step type. Implementations must be
// safe for concurrent use: the optimizer runs many executions of the same
// workflow in parallel.
type StepExecutor interface {
	// Type returns the step type this executor handles.
	Type() string

	// Execute runs the step and returns its output. The scope carries the
	// current context variables and prior step outputs for executors that
	// read workflow state.
	Execute(ctx context.Context, step schema.WorkflowStep, scope map[string]any) (any, error)
}

// ExecutorRegistry maps step types to executors. Registration normally
// happens at startup but is safe at any time.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]StepExecutor
}

// NewExecutorRegistry creates an empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]StepExecutor),
	}
}

// Register adds an executor for its step type, replacing any previous one.
func (r *ExecutorRegistry) Register(executor StepExecutor) {
	r.mu.Lock()
	r.executors[executor.Type()] = executor
	r.mu.Unlock()
}

// Get returns the executor for the given step type. A missing executor is a
// NO_EXECUTOR error; the runner treats it as fatal without consuming retries.
func (r *ExecutorRegistry) Get(stepType string) (StepExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[stepType]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNoExecutor,
			"no executor registered for step type '%s'", stepType)
	}
	return executor, nil
}

// Types returns the registered step types, sorted.
func (r *ExecutorRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
