package store

import (
	"context"

	"github.com/rendis/evoflow/pkg/schema"
)

// RunStore archives finished executions and optimization runs for later
// inspection. Execution state itself never lives here; the engine keeps
// in-flight state in memory and archives only terminal results.
type RunStore interface {
	SaveRun(ctx context.Context, result *schema.WorkflowExecutionResult) error
	GetRun(ctx context.Context, executionID string) (*schema.WorkflowExecutionResult, error)
	ListRuns(ctx context.Context, workflowID string, limit int) ([]*schema.WorkflowExecutionResult, error)

	SaveOptimization(ctx context.Context, workflowID string, result *schema.OptimizationResult) error
	ListOptimizations(ctx context.Context, workflowID string, limit int) ([]*schema.OptimizationResult, error)

	Close() error
}

const defaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
