package store

import (
	"context"
	"sync"

	"github.com/rendis/evoflow/pkg/schema"
)

// MemoryStore is an in-memory RunStore for tests and ephemeral deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	runs          map[string]*schema.WorkflowExecutionResult
	runOrder      []string
	optimizations map[string][]*schema.OptimizationResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:          make(map[string]*schema.WorkflowExecutionResult),
		optimizations: make(map[string][]*schema.OptimizationResult),
	}
}

func (s *MemoryStore) SaveRun(_ context.Context, result *schema.WorkflowExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[result.ExecutionID]; !exists {
		s.runOrder = append(s.runOrder, result.ExecutionID)
	}
	s.runs[result.ExecutionID] = result
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, executionID string) (*schema.WorkflowExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.runs[executionID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"run '%s' not found", executionID)
	}
	return result, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, workflowID string, limit int) ([]*schema.WorkflowExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	var out []*schema.WorkflowExecutionResult

	// Newest first.
	for i := len(s.runOrder) - 1; i >= 0 && len(out) < limit; i-- {
		run := s.runs[s.runOrder[i]]
		if workflowID != "" && run.WorkflowID != workflowID {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *MemoryStore) SaveOptimization(_ context.Context, workflowID string, result *schema.OptimizationResult) error {
	s.mu.Lock()
	s.optimizations[workflowID] = append(s.optimizations[workflowID], result)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListOptimizations(_ context.Context, workflowID string, limit int) ([]*schema.OptimizationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	all := s.optimizations[workflowID]

	var out []*schema.OptimizationResult
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ RunStore = (*MemoryStore)(nil)
