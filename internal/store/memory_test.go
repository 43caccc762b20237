package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runResult(executionID, workflowID string) *schema.WorkflowExecutionResult {
	return &schema.WorkflowExecutionResult{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Status:      schema.ExecutionStatusCompleted,
		StartedAt:   time.Now(),
	}
}

func TestMemoryStoreRuns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, runResult("ex1", "wf1")))
	require.NoError(t, s.SaveRun(ctx, runResult("ex2", "wf2")))
	require.NoError(t, s.SaveRun(ctx, runResult("ex3", "wf1")))

	got, err := s.GetRun(ctx, "ex2")
	require.NoError(t, err)
	assert.Equal(t, "wf2", got.WorkflowID)

	_, err = s.GetRun(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, err.(*schema.FlowError).Code)

	runs, err := s.ListRuns(ctx, "wf1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, "ex3", runs[0].ExecutionID)
	assert.Equal(t, "ex1", runs[1].ExecutionID)

	all, err := s.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStoreSaveRunUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := runResult("ex1", "wf")
	require.NoError(t, s.SaveRun(ctx, first))

	updated := runResult("ex1", "wf")
	updated.Status = schema.ExecutionStatusFailed
	require.NoError(t, s.SaveRun(ctx, updated))

	got, err := s.GetRun(ctx, "ex1")
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusFailed, got.Status)

	runs, err := s.ListRuns(ctx, "wf", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMemoryStoreOptimizations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveOptimization(ctx, "wf", &schema.OptimizationResult{
			Generations: i + 1,
		}))
	}

	results, err := s.ListOptimizations(ctx, "wf", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Newest first.
	assert.Equal(t, 3, results[0].Generations)
	assert.Equal(t, 2, results[1].Generations)

	empty, err := s.ListOptimizations(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreListLimitDefault(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < defaultListLimit+10; i++ {
		require.NoError(t, s.SaveRun(ctx, runResult(fmt.Sprintf("ex%d", i), "wf")))
	}

	runs, err := s.ListRuns(ctx, "wf", 0)
	require.NoError(t, err)
	assert.Len(t, runs, defaultListLimit)
}
