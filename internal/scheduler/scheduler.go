package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/rendis/evoflow/internal/engine"
	"github.com/rendis/evoflow/pkg/schema"
)

// ScheduledJob describes one recurring workflow run.
type ScheduledJob struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Spec       string `json:"spec"`
}

type job struct {
	ScheduledJob
	entryID cron.EntryID
	def     *schema.WorkflowDefinition

	// running suppresses overlap: a tick that fires while the previous run of
	// the same job is still executing is skipped.
	running atomic.Bool
}

// Scheduler triggers workflow executions on cron schedules. Specs use the
// standard 5-field cron syntax. A tick that fires while the job's previous
// run is still executing is skipped, so slow workflows never overlap
// themselves.
type Scheduler struct {
	engine *engine.WorkflowEngine
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a scheduler that runs workflows on the given engine.
func New(eng *engine.WorkflowEngine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine: eng,
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Start begins dispatching scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops dispatching and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Add registers a workflow to run on the given cron spec. The job ID must be
// unique; re-adding an existing ID is a CONFLICT.
func (s *Scheduler) Add(jobID, spec string, def *schema.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "job '%s' already scheduled", jobID)
	}

	j := &job{
		ScheduledJob: ScheduledJob{ID: jobID, WorkflowID: def.ID, Spec: spec},
		def:          def,
	}
	entryID, err := s.cron.AddFunc(spec, func() { s.run(j) })
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid cron spec %q: %s", spec, err.Error()).WithCause(err)
	}

	j.entryID = entryID
	s.jobs[jobID] = j
	return nil
}

// Remove unschedules a job.
func (s *Scheduler) Remove(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "job '%s' not scheduled", jobID)
	}
	s.cron.Remove(j.entryID)
	delete(s.jobs, jobID)
	return nil
}

// Jobs lists the scheduled jobs, sorted by ID.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.ScheduledJob)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *Scheduler) run(j *job) {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in flight, skipping tick",
			slog.String("job_id", j.ID),
		)
		return
	}
	defer j.running.Store(false)

	ctx := context.Background()
	result, err := s.engine.Execute(ctx, j.def)
	if err != nil {
		s.logger.Error("scheduled run failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("scheduled run finished",
		slog.String("job_id", j.ID),
		slog.String("execution_id", result.ExecutionID),
		slog.String("status", string(result.Status)),
	)
}
