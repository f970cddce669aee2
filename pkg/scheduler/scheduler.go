package scheduler

import (
	"context"
	"sync"

	"github.com/esxr/bob/pkg/graph"
	"github.com/esxr/bob/pkg/models"
)

const (
	// safety bound on dispatch iterations, independent of task count
	DefaultMaxIterations = 100
)

// Logger defines the logging interface for the Scheduler
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// TaskRunner executes a single task's payload. Implementations must encode
// task-level problems in the returned error, not panic; an error fails that
// task only, never its siblings.
type TaskRunner interface {
	Run(ctx context.Context, task *models.Task, deps map[string]models.TaskResult) (models.TaskResult, error)
}

// RunnerFunc adapts a function to the TaskRunner interface.
type RunnerFunc func(ctx context.Context, task *models.Task, deps map[string]models.TaskResult) (models.TaskResult, error)

func (f RunnerFunc) Run(ctx context.Context, task *models.Task, deps map[string]models.TaskResult) (models.TaskResult, error) {
	return f(ctx, task, deps)
}

// Outcome describes how a scheduler run ended.
type Outcome struct {
	Complete         bool // every task completed
	BlockedByFailure bool // nothing ready, at least one task failed
	Stalled          bool // iteration cap hit with work still outstanding
	Iterations       int  // dispatch iterations consumed
}

// Scheduler drives one task graph from all-pending to a terminal state,
// executing independent tasks concurrently. A Scheduler holds no graph state
// of its own and may be reused across graphs, but a single graph must only
// ever be driven by one Execute call at a time.
type Scheduler struct {
	runner        TaskRunner
	logger        Logger
	maxIterations int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxIterations overrides the dispatch iteration cap.
func WithMaxIterations(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

func NewScheduler(runner TaskRunner, logger Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:        runner,
		logger:        logger,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute repeatedly dispatches the ready set until the graph completes, is
// blocked by failures, deadlocks, or the iteration cap is hit.
//
// Each iteration is a hard barrier: every task in the batch settles before
// readiness is recomputed. A task becoming ready mid-batch waits for the
// next iteration. The barrier is what makes unlocked status writes safe: all
// writes from one batch happen before any read for the next.
func (s *Scheduler) Execute(ctx context.Context, g *graph.TaskGraph) Outcome {
	for iter := 1; iter <= s.maxIterations; iter++ {
		ready := g.ReadyTasks()
		if len(ready) == 0 {
			if g.IsComplete() {
				s.logger.Infof("Graph complete after %d iterations", iter-1)
				return Outcome{Complete: true, Iterations: iter - 1}
			}
			if g.HasFailed() {
				s.logger.Infof("Graph blocked by failed tasks after %d iterations", iter-1)
				return Outcome{BlockedByFailure: true, Iterations: iter - 1}
			}
			// Unreachable for a validated acyclic graph; a bug signal, not
			// a supported outcome.
			s.logger.Warnf("Deadlock: no ready tasks, graph incomplete with no failures (stats %+v)", g.Stats())
			return Outcome{Iterations: iter - 1}
		}

		for _, t := range ready {
			if err := g.MarkExecuting(t.ID); err != nil {
				s.logger.Errorf("Failed to mark task %s as executing: %v", t.ID, err)
			}
		}
		s.logger.Infof("Dispatching batch of %d task(s) (iteration %d)", len(ready), iter)

		var wg sync.WaitGroup
		for _, t := range ready {
			wg.Add(1)
			go func(t *models.Task) {
				defer wg.Done()
				s.dispatch(ctx, g, t)
			}(t)
		}
		wg.Wait()
		s.logger.Infof("Batch settled (iteration %d): %+v", iter, g.Stats())
	}

	s.logger.Warnf("Iteration cap %d reached with graph incomplete", s.maxIterations)
	return Outcome{
		BlockedByFailure: g.HasFailed(),
		Stalled:          true,
		Iterations:       s.maxIterations,
	}
}

// dispatch runs one task and records its terminal status. Runner errors are
// recorded on the task and never propagate; one failure must not cancel or
// block any sibling.
func (s *Scheduler) dispatch(ctx context.Context, g *graph.TaskGraph, t *models.Task) {
	deps := g.DependencyResults(t)
	result, err := s.runner.Run(ctx, t, deps)
	if err != nil {
		s.logger.Infof("Task %s failed: %v", t.ID, err)
		if failErr := g.Fail(t.ID, err.Error()); failErr != nil {
			s.logger.Errorf("Failed to record failure of task %s: %v", t.ID, failErr)
		}
		return
	}
	s.logger.Infof("Task %s completed", t.ID)
	if completeErr := g.Complete(t.ID, result); completeErr != nil {
		s.logger.Errorf("Failed to record completion of task %s: %v", t.ID, completeErr)
	}
}
