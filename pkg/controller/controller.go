package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/esxr/bob/pkg/graph"
	"github.com/esxr/bob/pkg/models"
	"github.com/esxr/bob/pkg/scheduler"
	"github.com/pkg/errors"
)

const (
	// default bound on plan/execute/replan cycles
	DefaultMaxCycles = 3
)

// Phase identifies where in the plan-act-replan state machine a progress
// entry was emitted.
type Phase string

const (
	PlanningPhase   Phase = "PLANNING"
	ExecutingPhase  Phase = "EXECUTING"
	ReplanningPhase Phase = "REPLANNING"
	DonePhase       Phase = "DONE"
	FailedPhase     Phase = "FAILED"
)

// Logger defines the logging interface for the Controller
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Planner produces a task plan for a goal. After the first cycle it also
// receives the failed tasks of the previous graph so it can address them.
type Planner interface {
	Plan(ctx context.Context, goal string, failures []models.TaskFailure) (models.Plan, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, goal string, failures []models.TaskFailure) (models.Plan, error)

func (f PlannerFunc) Plan(ctx context.Context, goal string, failures []models.TaskFailure) (models.Plan, error) {
	return f(ctx, goal, failures)
}

// ProgressEntry is one line of the controller's per-cycle progress log.
type ProgressEntry struct {
	Cycle   int    `json:"cycle"`
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
}

// TransitionSink observes progress entries as they are emitted. Sinks are a
// side channel (tracing, run history); they take no part in control flow.
type TransitionSink interface {
	Record(entry ProgressEntry)
}

// SinkFunc adapts a function to the TransitionSink interface.
type SinkFunc func(entry ProgressEntry)

func (f SinkFunc) Record(entry ProgressEntry) { f(entry) }

// CycleObserver inspects a cycle's graph after execution has settled, before
// the controller decides between replanning and terminating. Like
// TransitionSink it is observability only.
type CycleObserver interface {
	ObserveCycle(cycle int, g *graph.TaskGraph)
}

// Outcome is the controller's structured result. A failed run carries the
// last graph's failed tasks for diagnostics.
type Outcome struct {
	Success     bool                 `json:"success"`
	Result      models.TaskResult    `json:"result,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Cycles      int                  `json:"cycles"`
	Log         []ProgressEntry      `json:"log"`
	FailedTasks []models.TaskFailure `json:"failed_tasks,omitempty"`
}

// Controller drives the plan/execute/replan loop: obtain a graph from the
// planner, run the scheduler over it, then decide between replanning and
// terminating, bounded by a maximum cycle count.
type Controller struct {
	planner   Planner
	scheduler *scheduler.Scheduler
	logger    Logger
	sink      TransitionSink
	observer  CycleObserver
	maxCycles int
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxCycles overrides the plan/execute/replan cycle budget.
func WithMaxCycles(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxCycles = n
		}
	}
}

// WithSink installs a side-channel observer for progress entries.
func WithSink(sink TransitionSink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

// WithObserver installs a side-channel observer for per-cycle graph state.
func WithObserver(observer CycleObserver) Option {
	return func(c *Controller) {
		c.observer = observer
	}
}

func NewController(planner Planner, sched *scheduler.Scheduler, logger Logger, opts ...Option) *Controller {
	c := &Controller{
		planner:   planner,
		scheduler: sched,
		logger:    logger,
		maxCycles: DefaultMaxCycles,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the goal until it succeeds, fails fatally, or the cycle
// budget runs out. Errors local to single tasks never surface here; only
// planner failures and structural plan errors terminate a run as errors.
func (c *Controller) Run(ctx context.Context, goal string) (Outcome, error) {
	var log []ProgressEntry
	record := func(cycle int, phase Phase, format string, args ...interface{}) {
		entry := ProgressEntry{Cycle: cycle, Phase: phase, Message: fmt.Sprintf(format, args...)}
		log = append(log, entry)
		if c.sink != nil {
			c.sink.Record(entry)
		}
	}

	var failures []models.TaskFailure
	for cycle := 1; ; cycle++ {
		record(cycle, PlanningPhase, "planning cycle %d for goal: %s", cycle, goal)
		c.logger.Infof("Planning cycle %d (previous failures: %d)", cycle, len(failures))

		plan, err := c.planner.Plan(ctx, goal, failures)
		if err != nil {
			record(cycle, FailedPhase, "planner failed: %v", err)
			c.logger.Errorf("Planner failed on cycle %d: %v", cycle, err)
			return Outcome{Reason: "planner failed", Cycles: cycle, Log: log, FailedTasks: failures},
				errors.Wrap(err, "planner failed")
		}

		g := graph.New(plan.Tasks)
		if vr := g.Validate(); !vr.Valid {
			record(cycle, FailedPhase, "plan structurally invalid: %s", strings.Join(vr.Errors, "; "))
			c.logger.Errorf("Plan on cycle %d is structurally invalid: %v", cycle, vr.Errors)
			return Outcome{Reason: "plan structurally invalid", Cycles: cycle, Log: log, FailedTasks: failures},
				errors.Errorf("plan structurally invalid: %s", strings.Join(vr.Errors, "; "))
		}

		record(cycle, ExecutingPhase, "executing %d task(s)", g.Len())
		out := c.scheduler.Execute(ctx, g)
		if c.observer != nil {
			c.observer.ObserveCycle(cycle, g)
		}

		if out.Complete {
			result := c.finalResult(g)
			record(cycle, DonePhase, "goal completed in %d cycle(s)", cycle)
			c.logger.Infof("Goal completed on cycle %d after %d iterations", cycle, out.Iterations)
			return Outcome{Success: true, Result: result, Cycles: cycle, Log: log}, nil
		}

		stats := g.Stats()
		failed := g.HasFailed()
		if !failed && out.Stalled {
			// Iteration budget ran out with no failures to replan around:
			// an intentional stop, not a replan trigger.
			record(cycle, FailedPhase, "execution stalled after %d iterations (stats %+v)", out.Iterations, stats)
			c.logger.Errorf("Execution stalled on cycle %d: %+v", cycle, stats)
			return Outcome{Reason: "execution stalled", Cycles: cycle, Log: log}, nil
		}
		if !failed {
			// No ready tasks, nothing failed, graph incomplete. Should be
			// unreachable on a validated graph; replan rather than stop
			// silently.
			c.logger.Warnf("Deadlock on cycle %d with no failed tasks (stats %+v), replanning", cycle, stats)
		}

		failures = g.Failures()
		if cycle >= c.maxCycles {
			record(cycle, FailedPhase, "cycle budget of %d exhausted with %d failed task(s)", c.maxCycles, stats.Failed)
			c.logger.Errorf("Cycle budget of %d exhausted", c.maxCycles)
			return Outcome{Reason: "cycle budget exhausted", Cycles: cycle, Log: log, FailedTasks: failures}, nil
		}
		record(cycle, ReplanningPhase, "replanning after %d failed task(s)", stats.Failed)
		c.logger.Infof("Replanning after cycle %d (%d failed)", cycle, stats.Failed)
	}
}

// finalResult picks the run's designated result from a completed graph: the
// result of the last sink task (a task no other task depends on) in
// insertion order. With every task completed there is always at least one
// sink.
func (c *Controller) finalResult(g *graph.TaskGraph) models.TaskResult {
	dependedOn := make(map[string]bool)
	for _, t := range g.Tasks() {
		for _, dep := range t.DependsOn {
			dependedOn[dep] = true
		}
	}
	var result models.TaskResult
	for _, t := range g.Tasks() {
		if !dependedOn[t.ID] {
			result = t.Result
		}
	}
	return result
}
