package controller_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/esxr/bob/pkg/controller"
	"github.com/esxr/bob/pkg/models"
	"github.com/esxr/bob/pkg/scheduler"
	"github.com/stretchr/testify/assert"
)

// testLogger implements the Logger interface for testing
type testLogger struct{}

func (l *testLogger) Infof(format string, args ...interface{})  {}
func (l *testLogger) Warnf(format string, args ...interface{})  {}
func (l *testLogger) Errorf(format string, args ...interface{}) {}

func spec(id string, deps ...string) models.TaskSpec {
	return models.TaskSpec{ID: id, Action: "do " + id, DependsOn: deps}
}

// scriptedPlanner returns one plan per cycle and records the failure
// context it was handed.
type scriptedPlanner struct {
	plans    []models.Plan
	errs     []error
	calls    int
	failures [][]models.TaskFailure
}

func (p *scriptedPlanner) Plan(_ context.Context, _ string, failures []models.TaskFailure) (models.Plan, error) {
	idx := p.calls
	p.calls++
	p.failures = append(p.failures, failures)
	if idx < len(p.errs) && p.errs[idx] != nil {
		return models.Plan{}, p.errs[idx]
	}
	if idx >= len(p.plans) {
		idx = len(p.plans) - 1
	}
	return p.plans[idx], nil
}

// runnerByID fails the tasks whose IDs are listed, succeeds otherwise.
func runnerByID(failing ...string) scheduler.TaskRunner {
	failSet := make(map[string]bool, len(failing))
	for _, id := range failing {
		failSet[id] = true
	}
	return scheduler.RunnerFunc(func(_ context.Context, task *models.Task, _ map[string]models.TaskResult) (models.TaskResult, error) {
		if failSet[task.ID] {
			return nil, fmt.Errorf("task %s failed", task.ID)
		}
		return "result:" + task.ID, nil
	})
}

func newController(p controller.Planner, r scheduler.TaskRunner, opts ...controller.Option) *controller.Controller {
	logger := &testLogger{}
	return controller.NewController(p, scheduler.NewScheduler(r, logger), logger, opts...)
}

func TestController_SucceedsFirstCycle(t *testing.T) {
	planner := &scriptedPlanner{plans: []models.Plan{
		{Tasks: []models.TaskSpec{spec("fetch"), spec("report", "fetch")}},
	}}
	c := newController(planner, runnerByID())

	outcome, err := c.Run(context.Background(), "write a report")

	assert.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Cycles)
	assert.Equal(t, "result:report", outcome.Result)
	assert.Empty(t, outcome.FailedTasks)
	assert.Nil(t, planner.failures[0])

	phases := phasesOf(outcome.Log)
	assert.Equal(t, []controller.Phase{
		controller.PlanningPhase,
		controller.ExecutingPhase,
		controller.DonePhase,
	}, phases)
}

func TestController_ReplansAfterFailure(t *testing.T) {
	planner := &scriptedPlanner{plans: []models.Plan{
		{Tasks: []models.TaskSpec{spec("flaky")}},
		{Tasks: []models.TaskSpec{spec("solid")}},
	}}
	c := newController(planner, runnerByID("flaky"))

	outcome, err := c.Run(context.Background(), "goal")

	assert.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Cycles)
	assert.Equal(t, 2, planner.calls)

	// The second planning call sees the first cycle's failed task.
	assert.Len(t, planner.failures[1], 1)
	assert.Equal(t, "flaky", planner.failures[1][0].ID)
	assert.Equal(t, "do flaky", planner.failures[1][0].Action)
	assert.Contains(t, planner.failures[1][0].Error, "task flaky failed")

	phases := phasesOf(outcome.Log)
	assert.Contains(t, phases, controller.ReplanningPhase)
	assert.Equal(t, controller.DonePhase, phases[len(phases)-1])
}

func TestController_CycleBudgetExhaustion(t *testing.T) {
	for _, maxCycles := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("max=%d", maxCycles), func(t *testing.T) {
			planner := &scriptedPlanner{plans: []models.Plan{
				{Tasks: []models.TaskSpec{spec("doomed")}},
			}}
			c := newController(planner, runnerByID("doomed"), controller.WithMaxCycles(maxCycles))

			outcome, err := c.Run(context.Background(), "goal")

			assert.NoError(t, err)
			assert.False(t, outcome.Success)
			assert.Equal(t, maxCycles, outcome.Cycles)
			assert.Equal(t, maxCycles, planner.calls)
			assert.Equal(t, "cycle budget exhausted", outcome.Reason)
			assert.Len(t, outcome.FailedTasks, 1)
			assert.Equal(t, "doomed", outcome.FailedTasks[0].ID)
			assert.Equal(t, controller.FailedPhase, outcome.Log[len(outcome.Log)-1].Phase)
		})
	}
}

func TestController_StallWithoutFailuresIsTerminal(t *testing.T) {
	// The scheduler runs out of iterations with nothing failed: there is
	// nothing to replan around, so the run ends without a second cycle.
	planner := &scriptedPlanner{plans: []models.Plan{
		{Tasks: []models.TaskSpec{spec("a"), spec("b", "a"), spec("c", "b")}},
	}}
	logger := &testLogger{}
	sched := scheduler.NewScheduler(runnerByID(), logger, scheduler.WithMaxIterations(1))
	c := controller.NewController(planner, sched, logger)

	outcome, err := c.Run(context.Background(), "goal")

	assert.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "execution stalled", outcome.Reason)
	assert.Equal(t, 1, outcome.Cycles)
	assert.Equal(t, 1, planner.calls)
	assert.Empty(t, outcome.FailedTasks)
	assert.Equal(t, controller.FailedPhase, outcome.Log[len(outcome.Log)-1].Phase)
}

func TestController_PlannerFailureIsFatal(t *testing.T) {
	planner := &scriptedPlanner{errs: []error{fmt.Errorf("llm unreachable")}, plans: []models.Plan{{}}}
	c := newController(planner, runnerByID())

	outcome, err := c.Run(context.Background(), "goal")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "llm unreachable")
	assert.False(t, outcome.Success)
	assert.Equal(t, 1, outcome.Cycles)
	assert.Equal(t, 1, planner.calls)
}

func TestController_InvalidPlanIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		tasks []models.TaskSpec
		want  string
	}{
		{
			name:  "missing dependency",
			tasks: []models.TaskSpec{spec("a", "ghost")},
			want:  "missing task 'ghost'",
		},
		{
			name:  "cycle",
			tasks: []models.TaskSpec{spec("a", "b"), spec("b", "a")},
			want:  "cycle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := &scriptedPlanner{plans: []models.Plan{{Tasks: tt.tasks}}}
			c := newController(planner, runnerByID())

			outcome, err := c.Run(context.Background(), "goal")

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, outcome.Success)
			assert.Equal(t, "plan structurally invalid", outcome.Reason)
			// No execution was attempted on the invalid graph.
			assert.Equal(t, controller.FailedPhase, outcome.Log[len(outcome.Log)-1].Phase)
		})
	}
}

func TestController_SinkObservesProgress(t *testing.T) {
	planner := &scriptedPlanner{plans: []models.Plan{
		{Tasks: []models.TaskSpec{spec("only")}},
	}}
	var seen []controller.ProgressEntry
	sink := controller.SinkFunc(func(entry controller.ProgressEntry) {
		seen = append(seen, entry)
	})
	c := newController(planner, runnerByID(), controller.WithSink(sink))

	outcome, err := c.Run(context.Background(), "goal")

	assert.NoError(t, err)
	assert.Equal(t, outcome.Log, seen)
}

func TestController_FinalResultComesFromSinkTask(t *testing.T) {
	// "summarize" is the only task nothing depends on; its result wins.
	planner := &scriptedPlanner{plans: []models.Plan{
		{Tasks: []models.TaskSpec{spec("fetch"), spec("clean", "fetch"), spec("summarize", "clean")}},
	}}
	c := newController(planner, runnerByID())

	outcome, err := c.Run(context.Background(), "goal")

	assert.NoError(t, err)
	assert.Equal(t, "result:summarize", outcome.Result)
}

func phasesOf(log []controller.ProgressEntry) []controller.Phase {
	var phases []controller.Phase
	for _, entry := range log {
		phases = append(phases, entry.Phase)
	}
	return phases
}
