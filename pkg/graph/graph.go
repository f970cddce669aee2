package graph

import (
	"fmt"
	"strings"

	"github.com/esxr/bob/pkg/models"
	"github.com/pkg/errors"
)

// TaskGraph holds one plan cycle's tasks and their dependency edges. A graph
// is built once per plan, mutated (status only) during execution and then
// discarded; it is never reused across a replan.
//
// Status writes are not locked. The scheduler guarantees that no two writers
// touch the same task and that a full batch settles before the next readiness
// read, so the graph itself stays free of synchronization.
type TaskGraph struct {
	tasks map[string]*models.Task
	order []string // insertion order, for deterministic reporting
}

// New builds a graph from planner task specs. Nothing is rejected here:
// validation is a separate step so that Validate can report every structural
// problem at once instead of failing on the first. Duplicate dependency
// entries collapse; a duplicate task ID overwrites the earlier spec.
func New(specs []models.TaskSpec) *TaskGraph {
	g := &TaskGraph{
		tasks: make(map[string]*models.Task, len(specs)),
	}
	for _, spec := range specs {
		if _, exists := g.tasks[spec.ID]; !exists {
			g.order = append(g.order, spec.ID)
		}
		g.tasks[spec.ID] = &models.Task{
			ID:        spec.ID,
			Action:    spec.Action,
			DependsOn: dedupe(spec.DependsOn),
			Payload:   spec.Payload,
			Status:    models.PendingTaskStatus,
		}
	}
	return g
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dfs colors for cycle detection
const (
	white = iota // unvisited
	grey         // on the current recursion stack
	black        // fully processed
)

// Validate checks referential integrity and acyclicity. All problems are
// collected: every missing dependency produces its own error, and every
// distinct cycle found by the depth-first search produces one error naming
// the cycle path.
func (g *TaskGraph) Validate() models.ValidationResult {
	var errs []string

	// Pass 1: every dependency must reference an existing task.
	for _, id := range g.order {
		for _, dep := range g.tasks[id].DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				errs = append(errs, fmt.Sprintf("task '%s' depends on missing task '%s'", id, dep))
			}
		}
	}

	// Pass 2: three-color DFS over every node, so cycles in disconnected
	// components are found too.
	color := make(map[string]int, len(g.tasks))
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range g.tasks[id].DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				continue // reported by pass 1
			}
			switch color[dep] {
			case white:
				visit(dep)
			case grey:
				errs = append(errs, fmt.Sprintf("dependency cycle detected: %s", cyclePath(stack, dep)))
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range g.order {
		if color[id] == white {
			visit(id)
		}
	}

	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// cyclePath renders the portion of the recursion stack that forms the cycle,
// closed back on its first node.
func cyclePath(stack []string, start string) string {
	idx := 0
	for i, id := range stack {
		if id == start {
			idx = i
			break
		}
	}
	return strings.Join(append(append([]string{}, stack[idx:]...), start), " -> ")
}

// ReadyTasks returns every pending task whose dependencies have all
// completed. The set is recomputed from current status on every call; a task
// behind a failed dependency is never ready.
func (g *TaskGraph) ReadyTasks() []*models.Task {
	var ready []*models.Task
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != models.PendingTaskStatus {
			continue
		}
		ok := true
		for _, dep := range t.DependsOn {
			d, exists := g.tasks[dep]
			if !exists || d.Status != models.CompletedTaskStatus {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// ExecutionLayers groups tasks into topological layers via Kahn's algorithm:
// each layer is the full zero-in-degree frontier at that point. The layering
// is a dry-run diagnostic; real dispatch recomputes readiness dynamically
// because task outcomes are not known in advance. An error here means a
// cycle slipped past Validate and is an internal invariant violation.
func (g *TaskGraph) ExecutionLayers() ([][]*models.Task, error) {
	inDegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))
	for _, id := range g.order {
		inDegree[id] = len(g.tasks[id].DependsOn)
		for _, dep := range g.tasks[id].DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var layers [][]*models.Task
	emitted := 0
	for len(queue) > 0 {
		layer := make([]*models.Task, 0, len(queue))
		var next []string
		for _, id := range queue {
			layer = append(layer, g.tasks[id])
			emitted++
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		layers = append(layers, layer)
		queue = next
	}

	if emitted != len(g.tasks) {
		return nil, errors.Errorf("layering emitted %d of %d tasks: graph contains a cycle", emitted, len(g.tasks))
	}
	return layers, nil
}

// MarkExecuting moves a pending task to EXECUTING.
func (g *TaskGraph) MarkExecuting(id string) error {
	t, ok := g.tasks[id]
	if !ok {
		return errors.Errorf("unknown task '%s'", id)
	}
	if t.Status == models.CompletedTaskStatus || t.Status == models.FailedTaskStatus {
		return errors.Errorf("task '%s' already %s", id, t.Status)
	}
	t.Status = models.ExecutingTaskStatus
	return nil
}

// Complete records a task's result and moves it to COMPLETED. COMPLETED and
// FAILED are terminal within a graph instance.
func (g *TaskGraph) Complete(id string, result models.TaskResult) error {
	t, ok := g.tasks[id]
	if !ok {
		return errors.Errorf("unknown task '%s'", id)
	}
	if t.Status == models.CompletedTaskStatus || t.Status == models.FailedTaskStatus {
		return errors.Errorf("task '%s' already %s", id, t.Status)
	}
	t.Status = models.CompletedTaskStatus
	t.Result = result
	return nil
}

// Fail records a task's error message and moves it to FAILED.
func (g *TaskGraph) Fail(id string, errMsg string) error {
	t, ok := g.tasks[id]
	if !ok {
		return errors.Errorf("unknown task '%s'", id)
	}
	if t.Status == models.CompletedTaskStatus || t.Status == models.FailedTaskStatus {
		return errors.Errorf("task '%s' already %s", id, t.Status)
	}
	t.Status = models.FailedTaskStatus
	t.ErrorMsg = errMsg
	return nil
}

// IsComplete reports whether every task has completed.
func (g *TaskGraph) IsComplete() bool {
	for _, t := range g.tasks {
		if t.Status != models.CompletedTaskStatus {
			return false
		}
	}
	return true
}

// HasFailed reports whether at least one task has failed.
func (g *TaskGraph) HasFailed() bool {
	for _, t := range g.tasks {
		if t.Status == models.FailedTaskStatus {
			return true
		}
	}
	return false
}

// FailedTasks returns failed tasks in insertion order.
func (g *TaskGraph) FailedTasks() []*models.Task {
	var failed []*models.Task
	for _, id := range g.order {
		if g.tasks[id].Status == models.FailedTaskStatus {
			failed = append(failed, g.tasks[id])
		}
	}
	return failed
}

// Failures returns the failed tasks as planner failure context.
func (g *TaskGraph) Failures() []models.TaskFailure {
	var failures []models.TaskFailure
	for _, t := range g.FailedTasks() {
		failures = append(failures, models.TaskFailure{
			ID:     t.ID,
			Action: t.Action,
			Error:  t.ErrorMsg,
		})
	}
	return failures
}

// Stats counts tasks per status.
func (g *TaskGraph) Stats() models.GraphStats {
	stats := models.GraphStats{Total: len(g.tasks)}
	for _, t := range g.tasks {
		switch t.Status {
		case models.PendingTaskStatus:
			stats.Pending++
		case models.ExecutingTaskStatus:
			stats.Executing++
		case models.CompletedTaskStatus:
			stats.Completed++
		case models.FailedTaskStatus:
			stats.Failed++
		}
	}
	return stats
}

// DependencyResults maps a task's dependency IDs to their results,
// restricted to dependencies that have actually completed. For a ready task
// every dependency is present by the readiness contract.
func (g *TaskGraph) DependencyResults(t *models.Task) map[string]models.TaskResult {
	results := make(map[string]models.TaskResult, len(t.DependsOn))
	for _, dep := range t.DependsOn {
		d, ok := g.tasks[dep]
		if !ok || d.Status != models.CompletedTaskStatus {
			continue
		}
		results[dep] = d.Result
	}
	return results
}

// Task returns the task with the given ID, if present.
func (g *TaskGraph) Task(id string) (*models.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Tasks returns all tasks in insertion order.
func (g *TaskGraph) Tasks() []*models.Task {
	out := make([]*models.Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int {
	return len(g.tasks)
}
