package models

type TaskStatus string

const (
	PendingTaskStatus   TaskStatus = "PENDING"
	ExecutingTaskStatus TaskStatus = "EXECUTING"
	CompletedTaskStatus TaskStatus = "COMPLETED"
	FailedTaskStatus    TaskStatus = "FAILED"
)

// TaskResult represents the output of a task
type TaskResult interface{}

// Task is one unit of work inside a task graph. A Task is owned by the
// graph that created it; status, result and error are mutated during
// execution, everything else is fixed at construction.
type Task struct {
	ID        string     `json:"id" yaml:"id"`                           // Unique identifier within a graph
	Action    string     `json:"action" yaml:"action"`                   // Human-readable description, advisory only
	DependsOn []string   `json:"depends_on,omitempty" yaml:"depends_on"` // Task IDs that must complete first
	Payload   Payload    `json:"payload,omitempty" yaml:"payload"`       // Forwarded verbatim to the TaskRunner
	Status    TaskStatus `json:"status" yaml:"-"`                        // "PENDING", "EXECUTING", "COMPLETED", "FAILED"
	Result    TaskResult `json:"result,omitempty" yaml:"-"`              // Set only on COMPLETED
	ErrorMsg  string     `json:"error,omitempty" yaml:"-"`               // Set only on FAILED
}

// TaskFailure summarizes one failed task for the planner's failure context.
type TaskFailure struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// GraphStats counts tasks per status; the per-status fields always sum to Total.
type GraphStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Executing int `json:"executing"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ValidationResult is the outcome of TaskGraph validation. Errors holds one
// message per structural problem so a planner can be told about all of them.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
