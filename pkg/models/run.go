package models

import "time"

type RunStatus string

const (
	PendingRunStatus   RunStatus = "PENDING"
	RunningRunStatus   RunStatus = "RUNNING"
	CompletedRunStatus RunStatus = "COMPLETED"
	FailedRunStatus    RunStatus = "FAILED"
)

// Run is one recorded controller execution of a goal. Runs are an audit
// trail: the controller never reads them back to make decisions.
type Run struct {
	ID        int64     `json:"id" db:"id"`                 // Unique identifier (PostgreSQL auto-increment)
	Goal      string    `json:"goal" db:"goal"`             // Goal text handed to the planner
	Status    RunStatus `json:"status" db:"status"`         // "PENDING", "RUNNING", "COMPLETED", "FAILED"
	Cycles    int       `json:"cycles" db:"cycles"`         // Plan/execute cycles consumed
	CreatedAt time.Time `json:"created_at" db:"created_at"` // Creation timestamp
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // Last update timestamp
}

// TaskRecord is the persisted snapshot of one task's terminal state within
// a run cycle.
type TaskRecord struct {
	RunID    int64      `json:"run_id" db:"run_id"`             // Parent run
	Cycle    int        `json:"cycle" db:"cycle"`               // Plan cycle the task belonged to
	TaskID   string     `json:"task_id" db:"task_id"`           // Task ID within that cycle's graph
	Action   string     `json:"action" db:"action"`             // Task description
	Status   TaskStatus `json:"status" db:"status"`             // Terminal status after the cycle
	ErrorMsg string     `json:"error,omitempty" db:"error_msg"` // Last error message (optional)
}

// CycleLog tracks controller phase transitions for auditing.
type CycleLog struct {
	ID       int64     `json:"id" db:"id"`                     // Auto-incremented log ID
	RunID    int64     `json:"run_id" db:"run_id"`             // Parent run
	Cycle    int       `json:"cycle" db:"cycle"`               // Plan cycle number
	Phase    string    `json:"phase" db:"phase"`               // Controller phase at this point
	Message  string    `json:"message,omitempty" db:"message"` // Details (e.g., error or success note)
	LoggedAt time.Time `json:"logged_at" db:"logged_at"`       // Timestamp of log entry
}
