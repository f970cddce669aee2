package models

// TaskSpec is the planner's description of one task, before a graph exists.
type TaskSpec struct {
	ID        string   `json:"id" yaml:"id"`
	Action    string   `json:"action" yaml:"action"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
	Payload   Payload  `json:"payload,omitempty" yaml:"payload"`
}

// Plan is the planner's output for one cycle. IDs must be unique within a
// single plan; the controller does not deduplicate across planner calls.
type Plan struct {
	Tasks     []TaskSpec `json:"tasks" yaml:"tasks"`
	Rationale string     `json:"rationale,omitempty" yaml:"rationale"`
}
