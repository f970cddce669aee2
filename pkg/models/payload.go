package models

// PayloadKind discriminates how a task wants to be executed. The closed set
// of variants is interpreted by the TaskRunner; the core never looks inside.
type PayloadKind string

const (
	ToolPayload     PayloadKind = "tool"     // invoke a named tool with arguments
	QueryPayload    PayloadKind = "query"    // ask a sub-query
	SubagentPayload PayloadKind = "subagent" // delegate to a sub-agent
	AutoPayload     PayloadKind = "auto"     // let the runner pick
)

// Payload carries the execution instructions for one task. Which fields are
// meaningful depends on Kind; an empty Kind is treated as "auto" by runners.
type Payload struct {
	Kind  PayloadKind            `json:"kind,omitempty" yaml:"kind"`
	Tool  string                 `json:"tool,omitempty" yaml:"tool"`
	Args  map[string]interface{} `json:"args,omitempty" yaml:"args"`
	Query string                 `json:"query,omitempty" yaml:"query"`
	Agent string                 `json:"agent,omitempty" yaml:"agent"`
}
