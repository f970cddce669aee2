package planner

import (
	"context"
	"os"

	"github.com/esxr/bob/pkg/models"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StaticPlanner serves a fixed plan loaded from a YAML file. It ignores the
// failure context: replanning with a static plan reproduces the same graph,
// which makes it suitable for dry runs and deterministic pipelines, not for
// self-correcting agents.
type StaticPlanner struct {
	plan models.Plan
}

// Load reads a plan file of the form:
//
//	rationale: optional text
//	tasks:
//	  - id: fetch
//	    action: fetch the data
//	    payload: {kind: tool, tool: shell, args: {command: "curl ..."}}
//	  - id: process
//	    action: process it
//	    depends_on: [fetch]
func Load(path string) (*StaticPlanner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plan file %s", path)
	}
	return Parse(data)
}

// Parse builds a StaticPlanner from raw YAML plan bytes.
func Parse(data []byte) (*StaticPlanner, error) {
	var plan models.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(err, "failed to parse plan file")
	}
	if len(plan.Tasks) == 0 {
		return nil, errors.New("plan file contains no tasks")
	}
	return &StaticPlanner{plan: plan}, nil
}

// Plan returns the loaded plan regardless of goal or failure context.
func (p *StaticPlanner) Plan(_ context.Context, _ string, _ []models.TaskFailure) (models.Plan, error) {
	return p.plan, nil
}

// Tasks exposes the loaded task specs for dry-run commands.
func (p *StaticPlanner) Tasks() []models.TaskSpec {
	return p.plan.Tasks
}
