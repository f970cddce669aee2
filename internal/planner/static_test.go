package planner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/esxr/bob/internal/planner"
	"github.com/esxr/bob/pkg/graph"
	"github.com/esxr/bob/pkg/models"
	"github.com/stretchr/testify/assert"
)

const samplePlan = `
rationale: fetch then summarize
tasks:
  - id: fetch
    action: fetch the data
    payload:
      kind: tool
      tool: shell
      args:
        command: "echo hello"
  - id: summarize
    action: summarize the data
    depends_on: [fetch]
    payload:
      kind: query
      query: "summarize it"
`

func TestParse(t *testing.T) {
	p, err := planner.Parse([]byte(samplePlan))
	assert.NoError(t, err)

	plan, err := p.Plan(context.Background(), "goal", nil)
	assert.NoError(t, err)
	assert.Equal(t, "fetch then summarize", plan.Rationale)
	assert.Len(t, plan.Tasks, 2)

	fetch := plan.Tasks[0]
	assert.Equal(t, "fetch", fetch.ID)
	assert.Equal(t, models.ToolPayload, fetch.Payload.Kind)
	assert.Equal(t, "shell", fetch.Payload.Tool)
	assert.Equal(t, "echo hello", fetch.Payload.Args["command"])

	summarize := plan.Tasks[1]
	assert.Equal(t, []string{"fetch"}, summarize.DependsOn)
	assert.Equal(t, models.QueryPayload, summarize.Payload.Kind)

	// The loaded plan builds a valid graph.
	g := graph.New(p.Tasks())
	assert.True(t, g.Validate().Valid)
}

func TestParse_Invalid(t *testing.T) {
	_, err := planner.Parse([]byte("tasks: ["))
	assert.Error(t, err)

	_, err = planner.Parse([]byte("rationale: no tasks here"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no tasks")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(samplePlan), 0o644))

	p, err := planner.Load(path)
	assert.NoError(t, err)
	assert.Len(t, p.Tasks(), 2)

	_, err = planner.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestPlan_IgnoresFailureContext(t *testing.T) {
	p, err := planner.Parse([]byte(samplePlan))
	assert.NoError(t, err)

	first, err := p.Plan(context.Background(), "goal", nil)
	assert.NoError(t, err)
	second, err := p.Plan(context.Background(), "goal", []models.TaskFailure{{ID: "fetch", Error: "boom"}})
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}
