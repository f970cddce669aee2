package runner

import (
	"context"
	"os/exec"
	"strings"

	"github.com/esxr/bob/pkg/models"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for LocalRunner
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LocalRunner executes tool payloads on the local machine. Only the "shell"
// tool is supported; query, subagent and auto payloads need an LLM
// collaborator this runner doesn't carry and are rejected as task errors.
type LocalRunner struct {
	logger Logger
}

func NewLocalRunner(logger Logger) *LocalRunner {
	return &LocalRunner{logger: logger}
}

// Run executes one task's payload and returns its combined output.
func (r *LocalRunner) Run(ctx context.Context, task *models.Task, _ map[string]models.TaskResult) (models.TaskResult, error) {
	kind := task.Payload.Kind
	if kind == "" {
		kind = models.AutoPayload
	}
	switch kind {
	case models.ToolPayload:
		return r.runTool(ctx, task)
	case models.QueryPayload, models.SubagentPayload, models.AutoPayload:
		return nil, errors.Errorf("payload kind '%s' requires an agent collaborator", kind)
	default:
		return nil, errors.Errorf("unknown payload kind '%s'", kind)
	}
}

func (r *LocalRunner) runTool(ctx context.Context, task *models.Task) (models.TaskResult, error) {
	if task.Payload.Tool != "shell" {
		return nil, errors.Errorf("unsupported tool '%s'", task.Payload.Tool)
	}
	command, _ := task.Payload.Args["command"].(string)
	if command == "" {
		return nil, errors.New("shell payload missing 'command' argument")
	}

	r.logger.Infof("Running shell command for task %s", task.ID)
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Errorf("Shell command for task %s failed: %v", task.ID, err)
		return nil, errors.Wrapf(err, "command failed: %s", strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
