package service

import (
	"context"
	"time"

	"github.com/esxr/bob/pkg/controller"
	"github.com/esxr/bob/pkg/graph"
	"github.com/esxr/bob/pkg/models"
	"github.com/esxr/bob/pkg/scheduler"
	"github.com/esxr/bob/pkg/storage"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for RunService
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// RunService manages recorded runs of the plan/execute/replan controller.
// A run is one goal driven to success or failure, persisted with a unique ID
// together with its cycle logs and per-cycle task records.
type RunService struct {
	store  storage.Store
	logger Logger
	tasks  *TaskService
}

func NewRunService(store storage.Store, logger Logger) *RunService {
	return &RunService{
		store:  store,
		logger: logger,
		tasks:  NewTaskService(store, logger),
	}
}

func (s *RunService) CreateRun(goal string) (id int64, err error) {
	if goal == "" {
		return 0, errors.New("run goal cannot be empty")
	}
	if len(goal) > 500 {
		return 0, errors.New("run goal too long (max 500 characters)")
	}
	txStore, err := s.store.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	run := models.Run{
		Goal:      goal,
		Status:    models.PendingRunStatus,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	id, err = txStore.SaveRun(run)
	if err != nil {
		return 0, err
	}
	s.logger.Infof("Created run for goal '%s' with ID %d", goal, id)
	return id, nil
}

// UpdateRunStatus updates the status of an existing run by ID.
func (s *RunService) UpdateRunStatus(id int64, status string, cycles int) error {
	if id <= 0 {
		return errors.New("run ID must be positive")
	}
	runStatus := models.RunStatus(status)
	switch runStatus {
	case models.PendingRunStatus, models.RunningRunStatus,
		models.CompletedRunStatus, models.FailedRunStatus:
		// Valid status, proceed
	default:
		return errors.New("invalid status; must be 'PENDING', 'RUNNING', 'COMPLETED', or 'FAILED'")
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	// Fetch existing run to ensure it exists
	run, err := txStore.GetRun(id)
	if err != nil {
		return err
	}

	if err = txStore.UpdateRunStatus(run.ID, runStatus, cycles); err != nil {
		return err
	}

	s.logger.Infof("Updated run ID %d to status '%s'", id, status)
	return nil
}

func (s *RunService) ListRuns() ([]models.Run, error) {
	return s.store.ListRuns()
}

// GetRun fetches a run by ID.
func (s *RunService) GetRun(runID int64) (models.Run, error) {
	run, err := s.store.GetRun(runID)
	if err != nil {
		return models.Run{}, errors.Wrapf(err, "failed to get run %d", runID)
	}
	return run, nil
}

// GetCycleLogs returns the persisted cycle logs of a run.
func (s *RunService) GetCycleLogs(runID int64) ([]models.CycleLog, error) {
	return s.tasks.GetCycleLogs(runID)
}

// GetTaskRecords returns the persisted task records of a run.
func (s *RunService) GetTaskRecords(runID int64) ([]models.TaskRecord, error) {
	return s.tasks.GetTaskRecords(runID)
}

// recorder wires the controller's side channels to the history store.
type recorder struct {
	runID int64
	tasks *TaskService
}

func (r *recorder) Record(entry controller.ProgressEntry) {
	// Best-effort: the history is a sink, a write failure must not disturb
	// the run itself.
	_ = r.tasks.RecordProgress(r.runID, entry)
}

func (r *recorder) ObserveCycle(cycle int, g *graph.TaskGraph) {
	_ = r.tasks.RecordCycle(r.runID, cycle, g)
}

// ExecuteRun drives an existing run's goal through the controller, recording
// cycle logs and per-cycle task records, and settles the run's status.
func (s *RunService) ExecuteRun(
	ctx context.Context,
	runID int64,
	planner controller.Planner,
	runner scheduler.TaskRunner,
	opts ...controller.Option,
) (controller.Outcome, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return controller.Outcome{}, err
	}
	if err := s.UpdateRunStatus(runID, string(models.RunningRunStatus), 0); err != nil {
		return controller.Outcome{}, errors.Wrapf(err, "failed to set run %d to RUNNING", runID)
	}

	rec := &recorder{runID: runID, tasks: s.tasks}
	sched := scheduler.NewScheduler(runner, s.logger)
	ctrl := controller.NewController(
		planner,
		sched,
		s.logger,
		append([]controller.Option{controller.WithSink(rec), controller.WithObserver(rec)}, opts...)...,
	)

	outcome, runErr := ctrl.Run(ctx, run.Goal)

	status := models.CompletedRunStatus
	if !outcome.Success {
		status = models.FailedRunStatus
	}
	if err := s.UpdateRunStatus(runID, string(status), outcome.Cycles); err != nil {
		s.logger.Errorf("Failed to settle run %d status to %s: %v", runID, status, err)
	}
	s.logger.Infof("Run %d finished with status %s after %d cycle(s)", runID, status, outcome.Cycles)
	return outcome, runErr
}
