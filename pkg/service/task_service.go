package service

import (
	"fmt"
	"time"

	"github.com/esxr/bob/pkg/controller"
	"github.com/esxr/bob/pkg/graph"
	"github.com/esxr/bob/pkg/models"
	"github.com/esxr/bob/pkg/storage"
)

// TaskService persists per-cycle task records and cycle logs for a run.
type TaskService struct {
	store  storage.Store
	logger Logger
}

func NewTaskService(store storage.Store, logger Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
	}
}

// RecordCycle persists the terminal state of every task in a cycle's graph.
func (ts *TaskService) RecordCycle(runID int64, cycle int, g *graph.TaskGraph) (err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		ts.logger.Errorf("Failed to begin transaction for RecordCycle: %v", err)
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v", rollbackErr)
			}
		} else {
			if commitErr := txStore.Commit(); commitErr != nil {
				ts.logger.Errorf("Failed to commit: %v", commitErr)
				err = commitErr
			}
		}
	}()

	for _, t := range g.Tasks() {
		record := models.TaskRecord{
			RunID:    runID,
			Cycle:    cycle,
			TaskID:   t.ID,
			Action:   t.Action,
			Status:   t.Status,
			ErrorMsg: t.ErrorMsg,
		}
		if err = txStore.SaveTaskRecord(record); err != nil {
			ts.logger.Errorf("Failed to save task record %s (run %d cycle %d): %v", t.ID, runID, cycle, err)
			return fmt.Errorf("failed to save task record %s: %v", t.ID, err)
		}
	}
	return nil
}

// RecordProgress persists one controller progress entry as a cycle log row.
func (ts *TaskService) RecordProgress(runID int64, entry controller.ProgressEntry) (err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		ts.logger.Errorf("Failed to begin transaction for RecordProgress: %v", err)
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v", rollbackErr)
			}
		} else {
			if commitErr := txStore.Commit(); commitErr != nil {
				ts.logger.Errorf("Failed to commit: %v", commitErr)
				err = commitErr
			}
		}
	}()

	cycleLog := models.CycleLog{
		RunID:    runID,
		Cycle:    entry.Cycle,
		Phase:    string(entry.Phase),
		Message:  entry.Message,
		LoggedAt: time.Now(),
	}
	if err = txStore.SaveCycleLog(cycleLog); err != nil {
		ts.logger.Errorf("Failed to save cycle log for run %d: %v", runID, err)
		return fmt.Errorf("failed to save cycle log: %v", err)
	}
	return nil
}

// GetTaskRecords returns the persisted task records of a run.
func (ts *TaskService) GetTaskRecords(runID int64) ([]models.TaskRecord, error) {
	return ts.store.GetTaskRecords(runID)
}

// GetCycleLogs returns the persisted cycle logs of a run.
func (ts *TaskService) GetCycleLogs(runID int64) ([]models.CycleLog, error) {
	return ts.store.GetCycleLogs(runID)
}
