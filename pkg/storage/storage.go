package storage

import (
	"github.com/esxr/bob/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the run-history operations. The history is a pure audit
// sink: the controller writes it but never reads it back into scheduling
// decisions.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Run operations
	SaveRun(r models.Run) (int64, error)
	GetRun(id int64) (models.Run, error)
	ListRuns() ([]models.Run, error)
	UpdateRunStatus(id int64, status models.RunStatus, cycles int) error

	// Task record operations
	SaveTaskRecord(t models.TaskRecord) error
	GetTaskRecords(runID int64) ([]models.TaskRecord, error)

	// Cycle log operations
	SaveCycleLog(l models.CycleLog) error
	GetCycleLogs(runID int64) ([]models.CycleLog, error)
}
