package storage

import (
	"time"

	"github.com/esxr/bob/pkg/models"
	"github.com/pkg/errors"
)

// mockStore implements storage.Store with in-memory storage
type mockStore struct {
	runs      []models.Run
	records   []models.TaskRecord
	cycleLogs []models.CycleLog
	nextRunID int64
	nextLogID int64
	committed bool // Transaction state
}

func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Begin() (Store, error) {
	// Each Begin opens a fresh logical transaction on the same instance.
	m.committed = false
	return m, nil
}

func (m *mockStore) Commit() error {
	if m.committed {
		return errors.New("already committed")
	}
	m.committed = true
	return nil
}

func (m *mockStore) Rollback() error {
	if m.committed {
		return errors.New("cannot rollback committed transaction")
	}
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

func (m *mockStore) SaveRun(r models.Run) (int64, error) {
	if m.committed {
		return 0, errors.New("transaction already committed")
	}
	m.nextRunID++
	r.ID = m.nextRunID
	m.runs = append(m.runs, r)
	return r.ID, nil
}

func (m *mockStore) GetRun(id int64) (models.Run, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Run{}, ErrNotFound
}

func (m *mockStore) ListRuns() ([]models.Run, error) {
	return m.runs, nil
}

func (m *mockStore) UpdateRunStatus(id int64, status models.RunStatus, cycles int) error {
	if m.committed {
		return errors.New("transaction already committed")
	}
	for i, r := range m.runs {
		if r.ID == id {
			m.runs[i].Status = status
			m.runs[i].Cycles = cycles
			m.runs[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveTaskRecord(t models.TaskRecord) error {
	if m.committed {
		return errors.New("transaction already committed")
	}
	// One record per (run, cycle, task)
	for _, existing := range m.records {
		if existing.RunID == t.RunID && existing.Cycle == t.Cycle && existing.TaskID == t.TaskID {
			return errors.New("task record already exists")
		}
	}
	m.records = append(m.records, t)
	return nil
}

func (m *mockStore) GetTaskRecords(runID int64) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	for _, t := range m.records {
		if t.RunID == runID {
			records = append(records, t)
		}
	}
	return records, nil
}

func (m *mockStore) SaveCycleLog(l models.CycleLog) error {
	if m.committed {
		return errors.New("transaction already committed")
	}
	m.nextLogID++
	l.ID = m.nextLogID
	m.cycleLogs = append(m.cycleLogs, l)
	return nil
}

func (m *mockStore) GetCycleLogs(runID int64) ([]models.CycleLog, error) {
	var logs []models.CycleLog
	for _, l := range m.cycleLogs {
		if l.RunID == runID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}
