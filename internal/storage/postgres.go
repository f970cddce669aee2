package storage

import (
	"database/sql"
	"fmt"

	"github.com/esxr/bob/pkg/models"
	"github.com/esxr/bob/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore persists run history in PostgreSQL.
type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveRun creates a new run and returns its ID
func (s *PostgresStore) SaveRun(r models.Run) (int64, error) {
	var runID int64
	err := s.db.QueryRowx("INSERT INTO runs (goal, status, cycles, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		r.Goal, r.Status, r.Cycles, r.CreatedAt, r.UpdatedAt).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	return runID, nil
}

// GetRun retrieves a run by ID
func (s *PostgresStore) GetRun(id int64) (models.Run, error) {
	var run models.Run
	err := s.db.Get(&run, "SELECT * FROM runs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Run{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Run{}, err
	}
	return run, nil
}

func (s *PostgresStore) ListRuns() ([]models.Run, error) {
	runs := []models.Run{}
	query := "SELECT id, goal, status, cycles, created_at, updated_at FROM runs ORDER BY created_at DESC"
	err := s.db.Select(&runs, query)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// UpdateRunStatus updates the status and cycle count of a run
func (s *PostgresStore) UpdateRunStatus(id int64, status models.RunStatus, cycles int) error {
	_, err := s.db.Exec("UPDATE runs SET status = $1, cycles = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3", status, cycles, id)
	return err
}

// SaveTaskRecord persists one task's terminal state for a run cycle
func (s *PostgresStore) SaveTaskRecord(t models.TaskRecord) error {
	_, err := s.db.Exec("INSERT INTO task_records (run_id, cycle, task_id, action, status, error_msg) VALUES ($1, $2, $3, $4, $5, $6)",
		t.RunID, t.Cycle, t.TaskID, t.Action, t.Status, t.ErrorMsg)
	return err
}

// GetTaskRecords retrieves all task records for a run
func (s *PostgresStore) GetTaskRecords(runID int64) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	err := s.db.Select(&records, "SELECT run_id, cycle, task_id, action, status, error_msg FROM task_records WHERE run_id = $1 ORDER BY cycle, task_id", runID)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveCycleLog persists one controller phase transition
func (s *PostgresStore) SaveCycleLog(l models.CycleLog) error {
	_, err := s.db.Exec("INSERT INTO cycle_logs (run_id, cycle, phase, message, logged_at) VALUES ($1, $2, $3, $4, $5)",
		l.RunID, l.Cycle, l.Phase, l.Message, l.LoggedAt)
	return err
}

// GetCycleLogs retrieves all cycle logs for a run in emission order
func (s *PostgresStore) GetCycleLogs(runID int64) ([]models.CycleLog, error) {
	var logs []models.CycleLog
	err := s.db.Select(&logs, "SELECT id, run_id, cycle, phase, message, logged_at FROM cycle_logs WHERE run_id = $1 ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
