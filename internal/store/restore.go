package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitver/tablevault/internal/model"
)

type RestoreStore struct {
	db *sql.DB
}

func NewRestoreStore(db *sql.DB) *RestoreStore {
	return &RestoreStore{db: db}
}

const restoreColumns = `id, backup_job_id, restore_type, status, tables_restored,
	records_restored, conflict_strategy, start_time, end_time, error_message, notes`

func scanRestoreLog(row interface{ Scan(...any) error }) (*model.RestoreLog, error) {
	l := &model.RestoreLog{}
	var tablesRaw string
	var endTime sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&l.ID, &l.BackupJobID, &l.RestoreType, &l.Status, &tablesRaw,
		&l.RecordsRestored, &l.ConflictStrategy, &l.StartTime, &endTime, &errMsg, &l.Notes)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		l.EndTime = &endTime.Time
	}
	l.ErrorMessage = errMsg.String
	tables, err := decodeNames(tablesRaw)
	if err != nil {
		return nil, err
	}
	l.TablesRestored = tables
	return l, nil
}

// Create inserts a new restore log in pending status.
func (s *RestoreStore) Create(backupJobID int64, restoreType model.RestoreType, strategy model.ConflictStrategy, notes string) (*model.RestoreLog, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO restore_logs (backup_job_id, restore_type, status, conflict_strategy, notes, start_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		backupJobID, restoreType, model.JobStatusPending, strategy, notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create restore log: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.RestoreLog{
		ID:               id,
		BackupJobID:      backupJobID,
		RestoreType:      restoreType,
		Status:           model.JobStatusPending,
		TablesRestored:   []string{},
		ConflictStrategy: strategy,
		StartTime:        now,
		Notes:            notes,
	}, nil
}

func (s *RestoreStore) Get(id int64) (*model.RestoreLog, error) {
	l, err := scanRestoreLog(s.db.QueryRow(
		`SELECT `+restoreColumns+` FROM restore_logs WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get restore log %d: %w", id, err)
	}
	return l, nil
}

func (s *RestoreStore) List(limit int) ([]model.RestoreLog, error) {
	rows, err := s.db.Query(
		`SELECT `+restoreColumns+` FROM restore_logs ORDER BY start_time DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list restore logs: %w", err)
	}
	defer rows.Close()

	var logs []model.RestoreLog
	for rows.Next() {
		l, err := scanRestoreLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restore log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (s *RestoreStore) MarkRunning(id int64) error {
	_, err := s.db.Exec(
		`UPDATE restore_logs SET status = ? WHERE id = ?`, model.JobStatusRunning, id,
	)
	if err != nil {
		return fmt.Errorf("mark restore running: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a restore log as completed.
func (s *RestoreStore) MarkCompleted(id int64, tablesRestored []string, recordsRestored int64) error {
	tablesRaw, err := encodeNames(tablesRestored)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`UPDATE restore_logs
		 SET status = ?, tables_restored = ?, records_restored = ?, end_time = ?
		 WHERE id = ?`,
		model.JobStatusCompleted, tablesRaw, recordsRestored, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark restore completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes a restore log as failed, keeping the counts for the
// tables that were applied before the failure.
func (s *RestoreStore) MarkFailed(id int64, tablesRestored []string, recordsRestored int64, errMsg string) error {
	tablesRaw, err := encodeNames(tablesRestored)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`UPDATE restore_logs
		 SET status = ?, tables_restored = ?, records_restored = ?, end_time = ?, error_message = ?
		 WHERE id = ?`,
		model.JobStatusFailed, tablesRaw, recordsRestored, now, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark restore failed: %w", err)
	}
	return nil
}
