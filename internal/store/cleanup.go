package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitver/tablevault/internal/model"
)

type CleanupStore struct {
	db *sql.DB
}

func NewCleanupStore(db *sql.DB) *CleanupStore {
	return &CleanupStore{db: db}
}

// Append writes one cleanup log row. It is called exactly once per cleanup
// execution, after the delete has succeeded or failed.
func (s *CleanupStore) Append(category string, recordsDeleted int64, success bool, errorDetails, notes string) (*model.CleanupLog, error) {
	var errPtr *string
	if errorDetails != "" {
		errPtr = &errorDetails
	}
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO cleanup_logs (cleanup_category, records_deleted, success, error_details, executed_at, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		category, recordsDeleted, success, errPtr, now, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("append cleanup log: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.CleanupLog{
		ID:              id,
		CleanupCategory: category,
		RecordsDeleted:  recordsDeleted,
		Success:         success,
		ErrorDetails:    errorDetails,
		ExecutedAt:      now,
		Notes:           notes,
	}, nil
}

func (s *CleanupStore) List(limit int) ([]model.CleanupLog, error) {
	rows, err := s.db.Query(
		`SELECT id, cleanup_category, records_deleted, success, error_details, executed_at, notes
		 FROM cleanup_logs ORDER BY executed_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list cleanup logs: %w", err)
	}
	defer rows.Close()

	var logs []model.CleanupLog
	for rows.Next() {
		var l model.CleanupLog
		var errDetails sql.NullString
		if err := rows.Scan(&l.ID, &l.CleanupCategory, &l.RecordsDeleted, &l.Success, &errDetails, &l.ExecutedAt, &l.Notes); err != nil {
			return nil, fmt.Errorf("scan cleanup log: %w", err)
		}
		l.ErrorDetails = errDetails.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
