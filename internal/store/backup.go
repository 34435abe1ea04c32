package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitver/tablevault/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const jobColumns = `id, storage_prefix, schedule_id, backup_type, status, tables_included,
	total_tables, processed_tables, total_records, backup_size_bytes, compression_ratio,
	start_time, end_time, error_message, notes, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*model.BackupJob, error) {
	j := &model.BackupJob{}
	var scheduleID sql.NullInt64
	var tablesRaw string
	var ratio sql.NullFloat64
	var endTime sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&j.ID, &j.StoragePrefix, &scheduleID, &j.BackupType, &j.Status, &tablesRaw,
		&j.TotalTables, &j.ProcessedTables, &j.TotalRecords, &j.BackupSizeBytes, &ratio,
		&j.StartTime, &endTime, &errMsg, &j.Notes, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduleID.Valid {
		j.ScheduleID = &scheduleID.Int64
	}
	if ratio.Valid {
		j.CompressionRatio = &ratio.Float64
	}
	if endTime.Valid {
		j.EndTime = &endTime.Time
	}
	j.ErrorMessage = errMsg.String
	tables, err := decodeNames(tablesRaw)
	if err != nil {
		return nil, err
	}
	j.TablesIncluded = tables
	return j, nil
}

// CreateJob inserts a new backup job in pending status.
func (s *BackupStore) CreateJob(storagePrefix string, scheduleID *int64, backupType model.BackupType, notes string) (*model.BackupJob, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backup_jobs (storage_prefix, schedule_id, backup_type, status, notes, start_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		storagePrefix, scheduleID, backupType, model.JobStatusPending, notes, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup job: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.BackupJob{
		ID:             id,
		StoragePrefix:  storagePrefix,
		ScheduleID:     scheduleID,
		BackupType:     backupType,
		Status:         model.JobStatusPending,
		TablesIncluded: []string{},
		StartTime:      now,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *BackupStore) GetJob(id int64) (*model.BackupJob, error) {
	j, err := scanJob(s.db.QueryRow(
		`SELECT `+jobColumns+` FROM backup_jobs WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup job %d: %w", id, err)
	}
	return j, nil
}

func (s *BackupStore) ListJobs(limit int) ([]model.BackupJob, error) {
	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM backup_jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backup jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.BackupJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// MarkRunning transitions a pending job to running and records the size of
// the resolved table set.
func (s *BackupStore) MarkRunning(id int64, totalTables int) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backup_jobs SET status = ?, total_tables = ?, updated_at = ? WHERE id = ?`,
		model.JobStatusRunning, totalTables, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

// UpdateProgress records per-table progress while a job is running.
func (s *BackupStore) UpdateProgress(id int64, processedTables int, totalRecords int64) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backup_jobs SET processed_tables = ?, total_records = ?, updated_at = ? WHERE id = ?`,
		processedTables, totalRecords, now, id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a job as completed with its aggregate counts.
func (s *BackupStore) MarkCompleted(id int64, tablesIncluded []string, processedTables int, totalRecords, sizeBytes int64, compressionRatio *float64) error {
	tablesRaw, err := encodeNames(tablesIncluded)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`UPDATE backup_jobs
		 SET status = ?, tables_included = ?, processed_tables = ?, total_records = ?,
		     backup_size_bytes = ?, compression_ratio = ?, end_time = ?, updated_at = ?
		 WHERE id = ?`,
		model.JobStatusCompleted, tablesRaw, processedTables, totalRecords,
		sizeBytes, compressionRatio, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes a job as failed, preserving whatever partial counts
// were reached.
func (s *BackupStore) MarkFailed(id int64, tablesIncluded []string, processedTables int, totalRecords, sizeBytes int64, errMsg string) error {
	tablesRaw, err := encodeNames(tablesIncluded)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`UPDATE backup_jobs
		 SET status = ?, tables_included = ?, processed_tables = ?, total_records = ?,
		     backup_size_bytes = ?, end_time = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		model.JobStatusFailed, tablesRaw, processedTables, totalRecords,
		sizeBytes, now, errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// AddFile records one uploaded snapshot object for a job.
func (s *BackupStore) AddFile(jobID int64, filePath, fileName string, sizeBytes int64) (*model.BackupFile, error) {
	result, err := s.db.Exec(
		`INSERT INTO backup_files (backup_job_id, file_path, file_name, size_bytes) VALUES (?, ?, ?, ?)`,
		jobID, filePath, fileName, sizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("add backup file: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.BackupFile{
		ID:          id,
		BackupJobID: jobID,
		FilePath:    filePath,
		FileName:    fileName,
		SizeBytes:   sizeBytes,
	}, nil
}

func (s *BackupStore) ListFiles(jobID int64) ([]model.BackupFile, error) {
	rows, err := s.db.Query(
		`SELECT id, backup_job_id, file_path, file_name, size_bytes
		 FROM backup_files WHERE backup_job_id = ? ORDER BY id`, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list backup files: %w", err)
	}
	defer rows.Close()

	var files []model.BackupFile
	for rows.Next() {
		var f model.BackupFile
		if err := rows.Scan(&f.ID, &f.BackupJobID, &f.FilePath, &f.FileName, &f.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan backup file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *BackupStore) GetFile(jobID, fileID int64) (*model.BackupFile, error) {
	f := &model.BackupFile{}
	err := s.db.QueryRow(
		`SELECT id, backup_job_id, file_path, file_name, size_bytes
		 FROM backup_files WHERE id = ? AND backup_job_id = ?`, fileID, jobID,
	).Scan(&f.ID, &f.BackupJobID, &f.FilePath, &f.FileName, &f.SizeBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup file %d: %w", fileID, err)
	}
	return f, nil
}

// DeleteJob removes a job row and returns the storage paths of its files so
// the caller can delete the blobs. File rows are removed by cascade.
func (s *BackupStore) DeleteJob(id int64) ([]string, error) {
	files, err := s.ListFiles(id)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}

	result, err := s.db.Exec(`DELETE FROM backup_jobs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("delete backup job %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return paths, nil
}

// LatestCompletedEndTime returns the end time of the most recent completed
// job, or nil if none exists. Incremental backups diff against it.
func (s *BackupStore) LatestCompletedEndTime() (*time.Time, error) {
	var end sql.NullTime
	err := s.db.QueryRow(
		`SELECT MAX(end_time) FROM backup_jobs WHERE status = ?`, model.JobStatusCompleted,
	).Scan(&end)
	if err != nil {
		return nil, fmt.Errorf("latest completed end time: %w", err)
	}
	if !end.Valid {
		return nil, nil
	}
	return &end.Time, nil
}

// CompletedJobsForSchedule returns a schedule's completed jobs, newest first
// by end time. Retention rotation keeps the head of this list.
func (s *BackupStore) CompletedJobsForSchedule(scheduleID int64) ([]model.BackupJob, error) {
	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM backup_jobs
		 WHERE schedule_id = ? AND status = ?
		 ORDER BY end_time DESC, id DESC`, scheduleID, model.JobStatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("completed jobs for schedule %d: %w", scheduleID, err)
	}
	defer rows.Close()

	var jobs []model.BackupJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}
