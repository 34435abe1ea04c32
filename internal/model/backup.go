package model

import "time"

type BackupType string

const (
	BackupTypeFull        BackupType = "full"
	BackupTypeIncremental BackupType = "incremental"
	BackupTypeSelective   BackupType = "selective"
	BackupTypeSchemaOnly  BackupType = "schema_only"
)

// ValidBackupType reports whether t is one of the four supported backup types.
func ValidBackupType(t BackupType) bool {
	switch t {
	case BackupTypeFull, BackupTypeIncremental, BackupTypeSelective, BackupTypeSchemaOnly:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// BackupJob is one execution instance of a backup. Jobs are immutable once
// they reach a terminal status, except for administrative deletion.
type BackupJob struct {
	ID               int64      `json:"id"`
	StoragePrefix    string     `json:"storage_prefix"`
	ScheduleID       *int64     `json:"schedule_id,omitempty"`
	BackupType       BackupType `json:"backup_type"`
	Status           JobStatus  `json:"status"`
	TablesIncluded   []string   `json:"tables_included"`
	TotalTables      int        `json:"total_tables"`
	ProcessedTables  int        `json:"processed_tables"`
	TotalRecords     int64      `json:"total_records"`
	BackupSizeBytes  int64      `json:"backup_size_bytes"`
	CompressionRatio *float64   `json:"compression_ratio,omitempty"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BackupFile is one snapshot object uploaded for a job. A job may produce
// one file per table; files are deleted when their parent job is deleted.
type BackupFile struct {
	ID          int64  `json:"id"`
	BackupJobID int64  `json:"backup_job_id"`
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	SizeBytes   int64  `json:"size_bytes"`
}
