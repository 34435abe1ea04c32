package model

import "time"

type RestoreType string

const (
	RestoreTypeFull      RestoreType = "full"
	RestoreTypeSelective RestoreType = "selective"
)

// ConflictStrategy governs how a restore reconciles a backed-up row with an
// existing row sharing the same primary key.
type ConflictStrategy string

const (
	ConflictReplace ConflictStrategy = "replace"
	ConflictSkip    ConflictStrategy = "skip"
	ConflictMerge   ConflictStrategy = "merge"
)

// ValidConflictStrategy reports whether s is a supported conflict strategy.
func ValidConflictStrategy(s ConflictStrategy) bool {
	switch s {
	case ConflictReplace, ConflictSkip, ConflictMerge:
		return true
	}
	return false
}

// RestoreLog records one restore attempt against a completed backup job.
type RestoreLog struct {
	ID               int64            `json:"id"`
	BackupJobID      int64            `json:"backup_job_id"`
	RestoreType      RestoreType      `json:"restore_type"`
	Status           JobStatus        `json:"status"`
	TablesRestored   []string         `json:"tables_restored"`
	RecordsRestored  int64            `json:"records_restored"`
	ConflictStrategy ConflictStrategy `json:"conflict_strategy"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          *time.Time       `json:"end_time,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}
