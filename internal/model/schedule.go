package model

import "time"

// BackupSchedule is a recurring backup definition. An inactive schedule keeps
// its next_run but is skipped by the runner until reactivated.
type BackupSchedule struct {
	ID             int64      `json:"id"`
	ScheduleName   string     `json:"schedule_name"`
	BackupType     BackupType `json:"backup_type"`
	CronExpression string     `json:"cron_expression"`
	TablesIncluded []string   `json:"tables_included,omitempty"`
	RetentionDays  int        `json:"retention_days"`
	IsActive       bool       `json:"is_active"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
