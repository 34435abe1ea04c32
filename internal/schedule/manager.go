// Package schedule manages recurring backup definitions: CRUD with cron
// validation, next-run computation, and the retention rotation that caps how
// many completed jobs a schedule keeps.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitver/tablevault/internal/blob"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/registry"
	"github.com/mwhitver/tablevault/internal/store"
)

// maxRetainedJobs caps completed backups kept per schedule. Rotation keeps
// the newest by end time, which stays idempotent under concurrent
// completions.
const maxRetainedJobs = 5

// NotifyFunc is called after schedule mutations.
type NotifyFunc func(sc *model.BackupSchedule, action string)

// CreateRequest carries the fields of a new schedule.
type CreateRequest struct {
	ScheduleName   string
	BackupType     model.BackupType
	CronExpression string
	TablesIncluded []string
	RetentionDays  int
	IsActive       bool
	Notes          string
}

// Patch updates a subset of schedule fields; nil means unchanged.
type Patch struct {
	ScheduleName   *string
	BackupType     *model.BackupType
	CronExpression *string
	TablesIncluded []string
	RetentionDays  *int
	IsActive       *bool
	Notes          *string
}

type Manager struct {
	schedules *store.ScheduleStore
	jobs      *store.BackupStore
	blobs     *blob.Store
	notify    NotifyFunc
	logger    *slog.Logger
}

func NewManager(schedules *store.ScheduleStore, jobs *store.BackupStore, blobs *blob.Store, notify NotifyFunc, logger *slog.Logger) *Manager {
	return &Manager{
		schedules: schedules,
		jobs:      jobs,
		blobs:     blobs,
		notify:    notify,
		logger:    logger,
	}
}

func (m *Manager) notifySchedule(sc *model.BackupSchedule, action string) {
	if m.notify != nil {
		m.notify(sc, action)
	}
}

// Create validates the definition and computes the first next_run.
func (m *Manager) Create(req CreateRequest) (*model.BackupSchedule, error) {
	if req.ScheduleName == "" {
		return nil, model.Validation("schedule_name is required")
	}
	if !model.ValidBackupType(req.BackupType) {
		return nil, model.Validation(fmt.Sprintf("unknown backup type: %s", req.BackupType))
	}
	if req.BackupType == model.BackupTypeSelective {
		if err := registry.ValidateAll(req.TablesIncluded); err != nil {
			return nil, err
		}
	} else if len(req.TablesIncluded) > 0 {
		return nil, model.Validation("tables may only be set for selective backups")
	}
	if req.RetentionDays <= 0 {
		return nil, model.Validation("retention_days must be positive")
	}
	if err := ValidateCron(req.CronExpression); err != nil {
		return nil, err
	}

	next, err := NextRun(req.CronExpression, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	sc, err := m.schedules.Create(&model.BackupSchedule{
		ScheduleName:   req.ScheduleName,
		BackupType:     req.BackupType,
		CronExpression: req.CronExpression,
		TablesIncluded: req.TablesIncluded,
		RetentionDays:  req.RetentionDays,
		IsActive:       req.IsActive,
		NextRun:        &next,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}
	m.notifySchedule(sc, "created")
	return sc, nil
}

// Update applies a patch. Editing the cron expression recomputes next_run
// immediately; reactivating a paused schedule recomputes it from now so a
// stale next_run does not fire a burst of missed backups.
func (m *Manager) Update(id int64, patch Patch) (*model.BackupSchedule, error) {
	sc, err := m.schedules.Get(id)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, model.Validation(fmt.Sprintf("schedule %d not found", id))
	}

	recompute := false
	reactivated := false

	if patch.ScheduleName != nil {
		if *patch.ScheduleName == "" {
			return nil, model.Validation("schedule_name is required")
		}
		sc.ScheduleName = *patch.ScheduleName
	}
	if patch.BackupType != nil {
		if !model.ValidBackupType(*patch.BackupType) {
			return nil, model.Validation(fmt.Sprintf("unknown backup type: %s", *patch.BackupType))
		}
		sc.BackupType = *patch.BackupType
	}
	if patch.TablesIncluded != nil {
		sc.TablesIncluded = patch.TablesIncluded
	}
	if sc.BackupType == model.BackupTypeSelective {
		if err := registry.ValidateAll(sc.TablesIncluded); err != nil {
			return nil, err
		}
	}
	if patch.CronExpression != nil {
		if err := ValidateCron(*patch.CronExpression); err != nil {
			return nil, err
		}
		sc.CronExpression = *patch.CronExpression
		recompute = true
	}
	if patch.RetentionDays != nil {
		if *patch.RetentionDays <= 0 {
			return nil, model.Validation("retention_days must be positive")
		}
		sc.RetentionDays = *patch.RetentionDays
	}
	if patch.IsActive != nil {
		if *patch.IsActive && !sc.IsActive {
			reactivated = true
		}
		// Pausing keeps next_run; the runner just skips inactive schedules.
		sc.IsActive = *patch.IsActive
	}
	if patch.Notes != nil {
		sc.Notes = *patch.Notes
	}

	if recompute || reactivated {
		next, err := NextRun(sc.CronExpression, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		sc.NextRun = &next
	}

	if err := m.schedules.Update(sc); err != nil {
		return nil, err
	}
	m.notifySchedule(sc, "updated")
	return sc, nil
}

// Delete removes the schedule definition only; historical jobs persist.
func (m *Manager) Delete(id int64) error {
	ok, err := m.schedules.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return model.Validation(fmt.Sprintf("schedule %d not found", id))
	}
	m.notifySchedule(&model.BackupSchedule{ID: id}, "deleted")
	return nil
}

// Rotate prunes a schedule's completed jobs down to the retention cap,
// newest first by end time, cascading to their files and blobs. Jobs older
// than the schedule's retention_days are pruned as well.
func (m *Manager) Rotate(ctx context.Context, sc *model.BackupSchedule) error {
	jobs, err := m.jobs.CompletedJobsForSchedule(sc.ID)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -sc.RetentionDays)
	for i, job := range jobs {
		if i < maxRetainedJobs && (job.EndTime == nil || job.EndTime.After(cutoff)) {
			continue
		}
		paths, err := m.jobs.DeleteJob(job.ID)
		if err != nil {
			return fmt.Errorf("rotate job %d: %w", job.ID, err)
		}
		if m.blobs != nil {
			if err := m.blobs.DeleteAll(ctx, paths); err != nil {
				m.logger.Warn("rotate backup blobs", "job_id", job.ID, "error", err)
			}
		}
		m.logger.Info("rotated out backup job", "schedule_id", sc.ID, "job_id", job.ID)
	}
	return nil
}
