package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mwhitver/tablevault/internal/backup"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/store"
)

// Cron expressions are minute-based; poll more frequently so schedules
// trigger near the expected minute boundary.
const pollInterval = 30 * time.Second

// Runner fires due schedules. The engines themselves never retry; the
// runner wraps scheduled executions in a bounded retry policy so a
// transient storage failure does not cost a whole cron period.
type Runner struct {
	mu        sync.Mutex
	manager   *Manager
	schedules *store.ScheduleStore
	backups   *backup.Engine
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(manager *Manager, schedules *store.ScheduleStore, backups *backup.Engine, logger *slog.Logger) *Runner {
	return &Runner{
		manager:   manager,
		schedules: schedules,
		backups:   backups,
		logger:    logger,
	}
}

// Start begins the polling loop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runDue(ctx)
			}
		}
	}()
}

// Stop gracefully stops the runner.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (r *Runner) runDue(ctx context.Context) {
	now := time.Now().UTC()
	due, err := r.schedules.ListDue(now)
	if err != nil {
		r.logger.Error("list due schedules", "error", err)
		return
	}

	for _, sc := range due {
		if err := r.runOne(ctx, &sc); err != nil {
			r.logger.Error("scheduled backup failed", "schedule_id", sc.ID, "error", err)
		}
	}
}

func (r *Runner) runOne(ctx context.Context, sc *model.BackupSchedule) error {
	r.logger.Info("running scheduled backup", "schedule_id", sc.ID, "name", sc.ScheduleName)

	backoff := retry.WithMaxRetries(2, retry.NewExponential(5*time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		job, err := r.backups.ExecuteBackup(ctx, backup.Request{
			Type:       sc.BackupType,
			Tables:     sc.TablesIncluded,
			Notes:      fmt.Sprintf("scheduled by %s", sc.ScheduleName),
			ScheduleID: &sc.ID,
		})
		if err != nil {
			// Validation errors will not improve on retry.
			if model.IsValidation(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		if job.Status != model.JobStatusCompleted {
			return retry.RetryableError(fmt.Errorf("job %d failed: %s", job.ID, job.ErrorMessage))
		}
		return nil
	})

	// The trigger is consumed either way; a late or failed run is recorded
	// on its job rows, and the next period gets a fresh attempt.
	now := time.Now().UTC()
	next, nextErr := NextRun(sc.CronExpression, now)
	if nextErr != nil {
		return nextErr
	}
	if markErr := r.schedules.MarkRun(sc.ID, now, next); markErr != nil {
		return markErr
	}

	if err != nil {
		return err
	}
	return r.manager.Rotate(ctx, sc)
}
