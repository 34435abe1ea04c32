package store

import (
	"testing"
	"time"

	"github.com/mwhitver/tablevault/internal/database"
	"github.com/mwhitver/tablevault/internal/model"
)

func setupScheduleStore(t *testing.T) *ScheduleStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewScheduleStore(db)
}

func TestScheduleCreateAndGet(t *testing.T) {
	ss := setupScheduleStore(t)

	next := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	sc, err := ss.Create(&model.BackupSchedule{
		ScheduleName:   "nightly-full",
		BackupType:     model.BackupTypeFull,
		CronExpression: "0 2 * * *",
		RetentionDays:  30,
		IsActive:       true,
		NextRun:        &next,
		Notes:          "primary schedule",
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if sc.ID == 0 {
		t.Error("expected non-zero ID")
	}

	got, err := ss.Get(sc.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if got.ScheduleName != "nightly-full" {
		t.Errorf("schedule_name = %q", got.ScheduleName)
	}
	if got.NextRun == nil || !got.NextRun.Equal(next) {
		t.Errorf("next_run = %v, want %v", got.NextRun, next)
	}
	if !got.IsActive {
		t.Error("expected active schedule")
	}
}

func TestScheduleListDue(t *testing.T) {
	ss := setupScheduleStore(t)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	ss.Create(&model.BackupSchedule{
		ScheduleName: "due", BackupType: model.BackupTypeFull,
		CronExpression: "0 * * * *", RetentionDays: 7, IsActive: true, NextRun: &past,
	})
	ss.Create(&model.BackupSchedule{
		ScheduleName: "not-due", BackupType: model.BackupTypeFull,
		CronExpression: "0 * * * *", RetentionDays: 7, IsActive: true, NextRun: &future,
	})
	ss.Create(&model.BackupSchedule{
		ScheduleName: "paused", BackupType: model.BackupTypeFull,
		CronExpression: "0 * * * *", RetentionDays: 7, IsActive: false, NextRun: &past,
	})

	due, err := ss.ListDue(time.Now().UTC())
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("len(due) = %d, want 1", len(due))
	}
	if due[0].ScheduleName != "due" {
		t.Errorf("due schedule = %q, want %q", due[0].ScheduleName, "due")
	}
}

func TestSchedulePauseKeepsNextRun(t *testing.T) {
	ss := setupScheduleStore(t)

	next := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	sc, _ := ss.Create(&model.BackupSchedule{
		ScheduleName: "weekly", BackupType: model.BackupTypeSelective,
		TablesIncluded: []string{"companies"}, CronExpression: "0 3 * * 0",
		RetentionDays: 14, IsActive: true, NextRun: &next,
	})

	sc.IsActive = false
	if err := ss.Update(sc); err != nil {
		t.Fatalf("update schedule: %v", err)
	}

	got, _ := ss.Get(sc.ID)
	if got.IsActive {
		t.Error("expected schedule to be paused")
	}
	if got.NextRun == nil {
		t.Error("pausing must not clear next_run")
	}
}

func TestScheduleMarkRun(t *testing.T) {
	ss := setupScheduleStore(t)

	sc, _ := ss.Create(&model.BackupSchedule{
		ScheduleName: "hourly", BackupType: model.BackupTypeIncremental,
		CronExpression: "0 * * * *", RetentionDays: 7, IsActive: true,
	})

	last := time.Now().UTC().Truncate(time.Second)
	next := last.Add(time.Hour)
	if err := ss.MarkRun(sc.ID, last, next); err != nil {
		t.Fatalf("mark run: %v", err)
	}

	got, _ := ss.Get(sc.ID)
	if got.LastRun == nil || !got.LastRun.Equal(last) {
		t.Errorf("last_run = %v, want %v", got.LastRun, last)
	}
	if got.NextRun == nil || !got.NextRun.Equal(next) {
		t.Errorf("next_run = %v, want %v", got.NextRun, next)
	}
}

func TestScheduleDelete(t *testing.T) {
	ss := setupScheduleStore(t)

	sc, _ := ss.Create(&model.BackupSchedule{
		ScheduleName: "tmp", BackupType: model.BackupTypeFull,
		CronExpression: "0 2 * * *", RetentionDays: 7, IsActive: true,
	})

	ok, err := ss.Delete(sc.ID)
	if err != nil {
		t.Fatalf("delete schedule: %v", err)
	}
	if !ok {
		t.Error("expected delete to report a removed row")
	}

	got, _ := ss.Get(sc.ID)
	if got != nil {
		t.Error("expected schedule to be gone")
	}

	ok, _ = ss.Delete(sc.ID)
	if ok {
		t.Error("second delete should report nothing removed")
	}
}

func TestScheduleDeleteKeepsJobs(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ss := NewScheduleStore(db)
	bs := NewBackupStore(db)

	sc, _ := ss.Create(&model.BackupSchedule{
		ScheduleName: "historic", BackupType: model.BackupTypeFull,
		CronExpression: "0 2 * * *", RetentionDays: 7, IsActive: true,
	})
	job, _ := bs.CreateJob("backups/h", &sc.ID, model.BackupTypeFull, "")
	bs.MarkRunning(job.ID, 1)
	bs.MarkCompleted(job.ID, []string{"companies"}, 1, 1, 1, nil)

	if _, err := ss.Delete(sc.ID); err != nil {
		t.Fatalf("delete schedule: %v", err)
	}

	got, err := bs.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got == nil {
		t.Fatal("historical job must survive schedule deletion")
	}
	if got.ScheduleID != nil {
		t.Errorf("schedule_id = %v, want nil after schedule deletion", got.ScheduleID)
	}
}
