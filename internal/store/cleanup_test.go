package store

import (
	"testing"

	"github.com/mwhitver/tablevault/internal/database"
)

func setupCleanupStore(t *testing.T) *CleanupStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCleanupStore(db)
}

func TestCleanupAppendSuccess(t *testing.T) {
	cs := setupCleanupStore(t)

	l, err := cs.Append("activity_logs", 42, true, "", "pre-migration purge")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if l.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if !l.Success || l.RecordsDeleted != 42 {
		t.Errorf("got success=%v deleted=%d", l.Success, l.RecordsDeleted)
	}

	logs, err := cs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(logs))
	}
	if logs[0].ErrorDetails != "" {
		t.Errorf("error_details = %q, want empty", logs[0].ErrorDetails)
	}
}

func TestCleanupAppendFailureRecordsPartial(t *testing.T) {
	cs := setupCleanupStore(t)

	l, err := cs.Append("orphaned_profiles", 7, false, "delete interrupted: disk I/O error", "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if l.Success {
		t.Error("expected failure log")
	}

	logs, _ := cs.List(10)
	if logs[0].RecordsDeleted != 7 {
		t.Errorf("records_deleted = %d, want partial count 7", logs[0].RecordsDeleted)
	}
	if logs[0].ErrorDetails == "" {
		t.Error("failure log must carry error_details")
	}
}
