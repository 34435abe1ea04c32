package database

import (
	"testing"
	"time"
)

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busy int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatalf("read busy_timeout pragma: %v", err)
	}
	if busy != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busy)
	}
}

func TestDeleteCascadesToFiles(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	res, err := db.Exec(
		"INSERT INTO backup_jobs (storage_prefix, backup_type, status, start_time, created_at, updated_at) VALUES ('backups/x', 'full', 'completed', ?, ?, ?)",
		now, now, now)
	if err != nil {
		t.Fatalf("insert job: %v", err)
	}
	jobID, _ := res.LastInsertId()

	if _, err := db.Exec(
		"INSERT INTO backup_files (backup_job_id, file_path, file_name, size_bytes) VALUES (?, 'backups/x/companies.ndjson', 'companies.ndjson', 1)",
		jobID); err != nil {
		t.Fatalf("insert file: %v", err)
	}

	if _, err := db.Exec("DELETE FROM backup_jobs WHERE id = ?", jobID); err != nil {
		t.Fatalf("delete job: %v", err)
	}

	var orphans int
	if err := db.QueryRow("SELECT COUNT(*) FROM backup_files WHERE backup_job_id = ?", jobID).Scan(&orphans); err != nil {
		t.Fatalf("count files: %v", err)
	}
	if orphans != 0 {
		t.Errorf("orphaned file rows = %d, want 0", orphans)
	}
}
