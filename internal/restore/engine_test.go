package restore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mwhitver/tablevault/internal/backup"
	"github.com/mwhitver/tablevault/internal/blob"
	"github.com/mwhitver/tablevault/internal/database"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/store"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	f.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fixture struct {
	db       *sql.DB
	jobs     *store.BackupStore
	restores *store.RestoreStore
	backups  *backup.Engine
	engine   *Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	jobs := store.NewBackupStore(db)
	restores := store.NewRestoreStore(db)
	blobs := blob.NewWithClient(newFakeS3(), "test-bucket")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backups := backup.NewEngine(db, jobs, blobs, "", nil, logger)
	return &fixture{
		db:       db,
		jobs:     jobs,
		restores: restores,
		backups:  backups,
		engine:   NewEngine(db, restores, jobs, backups, nil, logger),
	}
}

func (f *fixture) seedCompany(t *testing.T, id int64, name, plan string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := f.db.Exec(
		"INSERT INTO companies (id, name, plan, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, name, plan, now, now)
	if err != nil {
		t.Fatalf("seed company: %v", err)
	}
}

func (f *fixture) backupCompanies(t *testing.T) *model.BackupJob {
	t.Helper()
	job, err := f.backups.ExecuteBackup(context.Background(), backup.Request{
		Type:   model.BackupTypeSelective,
		Tables: []string{"companies"},
	})
	if err != nil || job.Status != model.JobStatusCompleted {
		t.Fatalf("backup: job=%+v err=%v", job, err)
	}
	return job
}

func (f *fixture) companyName(t *testing.T, id int64) (string, string, bool) {
	t.Helper()
	var name, plan string
	err := f.db.QueryRow("SELECT name, plan FROM companies WHERE id = ?", id).Scan(&name, &plan)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false
	}
	if err != nil {
		t.Fatalf("query company: %v", err)
	}
	return name, plan, true
}

func TestRestoreValidation(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "free")
	job := f.backupCompanies(t)

	// A running job cannot be restored from.
	pending, _ := f.jobs.CreateJob("backups/x", nil, model.BackupTypeFull, "")

	tests := []struct {
		name string
		req  Request
	}{
		{"missing job", Request{BackupJobID: 9999, Strategy: model.ConflictReplace}},
		{"non-completed job", Request{BackupJobID: pending.ID, Strategy: model.ConflictReplace}},
		{"bad strategy", Request{BackupJobID: job.ID, Strategy: "overwrite"}},
		{"unknown target table", Request{BackupJobID: job.ID, Strategy: model.ConflictReplace, TargetTables: []string{"bogus"}}},
		{"table outside backup", Request{BackupJobID: job.ID, Strategy: model.ConflictReplace, TargetTables: []string{"roles"}}},
	}
	for _, tt := range tests {
		logRow, err := f.engine.ExecuteRestore(context.Background(), tt.req)
		if logRow != nil || err == nil {
			t.Errorf("%s: got (%v, %v), want (nil, ValidationError)", tt.name, logRow, err)
			continue
		}
		if !model.IsValidation(err) {
			t.Errorf("%s: error %v is not a validation error", tt.name, err)
		}
	}

	// No restore log rows may exist after rejected requests.
	logs, err := f.restores.List(10)
	if err != nil {
		t.Fatalf("list restores: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("restore logs = %d, want 0", len(logs))
	}
}

func TestRestoreReplace(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "pro")
	job := f.backupCompanies(t)

	// Mutate and add after the backup.
	if _, err := f.db.Exec("UPDATE companies SET name = 'Acme Renamed' WHERE id = 1"); err != nil {
		t.Fatal(err)
	}
	f.seedCompany(t, 2, "Globex", "free")

	logRow, err := f.engine.ExecuteRestore(context.Background(), Request{
		BackupJobID: job.ID,
		Strategy:    model.ConflictReplace,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if logRow.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", logRow.Status, logRow.ErrorMessage)
	}
	if logRow.RecordsRestored != 1 {
		t.Errorf("records = %d, want 1", logRow.RecordsRestored)
	}
	if len(logRow.TablesRestored) != 1 || logRow.TablesRestored[0] != "companies" {
		t.Errorf("tables = %v, want [companies]", logRow.TablesRestored)
	}

	name, _, _ := f.companyName(t, 1)
	if name != "Acme" {
		t.Errorf("company 1 = %q, want backup value Acme", name)
	}
	// Replace does not delete rows created after the backup.
	if _, _, ok := f.companyName(t, 2); !ok {
		t.Error("company 2 should survive the restore")
	}
}

func TestRestoreSkipNeverModifies(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "pro")
	job := f.backupCompanies(t)

	if _, err := f.db.Exec("UPDATE companies SET name = 'Acme Renamed', plan = 'free' WHERE id = 1"); err != nil {
		t.Fatal(err)
	}

	logRow, err := f.engine.ExecuteRestore(context.Background(), Request{
		BackupJobID: job.ID,
		Strategy:    model.ConflictSkip,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if logRow.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", logRow.Status)
	}
	// The only snapshot row conflicts with an existing id, so nothing is
	// written and the count says so.
	if logRow.RecordsRestored != 0 {
		t.Errorf("records = %d, want 0", logRow.RecordsRestored)
	}
	name, plan, _ := f.companyName(t, 1)
	if name != "Acme Renamed" || plan != "free" {
		t.Errorf("company 1 = %q/%q, want untouched current values", name, plan)
	}
}

func TestRestoreSkipInsertsMissing(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "pro")
	job := f.backupCompanies(t)

	if _, err := f.db.Exec("DELETE FROM companies WHERE id = 1"); err != nil {
		t.Fatal(err)
	}

	logRow, err := f.engine.ExecuteRestore(context.Background(), Request{
		BackupJobID: job.ID,
		Strategy:    model.ConflictSkip,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if logRow.RecordsRestored != 1 {
		t.Errorf("records = %d, want 1", logRow.RecordsRestored)
	}
	if name, _, ok := f.companyName(t, 1); !ok || name != "Acme" {
		t.Errorf("company 1 = %q ok=%v, want restored Acme", name, ok)
	}
}

func TestRestoreMergeUpdatesConflicts(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "pro")
	job := f.backupCompanies(t)

	if _, err := f.db.Exec("UPDATE companies SET name = 'Acme Renamed', plan = 'enterprise' WHERE id = 1"); err != nil {
		t.Fatal(err)
	}

	logRow, err := f.engine.ExecuteRestore(context.Background(), Request{
		BackupJobID: job.ID,
		Strategy:    model.ConflictMerge,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if logRow.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", logRow.Status)
	}

	name, plan, _ := f.companyName(t, 1)
	if name != "Acme" || plan != "pro" {
		t.Errorf("company 1 = %q/%q, want merged backup values Acme/pro", name, plan)
	}
}

func TestRestoreReplaceWithSafetyBackup(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "pro")
	job := f.backupCompanies(t)

	f.seedCompany(t, 2, "Globex", "free")

	logRow, err := f.engine.ExecuteRestore(context.Background(), Request{
		BackupJobID:        job.ID,
		Strategy:           model.ConflictReplace,
		CreateSafetyBackup: true,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if logRow.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", logRow.Status)
	}

	// The safety backup is a full backup taken before the restore ran and
	// captures the pre-restore state, Globex included.
	jobs, err := f.jobs.ListJobs(10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	var safety *model.BackupJob
	for i := range jobs {
		if jobs[i].ID != job.ID && jobs[i].BackupType == model.BackupTypeFull {
			safety = &jobs[i]
			break
		}
	}
	if safety == nil {
		t.Fatal("expected a safety backup job")
	}
	if safety.Status != model.JobStatusCompleted {
		t.Errorf("safety status = %s, want completed", safety.Status)
	}
	if safety.TotalRecords != 2 {
		t.Errorf("safety records = %d, want 2 (pre-restore state)", safety.TotalRecords)
	}
}

func TestSelectiveRestoreSkipsOtherTables(t *testing.T) {
	f := setup(t)
	f.seedCompany(t, 1, "Acme", "pro")
	now := time.Now().UTC()
	if _, err := f.db.Exec(
		"INSERT INTO modules (id, name, description, enabled, created_at, updated_at) VALUES (1, 'billing', '', 1, ?, ?)",
		now, now); err != nil {
		t.Fatal(err)
	}

	job, err := f.backups.ExecuteBackup(context.Background(), backup.Request{Type: model.BackupTypeFull})
	if err != nil || job.Status != model.JobStatusCompleted {
		t.Fatalf("backup: job=%+v err=%v", job, err)
	}

	if _, err := f.db.Exec("UPDATE companies SET name = 'Changed' WHERE id = 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.db.Exec("UPDATE modules SET name = 'invoicing' WHERE id = 1"); err != nil {
		t.Fatal(err)
	}

	logRow, err := f.engine.ExecuteRestore(context.Background(), Request{
		BackupJobID:  job.ID,
		TargetTables: []string{"companies"},
		Strategy:     model.ConflictReplace,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if logRow.RestoreType != model.RestoreTypeSelective {
		t.Errorf("restore type = %s, want selective", logRow.RestoreType)
	}
	if len(logRow.TablesRestored) != 1 || logRow.TablesRestored[0] != "companies" {
		t.Errorf("tables = %v, want [companies]", logRow.TablesRestored)
	}

	name, _, _ := f.companyName(t, 1)
	if name != "Acme" {
		t.Errorf("company 1 = %q, want restored Acme", name)
	}
	var moduleName string
	if err := f.db.QueryRow("SELECT name FROM modules WHERE id = 1").Scan(&moduleName); err != nil {
		t.Fatal(err)
	}
	if moduleName != "invoicing" {
		t.Errorf("module = %q, restore must not touch untargeted tables", moduleName)
	}
}
