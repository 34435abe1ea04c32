// Package backup implements the backup job engine: it snapshots cataloged
// tables into blob storage and tracks each run as a job row with a
// pending/running/completed/failed lifecycle.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitver/tablevault/internal/blob"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/registry"
	"github.com/mwhitver/tablevault/internal/snapshot"
	"github.com/mwhitver/tablevault/internal/store"
)

// NotifyFunc is called on every job status transition.
type NotifyFunc func(job *model.BackupJob)

// Request describes one backup invocation.
type Request struct {
	Type       model.BackupType
	Tables     []string
	Notes      string
	ScheduleID *int64
}

type Engine struct {
	db         *sql.DB
	jobs       *store.BackupStore
	blobs      *blob.Store
	passphrase string
	notify     NotifyFunc
	logger     *slog.Logger
}

func NewEngine(db *sql.DB, jobs *store.BackupStore, blobs *blob.Store, passphrase string, notify NotifyFunc, logger *slog.Logger) *Engine {
	return &Engine{
		db:         db,
		jobs:       jobs,
		blobs:      blobs,
		passphrase: passphrase,
		notify:     notify,
		logger:     logger,
	}
}

func (e *Engine) notifyJob(job *model.BackupJob) {
	if e.notify != nil {
		e.notify(job)
	}
}

// ExecuteBackup validates the request, then runs the backup to a terminal
// status. Validation failures return an error before any job row exists;
// runtime failures are recorded on the returned job as status=failed, with
// any files uploaded before the failure kept for inspection.
func (e *Engine) ExecuteBackup(ctx context.Context, req Request) (*model.BackupJob, error) {
	if !model.ValidBackupType(req.Type) {
		return nil, model.Validation(fmt.Sprintf("unknown backup type: %s", req.Type))
	}
	if req.Type == model.BackupTypeSelective {
		if err := registry.ValidateAll(req.Tables); err != nil {
			return nil, err
		}
	} else if len(req.Tables) > 0 {
		return nil, model.Validation("tables may only be set for selective backups")
	}
	if e.blobs == nil {
		return nil, fmt.Errorf("backup not configured: blob storage credentials missing")
	}

	prefix := "backups/" + uuid.NewString()
	job, err := e.jobs.CreateJob(prefix, req.ScheduleID, req.Type, req.Notes)
	if err != nil {
		return nil, fmt.Errorf("create backup job: %w", err)
	}
	e.notifyJob(job)

	tableSet := req.Tables
	if req.Type != model.BackupTypeSelective {
		tableSet = registry.ListTables()
	}

	var since *time.Time
	if req.Type == model.BackupTypeIncremental {
		since, err = e.jobs.LatestCompletedEndTime()
		if err != nil {
			return e.fail(job, nil, 0, 0, 0, fmt.Errorf("resolve incremental baseline: %w", err))
		}
		// First incremental with no prior completed backup captures
		// everything.
	}

	if err := e.jobs.MarkRunning(job.ID, len(tableSet)); err != nil {
		return e.fail(job, nil, 0, 0, 0, err)
	}
	job.Status = model.JobStatusRunning
	job.TotalTables = len(tableSet)
	e.notifyJob(job)

	var (
		included     []string
		processed    int
		totalRecords int64
		storedBytes  int64
		rawBytes     int64
	)

	for _, name := range tableSet {
		tbl, err := registry.Lookup(name)
		if err != nil {
			return e.fail(job, included, processed, totalRecords, storedBytes, err)
		}

		var rows []snapshot.Row
		if req.Type != model.BackupTypeSchemaOnly {
			rows, err = e.readRows(ctx, tbl, since)
			if err != nil {
				return e.fail(job, included, processed, totalRecords, storedBytes, fmt.Errorf("read %s: %w", name, err))
			}
		}

		// An incremental table with no changed rows produces no file.
		if req.Type == model.BackupTypeIncremental && len(rows) == 0 {
			processed++
			if err := e.jobs.UpdateProgress(job.ID, processed, totalRecords); err != nil {
				return e.fail(job, included, processed, totalRecords, storedBytes, err)
			}
			continue
		}

		data, err := snapshot.Encode(snapshot.Header{
			Table:      tbl.Name,
			Columns:    tbl.Columns,
			PrimaryKey: tbl.PrimaryKey,
		}, rows)
		if err != nil {
			return e.fail(job, included, processed, totalRecords, storedBytes, err)
		}
		rawBytes += int64(len(data))

		fileName := tbl.Name + ".ndjson"
		if e.passphrase != "" {
			salt, err := snapshot.GenerateSalt()
			if err != nil {
				return e.fail(job, included, processed, totalRecords, storedBytes, err)
			}
			data, err = snapshot.Encrypt(data, e.passphrase, salt)
			if err != nil {
				return e.fail(job, included, processed, totalRecords, storedBytes, err)
			}
			fileName += ".enc"
		}

		key := prefix + "/" + fileName
		size, err := e.blobs.Upload(ctx, key, data)
		if err != nil {
			return e.fail(job, included, processed, totalRecords, storedBytes, fmt.Errorf("upload %s: %w", name, err))
		}
		if _, err := e.jobs.AddFile(job.ID, key, fileName, size); err != nil {
			return e.fail(job, included, processed, totalRecords, storedBytes, err)
		}

		included = append(included, tbl.Name)
		processed++
		totalRecords += int64(len(rows))
		storedBytes += size
		if err := e.jobs.UpdateProgress(job.ID, processed, totalRecords); err != nil {
			return e.fail(job, included, processed, totalRecords, storedBytes, err)
		}
	}

	var ratio *float64
	if rawBytes > 0 && storedBytes < rawBytes {
		r := float64(storedBytes) / float64(rawBytes)
		ratio = &r
	}

	if err := e.jobs.MarkCompleted(job.ID, included, processed, totalRecords, storedBytes, ratio); err != nil {
		return e.fail(job, included, processed, totalRecords, storedBytes, err)
	}

	final, err := e.jobs.GetJob(job.ID)
	if err != nil {
		return nil, err
	}
	e.notifyJob(final)
	e.logger.Info("backup completed",
		"job_id", final.ID,
		"type", final.BackupType,
		"tables", final.ProcessedTables,
		"records", final.TotalRecords,
		"bytes", final.BackupSizeBytes)
	return final, nil
}

// fail finalizes the job as failed with the partial counts reached so far.
// Files already uploaded are kept for forensic inspection.
func (e *Engine) fail(job *model.BackupJob, included []string, processed int, records, size int64, cause error) (*model.BackupJob, error) {
	e.logger.Error("backup failed", "job_id", job.ID, "error", cause)
	if err := e.jobs.MarkFailed(job.ID, included, processed, records, size, cause.Error()); err != nil {
		e.logger.Error("record backup failure", "job_id", job.ID, "error", err)
	}
	final, err := e.jobs.GetJob(job.ID)
	if err != nil || final == nil {
		return job, nil
	}
	e.notifyJob(final)
	return final, nil
}

// readRows reads a table's rows in primary-key order. When since is set,
// only rows modified strictly after it are returned.
func (e *Engine) readRows(ctx context.Context, tbl registry.Table, since *time.Time) ([]snapshot.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", columnList(tbl.Columns), tbl.Name)
	args := []any{}
	if since != nil {
		query += fmt.Sprintf(" WHERE %s > ?", tbl.ModifiedColumn())
		args = append(args, *since)
	}
	query += fmt.Sprintf(" ORDER BY %s", tbl.PrimaryKey)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []snapshot.Row
	for rows.Next() {
		vals := make([]any, len(tbl.Columns))
		ptrs := make([]any, len(tbl.Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(snapshot.Row, len(tbl.Columns))
		for i, col := range tbl.Columns {
			row[col] = normalize(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Download streams one backup file, decrypting it when the engine holds a
// passphrase.
func (e *Engine) Download(ctx context.Context, jobID, fileID int64) (io.ReadCloser, *model.BackupFile, error) {
	file, err := e.jobs.GetFile(jobID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, model.Validation(fmt.Sprintf("backup file %d not found for job %d", fileID, jobID))
	}

	if e.passphrase == "" {
		body, err := e.blobs.Download(ctx, file.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return body, file, nil
	}

	data, err := e.blobs.ReadAll(ctx, file.FilePath)
	if err != nil {
		return nil, nil, err
	}
	plain, err := snapshot.Decrypt(data, e.passphrase)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(newBytesReader(plain)), file, nil
}

// ReadSnapshot fetches and decodes one backup file.
func (e *Engine) ReadSnapshot(ctx context.Context, file model.BackupFile) (snapshot.Header, []snapshot.Row, error) {
	data, err := e.blobs.ReadAll(ctx, file.FilePath)
	if err != nil {
		return snapshot.Header{}, nil, err
	}
	if e.passphrase != "" {
		data, err = snapshot.Decrypt(data, e.passphrase)
		if err != nil {
			return snapshot.Header{}, nil, err
		}
	}
	return snapshot.Decode(data)
}

// DeleteJob removes a job, its file rows, and its blobs. Blob deletion
// failures are logged, not fatal: the metadata is already gone and the
// orphaned objects are harmless.
func (e *Engine) DeleteJob(ctx context.Context, jobID int64) error {
	paths, err := e.jobs.DeleteJob(jobID)
	if err != nil {
		return err
	}
	if paths == nil {
		return model.Validation(fmt.Sprintf("backup job %d not found", jobID))
	}
	if e.blobs == nil {
		// Jobs can predate the loss of storage credentials; drop the
		// metadata and leave the objects behind.
		e.logger.Warn("blob storage not configured, skipping object deletion", "job_id", jobID)
		return nil
	}
	if err := e.blobs.DeleteAll(ctx, paths); err != nil {
		e.logger.Warn("delete backup blobs", "job_id", jobID, "error", err)
	}
	return nil
}
