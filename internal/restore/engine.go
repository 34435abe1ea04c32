// Package restore applies rows from a completed backup job back into the
// database under a caller-chosen conflict strategy. It is the highest-risk
// operation in the system: the strategy rules and the optional safety backup
// are the only protection against irreversible overwrite.
package restore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mwhitver/tablevault/internal/backup"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/registry"
	"github.com/mwhitver/tablevault/internal/snapshot"
	"github.com/mwhitver/tablevault/internal/store"
)

// NotifyFunc is called on every restore log status transition.
type NotifyFunc func(log *model.RestoreLog)

// Request describes one restore invocation.
type Request struct {
	BackupJobID        int64
	TargetTables       []string
	Strategy           model.ConflictStrategy
	CreateSafetyBackup bool
	Notes              string
}

type Engine struct {
	db       *sql.DB
	restores *store.RestoreStore
	jobs     *store.BackupStore
	backups  *backup.Engine
	notify   NotifyFunc
	logger   *slog.Logger
}

func NewEngine(db *sql.DB, restores *store.RestoreStore, jobs *store.BackupStore, backups *backup.Engine, notify NotifyFunc, logger *slog.Logger) *Engine {
	return &Engine{
		db:       db,
		restores: restores,
		jobs:     jobs,
		backups:  backups,
		notify:   notify,
		logger:   logger,
	}
}

func (e *Engine) notifyLog(l *model.RestoreLog) {
	if e.notify != nil {
		e.notify(l)
	}
}

// ExecuteRestore validates the request, optionally takes a safety backup,
// then applies the backup table by table. There is no cross-table rollback:
// a mid-restore failure leaves earlier tables applied, and the safety backup
// is the recovery path.
func (e *Engine) ExecuteRestore(ctx context.Context, req Request) (*model.RestoreLog, error) {
	job, err := e.jobs.GetJob(req.BackupJobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, model.Validation(fmt.Sprintf("backup job %d not found", req.BackupJobID))
	}
	if job.Status != model.JobStatusCompleted {
		return nil, model.Validation(fmt.Sprintf("cannot restore from job %d with status %s", job.ID, job.Status))
	}
	if !model.ValidConflictStrategy(req.Strategy) {
		return nil, model.Validation(fmt.Sprintf("unknown conflict strategy: %s", req.Strategy))
	}

	restoreType := model.RestoreTypeFull
	if len(req.TargetTables) > 0 {
		restoreType = model.RestoreTypeSelective
		if err := registry.ValidateAll(req.TargetTables); err != nil {
			return nil, err
		}
		for _, name := range req.TargetTables {
			if !slices.Contains(job.TablesIncluded, name) {
				return nil, model.Validation(fmt.Sprintf("table %s is not covered by backup job %d", name, job.ID))
			}
		}
	}

	// The safety backup runs to completion before any row is touched; if it
	// fails the restore never starts.
	if req.CreateSafetyBackup {
		safety, err := e.backups.ExecuteBackup(ctx, backup.Request{
			Type:  model.BackupTypeFull,
			Notes: fmt.Sprintf("safety backup before restoring job %d", job.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("safety backup: %w", err)
		}
		if safety.Status != model.JobStatusCompleted {
			return nil, fmt.Errorf("safety backup job %d failed: %s", safety.ID, safety.ErrorMessage)
		}
	}

	logRow, err := e.restores.Create(job.ID, restoreType, req.Strategy, req.Notes)
	if err != nil {
		return nil, err
	}
	e.notifyLog(logRow)

	if err := e.restores.MarkRunning(logRow.ID); err != nil {
		return e.fail(logRow, nil, 0, err)
	}
	logRow.Status = model.JobStatusRunning
	e.notifyLog(logRow)

	files, err := e.jobs.ListFiles(job.ID)
	if err != nil {
		return e.fail(logRow, nil, 0, err)
	}

	var (
		restored []string
		records  int64
	)
	for _, file := range files {
		header, rows, err := e.backups.ReadSnapshot(ctx, file)
		if err != nil {
			return e.fail(logRow, restored, records, fmt.Errorf("read snapshot %s: %w", file.FileName, err))
		}
		if restoreType == model.RestoreTypeSelective && !slices.Contains(req.TargetTables, header.Table) {
			continue
		}

		applied, err := e.applyTable(ctx, header, rows, req.Strategy)
		if err != nil {
			return e.fail(logRow, restored, records, fmt.Errorf("restore %s: %w", header.Table, err))
		}
		restored = append(restored, header.Table)
		records += applied
	}

	if err := e.restores.MarkCompleted(logRow.ID, restored, records); err != nil {
		return e.fail(logRow, restored, records, err)
	}

	final, err := e.restores.Get(logRow.ID)
	if err != nil {
		return nil, err
	}
	e.notifyLog(final)
	e.logger.Info("restore completed",
		"restore_id", final.ID,
		"job_id", job.ID,
		"strategy", final.ConflictStrategy,
		"tables", len(final.TablesRestored),
		"records", final.RecordsRestored)
	return final, nil
}

func (e *Engine) fail(logRow *model.RestoreLog, restored []string, records int64, cause error) (*model.RestoreLog, error) {
	e.logger.Error("restore failed", "restore_id", logRow.ID, "error", cause)
	if err := e.restores.MarkFailed(logRow.ID, restored, records, cause.Error()); err != nil {
		e.logger.Error("record restore failure", "restore_id", logRow.ID, "error", err)
	}
	final, err := e.restores.Get(logRow.ID)
	if err != nil || final == nil {
		return logRow, nil
	}
	e.notifyLog(final)
	return final, nil
}

// applyTable writes one snapshot's rows into its table under the chosen
// strategy, returning the number of rows actually written.
func (e *Engine) applyTable(ctx context.Context, header snapshot.Header, rows []snapshot.Row, strategy model.ConflictStrategy) (int64, error) {
	tbl, err := registry.Lookup(header.Table)
	if err != nil {
		return 0, err
	}

	var applied int64
	for _, row := range rows {
		n, err := e.applyRow(ctx, tbl, row, strategy)
		if err != nil {
			return applied, err
		}
		applied += n
	}
	return applied, nil
}

func (e *Engine) applyRow(ctx context.Context, tbl registry.Table, row snapshot.Row, strategy model.ConflictStrategy) (int64, error) {
	// Column order follows the catalog so generated SQL is deterministic;
	// only columns present in the row participate.
	var cols []string
	for _, c := range tbl.Columns {
		if _, ok := row[c]; ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("row has no cataloged columns")
	}
	if _, ok := row[tbl.PrimaryKey]; !ok {
		return 0, fmt.Errorf("row missing primary key %s", tbl.PrimaryKey)
	}

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var query string
	switch strategy {
	case model.ConflictReplace:
		// REPLACE deletes any conflicting row first, so columns absent from
		// the backup row fall back to their schema defaults.
		query = fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
			tbl.Name, strings.Join(cols, ", "), placeholders)
	case model.ConflictSkip:
		query = fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
			tbl.Name, strings.Join(cols, ", "), placeholders)
	case model.ConflictMerge:
		var sets []string
		for _, c := range cols {
			if c == tbl.PrimaryKey {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
		if len(sets) == 0 {
			query = fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
				tbl.Name, strings.Join(cols, ", "), placeholders)
		} else {
			query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
				tbl.Name, strings.Join(cols, ", "), placeholders, tbl.PrimaryKey, strings.Join(sets, ", "))
		}
	default:
		return 0, model.Validation(fmt.Sprintf("unknown conflict strategy: %s", strategy))
	}

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}
