// Package cleanup performs guarded bulk deletes over pre-classified data
// categories. Every execution writes exactly one log row, success or not, so
// "was this attempted" is always answerable from data.
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/registry"
	"github.com/mwhitver/tablevault/internal/store"
)

// NotifyFunc is called after every cleanup execution.
type NotifyFunc func(log *model.CleanupLog)

// Filters narrows a cleanup to a company, a user, or rows older than a
// date. A category only accepts the filters it declares support for.
type Filters struct {
	CompanyID *int64
	UserID    *int64
	Before    *time.Time
}

// Request describes one cleanup invocation. Callers are expected to have
// collected typed confirmation carrying the predicted record count before
// invoking the engine at all.
type Request struct {
	Category string
	Filters  Filters
	Notes    string
}

type Engine struct {
	db     *sql.DB
	logs   *store.CleanupStore
	notify NotifyFunc
	logger *slog.Logger
}

func NewEngine(db *sql.DB, logs *store.CleanupStore, notify NotifyFunc, logger *slog.Logger) *Engine {
	return &Engine{db: db, logs: logs, notify: notify, logger: logger}
}

// RecordCount returns how many rows the given cleanup would delete.
func (e *Engine) RecordCount(ctx context.Context, categoryID string, f Filters) (int64, error) {
	cat, where, args, err := buildScope(categoryID, f)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", cat.Table, where)
	var count int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", categoryID, err)
	}
	return count, nil
}

// ExecuteCleanup deletes the category's matching rows and writes exactly one
// log row recording the outcome. Validation failures are rejected before
// anything runs and produce no log row.
func (e *Engine) ExecuteCleanup(ctx context.Context, req Request) (*model.CleanupLog, error) {
	cat, where, args, err := buildScope(req.Category, req.Filters)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s%s", cat.Table, where)
	result, execErr := e.db.ExecContext(ctx, query, args...)

	var deleted int64
	if result != nil {
		deleted, _ = result.RowsAffected()
	}

	var logRow *model.CleanupLog
	if execErr != nil {
		e.logger.Error("cleanup failed", "category", req.Category, "error", execErr)
		logRow, err = e.logs.Append(req.Category, deleted, false, execErr.Error(), req.Notes)
	} else {
		e.logger.Info("cleanup completed", "category", req.Category, "deleted", deleted)
		logRow, err = e.logs.Append(req.Category, deleted, true, "", req.Notes)
	}
	if err != nil {
		return nil, err
	}
	if e.notify != nil {
		e.notify(logRow)
	}
	return logRow, nil
}

// buildScope resolves a category and turns filters into a WHERE clause,
// rejecting filters the category does not support.
func buildScope(categoryID string, f Filters) (model.CleanupCategory, string, []any, error) {
	cat, err := CategoryByID(categoryID)
	if err != nil {
		return model.CleanupCategory{}, "", nil, err
	}
	tbl, err := registry.Lookup(cat.Table)
	if err != nil {
		return model.CleanupCategory{}, "", nil, err
	}

	var conds []string
	var args []any
	if cat.Scope != "" {
		conds = append(conds, cat.Scope)
	}

	if f.CompanyID != nil {
		if !cat.SupportsFilter.Company {
			return model.CleanupCategory{}, "", nil, model.Validation(fmt.Sprintf("category %s does not support a company filter", categoryID))
		}
		conds = append(conds, tbl.CompanyColumn+" = ?")
		args = append(args, *f.CompanyID)
	}
	if f.UserID != nil {
		if !cat.SupportsFilter.User {
			return model.CleanupCategory{}, "", nil, model.Validation(fmt.Sprintf("category %s does not support a user filter", categoryID))
		}
		conds = append(conds, tbl.UserColumn+" = ?")
		args = append(args, *f.UserID)
	}
	if f.Before != nil {
		if !cat.SupportsFilter.Date {
			return model.CleanupCategory{}, "", nil, model.Validation(fmt.Sprintf("category %s does not support a date filter", categoryID))
		}
		conds = append(conds, tbl.CreatedAtColumn+" < ?")
		args = append(args, *f.Before)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return cat, where, args, nil
}
