package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitver/tablevault/internal/model"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleColumns = `id, schedule_name, backup_type, cron_expression, tables_included,
	retention_days, is_active, last_run, next_run, notes, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*model.BackupSchedule, error) {
	sc := &model.BackupSchedule{}
	var tablesRaw string
	var lastRun, nextRun sql.NullTime
	err := row.Scan(&sc.ID, &sc.ScheduleName, &sc.BackupType, &sc.CronExpression, &tablesRaw,
		&sc.RetentionDays, &sc.IsActive, &lastRun, &nextRun, &sc.Notes, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		sc.LastRun = &lastRun.Time
	}
	if nextRun.Valid {
		sc.NextRun = &nextRun.Time
	}
	tables, err := decodeNames(tablesRaw)
	if err != nil {
		return nil, err
	}
	sc.TablesIncluded = tables
	return sc, nil
}

func (s *ScheduleStore) Create(sc *model.BackupSchedule) (*model.BackupSchedule, error) {
	tablesRaw, err := encodeNames(sc.TablesIncluded)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backup_schedules
		 (schedule_name, backup_type, cron_expression, tables_included, retention_days, is_active, next_run, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ScheduleName, sc.BackupType, sc.CronExpression, tablesRaw,
		sc.RetentionDays, sc.IsActive, sc.NextRun, sc.Notes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	id, _ := result.LastInsertId()
	created := *sc
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (s *ScheduleStore) Get(id int64) (*model.BackupSchedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(
		`SELECT `+scheduleColumns+` FROM backup_schedules WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %d: %w", id, err)
	}
	return sc, nil
}

func (s *ScheduleStore) List() ([]model.BackupSchedule, error) {
	rows, err := s.db.Query(
		`SELECT ` + scheduleColumns + ` FROM backup_schedules ORDER BY schedule_name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.BackupSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

// ListDue returns active schedules whose next_run is at or before now.
func (s *ScheduleStore) ListDue(now time.Time) ([]model.BackupSchedule, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleColumns+` FROM backup_schedules
		 WHERE is_active = 1 AND next_run IS NOT NULL AND next_run <= ?
		 ORDER BY next_run, id`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.BackupSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

// Update persists the mutable schedule fields.
func (s *ScheduleStore) Update(sc *model.BackupSchedule) error {
	tablesRaw, err := encodeNames(sc.TablesIncluded)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE backup_schedules
		 SET schedule_name = ?, backup_type = ?, cron_expression = ?, tables_included = ?,
		     retention_days = ?, is_active = ?, last_run = ?, next_run = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		sc.ScheduleName, sc.BackupType, sc.CronExpression, tablesRaw,
		sc.RetentionDays, sc.IsActive, sc.LastRun, sc.NextRun, sc.Notes, now, sc.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule %d: %w", sc.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %d not found", sc.ID)
	}
	sc.UpdatedAt = now
	return nil
}

// MarkRun records a completed trigger: last_run and the freshly computed
// next_run.
func (s *ScheduleStore) MarkRun(id int64, lastRun, nextRun time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backup_schedules SET last_run = ?, next_run = ?, updated_at = ? WHERE id = ?`,
		lastRun, nextRun, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	return nil
}

// Delete removes only the schedule row; historical jobs keep a NULL
// schedule reference via the foreign key's ON DELETE SET NULL.
func (s *ScheduleStore) Delete(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM backup_schedules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule %d: %w", id, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
