package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/schedule"
	"github.com/mwhitver/tablevault/internal/store"
)

type ScheduleHandler struct {
	manager   *schedule.Manager
	schedules *store.ScheduleStore
	logger    *slog.Logger
}

func NewScheduleHandler(manager *schedule.Manager, schedules *store.ScheduleStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{manager: manager, schedules: schedules, logger: logger}
}

type scheduleCreateRequest struct {
	ScheduleName   string           `json:"schedule_name"`
	BackupType     model.BackupType `json:"backup_type"`
	CronExpression string           `json:"cron_expression"`
	Tables         []string         `json:"tables,omitempty"`
	RetentionDays  int              `json:"retention_days"`
	IsActive       *bool            `json:"is_active,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	sc, err := h.manager.Create(schedule.CreateRequest{
		ScheduleName:   req.ScheduleName,
		BackupType:     req.BackupType,
		CronExpression: req.CronExpression,
		TablesIncluded: req.Tables,
		RetentionDays:  req.RetentionDays,
		IsActive:       active,
		Notes:          req.Notes,
	})
	if err != nil {
		writeEngineError(w, err, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.schedules.List()
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if list == nil {
		list = []model.BackupSchedule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sc, err := h.schedules.Get(id)
	if err != nil {
		h.logger.Error("get schedule", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type scheduleUpdateRequest struct {
	ScheduleName   *string           `json:"schedule_name,omitempty"`
	BackupType     *model.BackupType `json:"backup_type,omitempty"`
	CronExpression *string           `json:"cron_expression,omitempty"`
	Tables         []string          `json:"tables,omitempty"`
	RetentionDays  *int              `json:"retention_days,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.schedules.Get(id)
	if err != nil {
		h.logger.Error("get schedule", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	var req scheduleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sc, err := h.manager.Update(id, schedule.Patch{
		ScheduleName:   req.ScheduleName,
		BackupType:     req.BackupType,
		CronExpression: req.CronExpression,
		TablesIncluded: req.Tables,
		RetentionDays:  req.RetentionDays,
		IsActive:       req.IsActive,
		Notes:          req.Notes,
	})
	if err != nil {
		writeEngineError(w, err, "failed to update schedule")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.manager.Delete(id); err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		h.logger.Error("delete schedule", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
