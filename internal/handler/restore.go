package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/restore"
	"github.com/mwhitver/tablevault/internal/store"
)

type RestoreHandler struct {
	engine   *restore.Engine
	restores *store.RestoreStore
	logger   *slog.Logger
}

func NewRestoreHandler(engine *restore.Engine, restores *store.RestoreStore, logger *slog.Logger) *RestoreHandler {
	return &RestoreHandler{engine: engine, restores: restores, logger: logger}
}

type restoreRequest struct {
	BackupJobID        int64                  `json:"backup_job_id"`
	Tables             []string               `json:"tables,omitempty"`
	ConflictStrategy   model.ConflictStrategy `json:"conflict_strategy"`
	CreateSafetyBackup bool                   `json:"create_safety_backup"`
	Notes              string                 `json:"notes,omitempty"`
}

// Create runs a restore synchronously and returns the terminal restore log.
func (h *RestoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	logRow, err := h.engine.ExecuteRestore(r.Context(), restore.Request{
		BackupJobID:        req.BackupJobID,
		TargetTables:       req.Tables,
		Strategy:           req.ConflictStrategy,
		CreateSafetyBackup: req.CreateSafetyBackup,
		Notes:              req.Notes,
	})
	if err != nil {
		writeEngineError(w, err, "failed to run restore")
		return
	}
	writeJSON(w, http.StatusCreated, logRow)
}

func (h *RestoreHandler) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.restores.List(parseLimit(r, 50))
	if err != nil {
		h.logger.Error("list restore logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list restores")
		return
	}
	if logs == nil {
		logs = []model.RestoreLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *RestoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	logRow, err := h.restores.Get(id)
	if err != nil {
		h.logger.Error("get restore log", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get restore")
		return
	}
	if logRow == nil {
		writeError(w, http.StatusNotFound, "restore not found")
		return
	}
	writeJSON(w, http.StatusOK, logRow)
}
