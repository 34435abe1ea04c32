package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mwhitver/tablevault/internal/cleanup"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/store"
)

// confirmPhrase is what a caller must type, verbatim, before any cleanup
// runs.
const confirmPhrase = "DELETE"

type CleanupHandler struct {
	engine *cleanup.Engine
	logs   *store.CleanupStore
	logger *slog.Logger
}

func NewCleanupHandler(engine *cleanup.Engine, logs *store.CleanupStore, logger *slog.Logger) *CleanupHandler {
	return &CleanupHandler{engine: engine, logs: logs, logger: logger}
}

func (h *CleanupHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cleanup.Categories())
}

// Count previews how many rows a cleanup would delete, so the UI can show
// the number inside its confirmation prompt.
func (h *CleanupHandler) Count(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	categoryID := r.PathValue("id")
	count, err := h.engine.RecordCount(r.Context(), categoryID, filters)
	if err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("count cleanup records", "category", categoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":     categoryID,
		"record_count": count,
	})
}

type cleanupRequest struct {
	Category  string     `json:"category"`
	CompanyID *int64     `json:"company_id,omitempty"`
	UserID    *int64     `json:"user_id,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Confirm   string     `json:"confirm"`
	Notes     string     `json:"notes,omitempty"`
}

// Execute runs a cleanup. The request must carry the typed confirmation
// phrase; without it nothing is deleted and nothing is logged.
func (h *CleanupHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Confirm != confirmPhrase {
		writeError(w, http.StatusBadRequest, `confirmation required: type "DELETE" to proceed`)
		return
	}

	logRow, err := h.engine.ExecuteCleanup(r.Context(), cleanup.Request{
		Category: req.Category,
		Filters: cleanup.Filters{
			CompanyID: req.CompanyID,
			UserID:    req.UserID,
			Before:    req.Before,
		},
		Notes: req.Notes,
	})
	if err != nil {
		writeEngineError(w, err, "failed to run cleanup")
		return
	}
	writeJSON(w, http.StatusOK, logRow)
}

func (h *CleanupHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.logs.List(parseLimit(r, 50))
	if err != nil {
		h.logger.Error("list cleanup logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list cleanup logs")
		return
	}
	if logs == nil {
		logs = []model.CleanupLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// parseFilters reads the optional company_id, user_id, and before query
// parameters.
func parseFilters(r *http.Request) (cleanup.Filters, error) {
	var f cleanup.Filters
	q := r.URL.Query()

	if s := q.Get("company_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, model.Validation("invalid company_id")
		}
		f.CompanyID = &id
	}
	if s := q.Get("user_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, model.Validation("invalid user_id")
		}
		f.UserID = &id
	}
	if s := q.Get("before"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, model.Validation("invalid before timestamp, want RFC 3339")
		}
		f.Before = &ts
	}
	return f, nil
}
