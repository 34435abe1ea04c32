package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mwhitver/tablevault/internal/backup"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/store"
	"github.com/mwhitver/tablevault/internal/token"
)

type BackupHandler struct {
	engine *backup.Engine
	jobs   *store.BackupStore
	signer *token.Signer
	logger *slog.Logger
}

func NewBackupHandler(engine *backup.Engine, jobs *store.BackupStore, signer *token.Signer, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{engine: engine, jobs: jobs, signer: signer, logger: logger}
}

type backupRequest struct {
	BackupType model.BackupType `json:"backup_type"`
	Tables     []string         `json:"tables,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}

// Create runs a backup synchronously and returns the terminal job record.
// A failed job is still a 200: the failure lives on the record, not the
// transport.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := h.engine.ExecuteBackup(r.Context(), backup.Request{
		Type:   req.BackupType,
		Tables: req.Tables,
		Notes:  req.Notes,
	})
	if err != nil {
		writeEngineError(w, err, "failed to run backup")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(parseLimit(r, 50))
	if err != nil {
		h.logger.Error("list backup jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if jobs == nil {
		jobs = []model.BackupJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

type jobDetail struct {
	*model.BackupJob
	Files []model.BackupFile `json:"files"`
}

func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	job, err := h.jobs.GetJob(id)
	if err != nil {
		h.logger.Error("get backup job", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get backup")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}

	files, err := h.jobs.ListFiles(id)
	if err != nil {
		h.logger.Error("list backup files", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get backup files")
		return
	}
	if files == nil {
		files = []model.BackupFile{}
	}
	writeJSON(w, http.StatusOK, jobDetail{BackupJob: job, Files: files})
}

func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.engine.DeleteJob(r.Context(), id); err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusNotFound, "backup not found")
			return
		}
		h.logger.Error("delete backup job", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete backup")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IssueToken mints a short-lived download token for one backup file.
func (h *BackupHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	fileID, err := parseIDParam(r, "file_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	file, err := h.jobs.GetFile(jobID, fileID)
	if err != nil {
		h.logger.Error("get backup file", "job_id", jobID, "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get backup file")
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, "backup file not found")
		return
	}

	tok, expiresAt, err := h.signer.Sign(jobID, fileID)
	if err != nil {
		h.logger.Error("sign download token", "job_id", jobID, "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": expiresAt,
	})
}

// Download streams a file referenced by a signed token.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID, fileID, err := h.signer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	h.stream(w, r, jobID, fileID)
}

// DownloadDirect streams a file addressed by path, for callers that hold a
// session rather than a token.
func (h *BackupHandler) DownloadDirect(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	fileID, err := parseIDParam(r, "file_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	h.stream(w, r, jobID, fileID)
}

func (h *BackupHandler) stream(w http.ResponseWriter, r *http.Request, jobID, fileID int64) {
	body, file, err := h.engine.Download(r.Context(), jobID, fileID)
	if err != nil {
		if model.IsValidation(err) {
			writeError(w, http.StatusNotFound, "backup file not found")
			return
		}
		h.logger.Error("download backup file", "job_id", jobID, "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to download backup file")
		return
	}
	defer body.Close()

	// The engine hands back plaintext, so the .enc suffix is dropped.
	name := strings.TrimSuffix(file.FileName, ".enc")
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream backup file", "job_id", jobID, "file_id", fileID, "error", err)
	}
}
