package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwhitver/tablevault/internal/backup"
	"github.com/mwhitver/tablevault/internal/blob"
	"github.com/mwhitver/tablevault/internal/cleanup"
	"github.com/mwhitver/tablevault/internal/handler"
	"github.com/mwhitver/tablevault/internal/middleware"
	"github.com/mwhitver/tablevault/internal/model"
	"github.com/mwhitver/tablevault/internal/restore"
	"github.com/mwhitver/tablevault/internal/schedule"
	"github.com/mwhitver/tablevault/internal/store"
	"github.com/mwhitver/tablevault/internal/token"
	ws "github.com/mwhitver/tablevault/internal/websocket"
)

// Config carries everything the server needs beyond the open database.
type Config struct {
	Blob             blob.Config
	BackupPassphrase string
	DownloadSecret   string
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	backupH     *handler.BackupHandler
	restoreH    *handler.RestoreHandler
	scheduleH   *handler.ScheduleHandler
	cleanupH    *handler.CleanupHandler
	runner      *schedule.Runner
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	jobStore := store.NewBackupStore(db)
	restoreStore := store.NewRestoreStore(db)
	scheduleStore := store.NewScheduleStore(db)
	cleanupStore := store.NewCleanupStore(db)

	var blobs *blob.Store
	if cfg.Blob.Configured() {
		blobs = blob.New(cfg.Blob)
	} else {
		logger.Warn("blob storage not configured, backups are disabled")
	}

	signer, err := token.NewSigner(cfg.DownloadSecret)
	if err != nil {
		return nil, err
	}

	backupEngine := backup.NewEngine(db, jobStore, blobs, cfg.BackupPassphrase, func(job *model.BackupJob) {
		hub.Broadcast(ws.NewMessage("backup_job", string(job.Status), job.ID, map[string]any{
			"processed_tables": job.ProcessedTables,
			"total_tables":     job.TotalTables,
		}))
	}, logger.With("component", "backup"))

	restoreEngine := restore.NewEngine(db, restoreStore, jobStore, backupEngine, func(l *model.RestoreLog) {
		hub.Broadcast(ws.NewMessage("restore_log", string(l.Status), l.ID, nil))
	}, logger.With("component", "restore"))

	cleanupEngine := cleanup.NewEngine(db, cleanupStore, func(l *model.CleanupLog) {
		hub.Broadcast(ws.NewMessage("cleanup_log", "executed", l.ID, map[string]any{
			"category":        l.CleanupCategory,
			"records_deleted": l.RecordsDeleted,
			"success":         l.Success,
		}))
	}, logger.With("component", "cleanup"))

	scheduleManager := schedule.NewManager(scheduleStore, jobStore, blobs, func(sc *model.BackupSchedule, action string) {
		hub.Broadcast(ws.NewMessage("backup_schedule", action, sc.ID, nil))
	}, logger.With("component", "schedule"))

	runner := schedule.NewRunner(scheduleManager, scheduleStore, backupEngine, logger.With("component", "runner"))

	return &Server{
		db:          db,
		hub:         hub,
		backupH:     handler.NewBackupHandler(backupEngine, jobStore, signer, logger.With("component", "backup_handler")),
		restoreH:    handler.NewRestoreHandler(restoreEngine, restoreStore, logger.With("component", "restore_handler")),
		scheduleH:   handler.NewScheduleHandler(scheduleManager, scheduleStore, logger.With("component", "schedule_handler")),
		cleanupH:    handler.NewCleanupHandler(cleanupEngine, cleanupStore, logger.With("component", "cleanup_handler")),
		runner:      runner,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}, nil
}

// Runner returns the schedule runner so main can start and stop it.
func (s *Server) Runner() *schedule.Runner {
	return s.runner
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Backup jobs
	mux.HandleFunc("POST /api/backups", s.backupH.Create)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/{id}", s.backupH.Get)
	mux.HandleFunc("DELETE /api/backups/{id}", s.rateLimited(s.backupH.Delete))
	mux.HandleFunc("POST /api/backups/{id}/files/{file_id}/token", s.backupH.IssueToken)
	mux.HandleFunc("GET /api/backups/{id}/files/{file_id}", s.backupH.DownloadDirect)
	mux.HandleFunc("GET /api/download", s.backupH.Download)

	// Restores
	mux.HandleFunc("POST /api/restores", s.rateLimited(s.restoreH.Create))
	mux.HandleFunc("GET /api/restores", s.restoreH.List)
	mux.HandleFunc("GET /api/restores/{id}", s.restoreH.Get)

	// Schedules
	mux.HandleFunc("POST /api/schedules", s.scheduleH.Create)
	mux.HandleFunc("GET /api/schedules", s.scheduleH.List)
	mux.HandleFunc("GET /api/schedules/{id}", s.scheduleH.Get)
	mux.HandleFunc("PUT /api/schedules/{id}", s.scheduleH.Update)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.scheduleH.Delete)

	// Cleanup
	mux.HandleFunc("GET /api/cleanup/categories", s.cleanupH.Categories)
	mux.HandleFunc("GET /api/cleanup/categories/{id}/count", s.cleanupH.Count)
	mux.HandleFunc("POST /api/cleanup", s.rateLimited(s.cleanupH.Execute))
	mux.HandleFunc("GET /api/cleanup/logs", s.cleanupH.Logs)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimited guards destructive endpoints with a per-IP limit.
func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
