package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwhitver/tablevault/internal/blob"
	"github.com/mwhitver/tablevault/internal/database"
	"github.com/mwhitver/tablevault/internal/logging"
	"github.com/mwhitver/tablevault/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("TABLEVAULT_LOG_LEVEL"))

	port := os.Getenv("TABLEVAULT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("TABLEVAULT_DB_PATH")
	if dbPath == "" {
		dbPath = "tablevault.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		Blob: blob.Config{
			Endpoint:  os.Getenv("TABLEVAULT_S3_ENDPOINT"),
			Bucket:    os.Getenv("TABLEVAULT_S3_BUCKET"),
			Region:    os.Getenv("TABLEVAULT_S3_REGION"),
			AccessKey: os.Getenv("TABLEVAULT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("TABLEVAULT_S3_SECRET_KEY"),
		},
		BackupPassphrase: os.Getenv("TABLEVAULT_BACKUP_PASSPHRASE"),
		DownloadSecret:   os.Getenv("TABLEVAULT_DOWNLOAD_SECRET"),
	}
	if cfg.Blob.Region == "" {
		cfg.Blob.Region = "auto"
	}

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	srv.Runner().Start(context.Background())

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // backups and restores run inside the request
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tablevault listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	srv.Runner().Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
