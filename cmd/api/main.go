package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"docdesk.org/internal/audit"
	"docdesk.org/internal/content"
	"docdesk.org/internal/directory"
	"docdesk.org/internal/document"
	"docdesk.org/internal/httpapi"
	"docdesk.org/internal/obs"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("DOCDESK_BUILD_COMMIT"))

	addr := os.Getenv("DOCDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	dataDir := os.Getenv("DOCDESK_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	// Postgres when a DSN is configured; in-process stores otherwise.
	var db *sql.DB
	if dsn := os.Getenv("DOCDESK_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	trail, err := audit.NewTrail(filepath.Join(dataDir, "audit"))
	if err != nil {
		log.Fatalf("audit trail: %v", err)
	}
	blobs, err := document.NewFSBlobStore(filepath.Join(dataDir, "documents"))
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	var (
		dirStore directory.Store
		docStore document.Store
		authors  document.AuthorResolver
	)
	if db != nil {
		pg := directory.NewPGStore(db)
		dirStore = pg
		docStore = document.NewPGStore(db)
		authors = pg
	} else {
		mem := directory.NewMemStore()
		dirStore = mem
		docStore = document.NewMemStore()
		authors = mem
	}

	dir := directory.NewService(dirStore, trail)
	docs := document.NewRepository(docStore, blobs, authors)
	disp := content.NewDispatcher(blobs)

	api := httpapi.New(dir, docs, disp, trail, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting docdesk-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
