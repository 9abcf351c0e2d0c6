// main.go - Entry point and dependency injection
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/openworkouts/openworkouts-go/internal/bulk"
	"github.com/openworkouts/openworkouts-go/internal/database"
	"github.com/openworkouts/openworkouts-go/internal/storage"
)

type App struct {
	db       *database.DB
	store    *storage.Store
	cron     *cron.Cron
	importer *bulk.Importer
	owner    string
	cancel   context.CancelFunc
	shutdown chan os.Signal
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	app := &App{
		shutdown: make(chan os.Signal, 1),
	}

	if err := app.init(); err != nil {
		log.Fatal("Failed to initialize app:", err)
	}

	app.start()

	// Wait for shutdown signal
	signal.Notify(app.shutdown, os.Interrupt, syscall.SIGTERM)
	<-app.shutdown

	app.stop()
}

func (app *App) init() error {
	dataDir := envOr("DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	var err error
	app.db, err = database.Open(envOr("DB_PATH", filepath.Join(dataDir, "openworkouts.db")))
	if err != nil {
		return err
	}

	app.store, err = storage.NewStore(envOr("BLOB_DIR", filepath.Join(dataDir, "blobs")))
	if err != nil {
		return err
	}

	importDir := envOr("IMPORT_DIR", filepath.Join(dataDir, "import"))
	if err := os.MkdirAll(importDir, 0755); err != nil {
		return err
	}

	app.owner = envOr("IMPORT_OWNER", "local")
	app.importer = bulk.NewImporter(app.db, app.store, importDir)
	app.cron = cron.New()

	return nil
}

func (app *App) start() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	runImport := func() {
		log.Println("Starting scheduled import...")
		if _, err := app.importer.Run(ctx, app.owner); err != nil {
			log.Printf("Import failed: %v", err)
		}
	}

	schedule := envOr("IMPORT_SCHEDULE", "@hourly")
	if _, err := app.cron.AddFunc(schedule, runImport); err != nil {
		log.Printf("Invalid IMPORT_SCHEDULE %q: %v", schedule, err)
	}
	app.cron.Start()

	// pick up whatever is already in the drop directory
	go runImport()
}

func (app *App) stop() {
	log.Println("Shutting down...")

	app.cancel()
	// waits for a running import job to finish
	<-app.cron.Stop().Done()

	if app.db != nil {
		app.db.Close()
	}

	log.Println("Shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
