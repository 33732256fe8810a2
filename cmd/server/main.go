package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/dosecert/api"
	dbfs "github.com/garnizeh/dosecert/db"
	"github.com/garnizeh/dosecert/internal/ai"
	"github.com/garnizeh/dosecert/internal/config"
	"github.com/garnizeh/dosecert/internal/db"
	"github.com/garnizeh/dosecert/internal/drafts"
	"github.com/garnizeh/dosecert/internal/jobs"
	"github.com/garnizeh/dosecert/internal/projectfile"
	"github.com/garnizeh/dosecert/internal/projects"
	"github.com/garnizeh/dosecert/internal/repository/sqlite"
	"github.com/garnizeh/dosecert/internal/schemas"
	"github.com/garnizeh/dosecert/internal/share"
	"github.com/garnizeh/dosecert/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)
	ai.SetLogger(logger)
	ollama.SetLogger(logger)

	log.Printf("Starting dosecert server version %s (built at %s)", version, buildTime)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
	}

	repo := sqlite.New(database, logger)
	loader, err := schemas.NewLoader(ctx, repo)
	if err != nil {
		log.Fatalf("Failed to load schemas: %v", err)
	}

	store := projects.NewStore(repo, logger)
	dr := drafts.New(repo, logger)
	session := projects.NewSession(store, dr)

	codec, err := share.New(cfg.ShareSecret)
	if err != nil {
		log.Fatalf("Failed to set up share links: %v", err)
	}

	client, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		log.Fatalf("Failed to create ollama client: %v", err)
	}

	// Narrative generation is optional; the rest of the service runs without it.
	var (
		narrator ai.Narrator
		queue    api.JobQueue
		pool     *jobs.WorkerPool
	)
	jobsRepo := jobs.NewRepository(database)
	engine, err := ai.NewEngine(ctx, client, cfg.EngineConfig, repo, loader)
	if err != nil {
		logger.Warn("narrative generation disabled", "err", err)
	} else {
		narrator = engine
		pool = jobs.NewWorkerPool(jobsRepo, map[string]jobs.Handler{
			ai.JobTypeNarrative: ai.NarrativeHandler(engine, store),
		}, logger, cfg.Workers)
		pool.Start(ctx)
		queue = pool
	}

	var autosaver *drafts.Autosaver
	if !cfg.Autosave.Disabled {
		autosaver = drafts.NewAutosaver(dr, session, cfg.Autosave.Interval, logger)
		autosaver.Start(ctx)
	}

	handler := api.SetupRoutes(api.Handlers{
		System:    &api.SystemHandler{DB: database, Narrator: client},
		Calc:      &api.CalcHandler{},
		Projects:  api.NewProjectsHandler(store, session, dr, projectfile.NewImporter(loader), queue),
		Session:   api.NewSessionHandler(session, dr),
		Share:     api.NewShareHandler(codec, session),
		Narrative: api.NewNarrativeHandler(narrator, session, jobsRepo),
		Admin:     api.NewAdminHandler(repo, repo, loader),
	}, version, buildTime, cfg.APITimeout)

	// Create HTTP server
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
		// project files carry attachments inline; allow for slow uploads
		ReadTimeout:  cfg.APITimeout * 2,
		WriteTimeout: cfg.APITimeout * 2,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if autosaver != nil {
		autosaver.Stop()
		// keep unsaved work recoverable across restarts
		autosaver.Tick(shutdownCtx)
	}
	if pool != nil {
		pool.Stop()
	}
	stop()
	if err := client.Close(); err != nil {
		log.Printf("Error closing ollama client: %v", err)
	}

	// Close database connection
	if err := database.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}
