package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/notesync/engine/internal/config"
	"github.com/notesync/engine/internal/handlers"
	custommw "github.com/notesync/engine/internal/middleware"
	"github.com/notesync/engine/internal/observability"
	"github.com/notesync/engine/internal/remote"
	"github.com/notesync/engine/internal/repository"
	"github.com/notesync/engine/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("notesync-engine", serviceVersion))
	if err != nil {
		log.Printf("Warning: telemetry init failed: %v", err)
	}

	// Initialize database
	db, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer db.Close()

	// Repositories run on the traced wrapper so every query carries a span
	var store repository.DB = db
	if traced, err := observability.NewTraceDB(db); err != nil {
		log.Printf("Warning: db tracing init failed: %v", err)
	} else {
		store = traced
	}

	// Initialize repositories
	noteRepo := repository.NewNoteRepository(store)
	taskRepo := repository.NewTaskRepository(store)
	journalRepo := repository.NewJournalRepository(store)
	records := repository.NewRecords(noteRepo, taskRepo, journalRepo)
	queueRepo := repository.NewMutationQueueRepository(store)
	conflictRepo := repository.NewConflictRepository(store, cfg.Retention.MaxConflicts)
	versionRepo := repository.NewVersionRepository(store, cfg.Retention.VersionsPerItem)
	stateRepo := repository.NewSyncStateRepository(store)
	backupRepo := repository.NewBackupRepository(store)

	// Remote sync server client
	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token,
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second)

	// Metrics are best-effort; the engine runs fine without a collector
	syncMetrics, err := observability.NewSyncMetrics()
	if err != nil {
		log.Printf("Warning: sync metrics init failed: %v", err)
		syncMetrics = nil
	}

	// Initialize services
	hub := services.NewWebSocketHub()
	go hub.Run()

	hashService := services.NewHashService()
	mutationService := services.NewMutationService(queueRepo, stateRepo, client, hashService, hub, syncMetrics)
	versionService := services.NewVersionService(versionRepo, records, mutationService)
	conflictService := services.NewConflictService(conflictRepo, records, stateRepo, versionService, mutationService, hashService, hub, syncMetrics)
	syncEngine := services.NewSyncEngine(queueRepo, records, stateRepo, conflictService, versionService, client, hashService, hub, syncMetrics)
	noteService := services.NewNoteService(noteRepo, mutationService)
	taskService := services.NewTaskService(taskRepo, mutationService)
	journalService := services.NewJournalService(journalRepo, mutationService)
	backupService := services.NewBackupService(backupRepo)

	scheduler := services.NewSchedulerService(syncEngine, cfg.Sync.Schedule, cfg.Sync.ScheduleEnabled)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	noteHandler := handlers.NewNoteHandler(noteService)
	taskHandler := handlers.NewTaskHandler(taskService)
	journalHandler := handlers.NewJournalHandler(journalService)
	syncHandler := handlers.NewSyncHandler(syncEngine, mutationService)
	conflictHandler := handlers.NewConflictHandler(conflictService)
	versionHandler := handlers.NewVersionHandler(versionService)
	backupHandler := handlers.NewBackupHandler(backupService)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("notesync-engine"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Route("/api/notes", func(r chi.Router) {
		r.Get("/", noteHandler.ListNotes)
		r.Post("/", noteHandler.CreateNote)
		r.Get("/{id}", noteHandler.GetNote)
		r.Put("/{id}", noteHandler.UpdateNote)
		r.Delete("/{id}", noteHandler.DeleteNote)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", taskHandler.ListTasks)
		r.Post("/", taskHandler.CreateTask)
		r.Get("/{id}", taskHandler.GetTask)
		r.Put("/{id}", taskHandler.UpdateTask)
		r.Delete("/{id}", taskHandler.DeleteTask)
	})

	r.Route("/api/journal", func(r chi.Router) {
		r.Get("/", journalHandler.ListEntries)
		r.Post("/", journalHandler.CreateEntry)
		r.Get("/{id}", journalHandler.GetEntry)
		r.Put("/{id}", journalHandler.UpdateEntry)
		r.Delete("/{id}", journalHandler.DeleteEntry)
	})

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/", syncHandler.TriggerSync)
		r.Get("/status", syncHandler.GetSyncStatus)
		r.Get("/queue", syncHandler.ListQueue)
		r.Delete("/queue/{id}", syncHandler.DropMutation)
	})

	r.Route("/api/conflicts", func(r chi.Router) {
		r.Get("/", conflictHandler.ListConflicts)
		r.Get("/{id}", conflictHandler.GetConflict)
		r.Post("/{id}/resolve", conflictHandler.ResolveConflict)
	})

	r.Get("/api/items/{type}/{id}/versions", versionHandler.ListVersions)
	r.Post("/api/versions/{id}/restore", versionHandler.RestoreVersion)

	r.Get("/api/backup/export", backupHandler.ExportBackup)
	r.Post("/api/backup/import", backupHandler.ImportBackup)

	r.Get("/ws", wsHandler.HandleConnection)

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("NoteSync Engine starting on %s", cfg.ServerAddress)
		log.Printf("Database path: %s", cfg.DatabasePath)
		log.Printf("Remote sync server: %s", cfg.Remote.BaseURL)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}

	log.Println("Engine stopped")
}
