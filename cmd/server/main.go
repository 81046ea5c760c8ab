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

	"github.com/pieterkdevilliers/music-db/internal/app"
	"github.com/pieterkdevilliers/music-db/internal/config"
	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/handlers"
	"github.com/pieterkdevilliers/music-db/internal/llm"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/musicbrainz"
	"github.com/pieterkdevilliers/music-db/internal/roon"
	"github.com/pieterkdevilliers/music-db/internal/storage"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Art Storage
	artStore, err := storage.NewArtStore(cfg.ArtDir)
	if err != nil {
		appLogger.Error("Failed to init art storage", "error", err)
		os.Exit(1)
	}

	// Initialize External Clients
	mbClient := musicbrainz.NewClient(cfg.MusicBrainzURL, cfg.CoverArtURL)
	roonClient := roon.NewClient(cfg.RoonTokenPath, appLogger)
	if cfg.RoonHost != "" {
		roonClient.Connect(cfg.RoonHost, cfg.RoonPort)
	}
	llmClient := llm.NewClient(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	})

	// Initialize Job Trackers
	fsTracker := app.NewTracker(domain.JobKindFSImport)
	libTracker := app.NewTracker(domain.JobKindLibraryImport)
	enrTracker := app.NewTracker(domain.JobKindEnrichment)

	// Initialize Services
	gateway := app.NewUpsertGateway(db, artStore, appLogger)
	artResolver := app.NewArtResolver(db, mbClient, artStore, appLogger)
	enricher := app.NewEnricher(db, llmClient, enrTracker, appLogger)
	fsImporter := app.NewFSImporter(db, gateway, artResolver, fsTracker, appLogger)
	libImporter := app.NewLibImporter(db, roonClient, gateway, artResolver, enricher, libTracker, appLogger)

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Routes
	h := handlers.NewHandler(db, artStore, fsImporter, libImporter, enricher,
		fsTracker, libTracker, enrTracker, roonClient, mbClient, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
