// Package main provides the file ingestor API server entrypoint.
package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/panjf2000/ants/v2"

	"github.com/mohammedterryjack/private-ai-data/cmd/fileingestor-api/handlers"
	"github.com/mohammedterryjack/private-ai-data/cmd/fileingestor-api/middleware"
	"github.com/mohammedterryjack/private-ai-data/internal/cache"
	"github.com/mohammedterryjack/private-ai-data/internal/clients"
	"github.com/mohammedterryjack/private-ai-data/internal/config"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
	"github.com/mohammedterryjack/private-ai-data/internal/pipeline"
	"github.com/mohammedterryjack/private-ai-data/internal/storage"
)

// App bundles the service's long-lived resources for shutdown.
type App struct {
	Router http.Handler
	Pool   *ants.Pool
	Cache  cache.Client
}

// NewApp wires clients, pipeline, storage and handlers into a router.
func NewApp(cfg *config.Config, db *sql.DB, logger *observability.Logger) (*App, error) {
	// Bounded worker pool: excess ingestions are rejected, not queued.
	pool, err := ants.NewPool(cfg.Ingestion.MaxConcurrentJobs, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	cacheClient, err := newCacheClient(cfg, logger)
	if err != nil {
		pool.Release()
		return nil, err
	}

	coordinator, err := storage.NewCoordinator(db, cfg.Ingestion.RawFilesDir, cfg.Ingestion.VectorDimension, logger)
	if err != nil {
		pool.Release()
		return nil, err
	}

	ocrClient := clients.NewOCRClient(cfg.Services.OCRBaseURL, cfg.Services.OCRTimeout)
	llmClient := clients.NewLLMClient(cfg.Services.LLMBaseURL, cfg.Services.EmbedTimeout, cfg.Services.StreamTimeout)

	orchestrator := pipeline.NewOrchestrator(ocrClient, llmClient, coordinator, pipeline.Options{
		OCRConfidenceThreshold: cfg.Ingestion.OCRConfidenceThreshold,
		MaxKeywords:            cfg.Ingestion.MaxKeywords,
	}, logger)

	ingestionHandler := handlers.NewIngestionHandler(logger, orchestrator, pool, handlers.IngestionConfig{
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
		ConsumerWatchdog: cfg.Ingestion.ConsumerWatchdog,
		EventBuffer:      cfg.Ingestion.EventBuffer,
	})
	recordsHandler := handlers.NewRecordsHandler(logger, coordinator, cacheClient, cfg.Cache.TTL)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"fileingestor"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/images", ingestionHandler.IngestImage)
			r.Post("/images/stream", ingestionHandler.IngestImageStream)
			r.Post("/pdfs", ingestionHandler.IngestPDF)
			r.Post("/pdfs/stream", ingestionHandler.IngestPDFStream)
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/images", recordsHandler.ListImages)
			r.Get("/images/{id}", recordsHandler.GetImage)
			r.Delete("/images/{id}", recordsHandler.DeleteImage)
			r.Get("/pdfs/{id}/file", recordsHandler.GetPDFFile)
		})
	})

	return &App{
		Router: r,
		Pool:   pool,
		Cache:  cacheClient,
	}, nil
}

// Close releases the app's long-lived resources.
func (a *App) Close() {
	a.Pool.Release()
	_ = a.Cache.Close()
}

func newCacheClient(cfg *config.Config, logger *observability.Logger) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		logger.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("using redis record cache")
		return client, nil
	}

	logger.Info().Int("max_entries", cfg.Cache.MaxEntries).Msg("using in-memory record cache")
	return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
}
