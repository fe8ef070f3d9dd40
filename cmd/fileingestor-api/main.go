package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/mohammedterryjack/private-ai-data/internal/config"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
	"github.com/mohammedterryjack/private-ai-data/internal/storage"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("ocr", cfg.Services.OCRBaseURL).
		Str("llm", cfg.Services.LLMBaseURL).
		Msg("Starting file ingestor API")

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer db.Close()

	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	if err := db.PingContext(initCtx); err != nil {
		cancelInit()
		logger.Fatal().Err(err).Msg("Database not reachable")
	}
	if err := storage.InitSchema(initCtx, db); err != nil {
		cancelInit()
		logger.Fatal().Err(err).Msg("Failed to initialize schema")
	}
	cancelInit()

	app, err := NewApp(cfg, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build application")
	}
	defer app.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     app.Router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// No WriteTimeout: progress streams stay open for the whole job.
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
