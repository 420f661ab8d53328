// Command server runs the health-scan backend: image analysis with hosted
// model fan-out, scan history, recommendations, narration dispatch, and
// text-to-speech, exposed over an HTTP API.
//
// Configuration is environment-driven (see internal/config). A .env file in
// the working directory is loaded when present.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/healthscan/go-healthscan-backend/internal/config"
	httpapi "github.com/healthscan/go-healthscan-backend/internal/http"
	"github.com/healthscan/go-healthscan-backend/internal/inference"
	"github.com/healthscan/go-healthscan-backend/internal/narration"
	"github.com/healthscan/go-healthscan-backend/internal/observability"
	"github.com/healthscan/go-healthscan-backend/internal/repo"
	"github.com/healthscan/go-healthscan-backend/internal/services"
	"github.com/healthscan/go-healthscan-backend/internal/speech"
	"github.com/healthscan/go-healthscan-backend/internal/storage"
	"github.com/healthscan/go-healthscan-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; production injects real env vars.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op shutdown when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage. The default DSN is memory-resident, so the demo starts with an
	// empty history every run.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			logger.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}

	// Optional object-storage offload for raw captures.
	var artifacts storage.ArtifactStore
	if cfg.Artifacts.Enabled() {
		store, err := storage.NewMinioStore(ctx, cfg.Artifacts)
		if err != nil {
			// The base64 payload on the scan row is the source of truth, so a
			// missing bucket only disables the convenience URL.
			logger.Warn().Err(err).Str("endpoint", cfg.Artifacts.Endpoint).Msg("artifact store unavailable")
		} else {
			artifacts = store
			logger.Info().Str("bucket", cfg.Artifacts.Bucket).Msg("artifact offload enabled")
		}
	}

	svc := &services.ScanService{
		DB:              db,
		Gateway:         inference.NewGateway(cfg.Inference, cfg.OpenAI, logger),
		Artifacts:       artifacts,
		Log:             logger,
		MaxImageBytes:   cfg.MaxUploadBytes,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}

	tts := speech.New(cfg.OpenAI)

	// Server-side narration consumer: latest-wins delivery to the log speaker.
	dispatcher := narration.NewDispatcher()
	speakerDone := make(chan struct{})
	go func() {
		defer close(speakerDone)
		_ = dispatcher.Run(ctx, narration.LogSpeaker{Log: logger})
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, tts, dispatcher, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	dispatcher.Close()
	<-speakerDone

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Msg("server stopped")
}
