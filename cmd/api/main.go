package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"docsign/internal/config"
	"docsign/internal/database"
	"docsign/internal/logger"
	"docsign/internal/models"
	"docsign/internal/notify"
	"docsign/internal/observability"
	"docsign/internal/server"
	"docsign/internal/signature"
	"docsign/internal/storage"
	"docsign/internal/validation"
)

const seedActor = "system"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	mode := "development"
	if cfg.IsProduction() {
		mode = "production"
	}
	log, err := logger.New(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, log, cfg.Telemetry, cfg.Server.Environment)
	if err != nil {
		log.Fatal("failed to init tracing", "error", err)
	}

	srv, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start", "error", err)
	}

	if cfg.Database.SeedPresets {
		n, err := srv.GetTemplates().SeedPresets(ctx, seedActor)
		if err != nil {
			log.Error("failed to seed template presets", "error", err)
		} else if n > 0 {
			log.Info("seeded template presets", "count", n)
		}
	}

	httpServer := srv.NewServer()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", "error", err)
		}
	}()
	log.Info("server started", "port", cfg.Server.Port, "env", cfg.Server.Environment)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	srv.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("failed to flush traces", "error", err)
	}
	log.Info("server gracefully stopped")
}

// build opens every configured backend and wires the server. Storage, the
// validation cache and notifications are optional.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*server.Server, error) {
	db, err := models.NewDB(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	deps := server.Deps{Models: db}

	pool, err := database.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	deps.DB = pool

	if cfg.Storage.Enabled() {
		s3Service, err := storage.NewS3Service(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		deps.S3 = s3Service
		log.Info("object storage enabled", "bucket", cfg.Storage.Bucket)
	}

	if cfg.Validation.RedisURL != "" {
		cache, err := validation.NewRedisCache(ctx, cfg.Validation.RedisURL, cfg.Validation.CacheTTL)
		if err != nil {
			log.Warn("validation cache unavailable, continuing without it", "error", err)
		} else {
			deps.Cache = cache
		}
	}

	if cfg.Notify.NATSURL != "" {
		publisher, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject, log)
		if err != nil {
			log.Warn("notifications disabled", "error", err)
		} else {
			deps.Notifier = publisher
		}
	}

	if cfg.Signature.IPLookupURL != "" {
		deps.Resolver = signature.NewHTTPResolver(cfg.Signature.IPLookupURL)
	}

	return server.New(cfg, log, deps)
}
