package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/api"
	"github.com/netcurfew/netcurfew/internal/config"
	"github.com/netcurfew/netcurfew/internal/service"
	"github.com/netcurfew/netcurfew/internal/storage"
	"github.com/netcurfew/netcurfew/internal/storage/memory"
	"github.com/netcurfew/netcurfew/internal/storage/sql"
	"github.com/netcurfew/netcurfew/internal/unifi"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	log := newLogger(cfg.Logging)

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.Fatal().Err(err).Msg("failed to create data directory")
		}
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.Driver == "memory" {
		memStore := memory.New()
		if err := memStore.SeedDefaults(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to seed in-memory storage")
		}
		store = memStore
	} else {
		sqlStore, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize storage")
		}
		store = sqlStore
	}
	defer store.Close()

	// Initialize gateway client (or file shim for testing)
	var gateway unifi.ActionClient
	if cfg.UseFileShim() {
		log.Info().Str("path", cfg.UniFi.FileShim).Msg("using file shim for gateway actions")
		gateway = unifi.NewFileShim(cfg.UniFi.FileShim)
	} else {
		gateway = unifi.New(cfg.UniFi.BaseURL, cfg.UniFi.APIKey, cfg.UniFi.Site, cfg.UniFi.InsecureSkipVerify)
	}

	// Initialize services
	schedules := service.NewScheduleStore(store, log)
	devices := service.NewDeviceService(store, gateway, log)

	executor := service.NewExecutor(schedules, store, gateway, cfg.Scheduler.Interval, log)
	if cfg.Scheduler.Enabled {
		executor.Start()
		defer executor.Stop()
	} else {
		log.Warn().Msg("scheduler disabled, schedules will not be enforced")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(schedules, devices, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", cfg.Server.Addr()).Msg("starting netcurfew server")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func fatal(msg string, err error) {
	logger := zerolog.New(os.Stderr)
	logger.Fatal().Err(err).Msg(msg)
}
