package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"riel/internal/config"
	apphttp "riel/internal/http"
	"riel/internal/ledger"
	applog "riel/internal/log"
	"riel/internal/storage"
	"riel/internal/storage/memory"
	"riel/internal/storage/postgres"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, applog.ComponentApp)
	applog.SetDefault(logger)

	logger.Info("Starting riel server")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Store initialized", "backend", cfg.DataBackend)

	guard := ledger.NewDuplicateGuard(cfg.DupWindow)
	service := ledger.NewService(store, guard, cfg.Location())

	srv := apphttp.NewServer(":"+cfg.Port, service, cfg.Location(), logger.WithComponent(applog.ComponentHTTP))

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Listening", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func newStore(cfg *config.Config) (ledger.EntryStore, error) {
	switch cfg.DataBackend {
	case "sqlite":
		return storage.NewSQLiteStore(cfg.SQLiteDBDir)
	case "postgres":
		return postgres.New(cfg.PostgresURL)
	default:
		return memory.New(), nil
	}
}
