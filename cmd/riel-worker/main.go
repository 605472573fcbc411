package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"riel/internal/amqp"
	"riel/internal/config"
	"riel/internal/core"
	"riel/internal/ledger"
	applog "riel/internal/log"
	"riel/internal/storage"
	"riel/internal/storage/memory"
	"riel/internal/storage/postgres"
	"riel/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting riel-worker")

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

	// Reports are still written to disk when AMQP is not configured;
	// only the notifications are skipped.
	var publisher worker.ReportPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - report notifications will not be published")
	}

	loc := cfg.Location()
	reporter := worker.NewReportWorker(store, publisher, cfg.ExportDir, loc)
	schedule := worker.NewSchedule(loc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Report jobs configured",
		"timezone", cfg.Timezone, "export_dir", cfg.ExportDir, "backend", cfg.DataBackend)

	for _, period := range []core.Period{core.Daily, core.Weekly, core.Monthly} {
		go runJob(ctx, logger, reporter, schedule, period)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Riel-worker shutdown complete")
}

// runJob sleeps until a period's next fire time, runs the report and
// repeats until the context ends.
func runJob(ctx context.Context, logger *applog.Logger, reporter *worker.ReportWorker, schedule *worker.Schedule, period core.Period) {
	for {
		next := schedule.NextRun(period, time.Now())
		logger.Info("Next report run scheduled",
			"period", string(period), "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case fireTime := <-timer.C:
			ref := schedule.RefFor(period, fireTime)
			written, err := reporter.RunPeriod(ctx, period, ref)
			if err != nil {
				logger.Error("Report run failed", "period", string(period), "error", err)
			} else {
				logger.Info("Report run finished", "period", string(period), "reports", written)
			}
		}
	}
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
