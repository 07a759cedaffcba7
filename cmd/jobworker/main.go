package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"supplyaudit/internal/config"
	"supplyaudit/internal/embed"
	"supplyaudit/internal/matching"
	"supplyaudit/internal/orchestrator"
	"supplyaudit/internal/report"
	"supplyaudit/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	logger, err := zap.NewProduction()
	must(err)
	defer func() { _ = logger.Sync() }()

	var embedder embed.Provider
	if cfg.EmbedAPIToken != "" {
		embedder = embed.NewClient(cfg)
	}
	var extractor matching.Extractor
	if cfg.AIMatchEnabled && cfg.AIAPIToken != "" {
		extractor = matching.NewAIClient(cfg)
	}

	sched := orchestrator.NewChannelScheduler(256)
	svc := orchestrator.NewService(db, cfg, report.NewXLSXRenderer(cfg.OutputDir), embedder, extractor, sched, logger)
	worker := orchestrator.NewWorker(db, svc, sched, cfg.WorkerPollIntervalSec, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("job worker started", zap.String("db", cfg.DBPath), zap.Int("pollSec", cfg.WorkerPollIntervalSec))
	must(worker.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
