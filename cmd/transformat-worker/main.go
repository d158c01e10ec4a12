package main

import (
	"context"
	"os"
	"time"

	"transformat/internal/config"
	"transformat/internal/data"
	"transformat/internal/downstream"
	"transformat/internal/lock"
	"transformat/internal/logging"
	"transformat/internal/metrics"
	"transformat/internal/orchestrator"
	"transformat/internal/processor"
	"transformat/internal/repo"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	pool, err := data.Connect(ctx, cfg, 30*time.Second)
	if err != nil {
		return err
	}
	defer pool.Close()

	metricsServer := metrics.NewServer("9090", log)
	metricsServer.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Stop(stopCtx)
	}()

	tasks := repo.NewTaskRepo(pool, log)
	fileRecs := repo.NewFileRecordRepo(pool, log)
	locks := lock.NewManager(pool, log)

	var ds *downstream.Client
	if cfg.DownstreamAPIBaseURL != "" {
		ds = downstream.New(cfg.DownstreamAPIBaseURL, cfg.DownstreamAPITimeout)
	}

	proc := processor.New(cfg, tasks, fileRecs, ds, log)
	orch := orchestrator.New(tasks, fileRecs, locks, proc, cfg.BatchSize, cfg.StaleThreshold, log, pool)

	counts := orch.Run(ctx)
	log.Info("worker run finished",
		zap.Int("completed", counts.Completed),
		zap.Int("failed", counts.Failed),
		zap.Int("skipped", counts.Skipped),
		zap.Int("recovered", counts.Recovered),
		zap.Bool("aborted", counts.Aborted))

	return nil
}
