// Package main runs the background worker: queued analytics batches, release notifications
// and the release scheduler.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/releaselayer/backend/config"
	"github.com/releaselayer/backend/internal/analytics"
	"github.com/releaselayer/backend/internal/integrations"
	"github.com/releaselayer/backend/internal/releases"
	"github.com/releaselayer/backend/internal/worker"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/queue"
	"github.com/releaselayer/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	releaseRepo := releases.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	notifier := worker.NewNotifier(
		releaseRepo,
		integrations.NewRepository(pool),
		&http.Client{Timeout: cfg.Worker.WebhookTimeout},
		logger.Named("notifier"),
	)
	processor := worker.NewProcessor(analytics.NewRepository(pool), notifier, jobQueue, logger.Named("processor"))
	scheduler := worker.NewScheduler(
		releaseRepo,
		jobQueue,
		rdb.SnapshotCache(cfg.SDK.InitCacheTTL),
		cfg.Worker.SchedulerInterval,
		logger.Named("scheduler"),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		processor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})
	logger.Info("worker started", zap.Duration("scheduler_interval", cfg.Worker.SchedulerInterval))

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
