package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minjaecho/defectwatch-backend/internal/cron"
	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/pkg/config"
	"github.com/minjaecho/defectwatch-backend/pkg/db"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	"github.com/minjaecho/defectwatch-backend/pkg/metrics"
	"github.com/minjaecho/defectwatch-backend/pkg/migrate"
	"github.com/minjaecho/defectwatch-backend/pkg/redis"
)

const retentionLockName = "defect-retention"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	defectsService, err := defects.NewService(defects.NewRepository(dbClient.DB()), nil, logg)
	requireResource(ctx, logg, "defect service", err)

	retentionJob, err := cron.NewDefectRetentionJob(cron.DefectRetentionJobParams{
		Logger:    logg,
		Purger:    defectsService,
		Retention: cfg.Retention.Days,
	})
	requireResource(ctx, logg, "retention job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(retentionLockName), cfg.Retention.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Retention.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{"env": cfg.App.Env})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
