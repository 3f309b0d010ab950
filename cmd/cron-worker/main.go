package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/alo17/ilan-backend/internal/cron"
	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/db"
	"github.com/alo17/ilan-backend/pkg/instance"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/metrics"
	"github.com/alo17/ilan-backend/pkg/migrate"
	"github.com/alo17/ilan-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

// run wires the nightly lifecycle sweep: expire overdue listings, then clear lapsed
// premium flags, once per day under the shared Redis lock.
func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"schedule":    cfg.Cron.ScheduleTime,
		"timezone":    cfg.Cron.Timezone,
		"instance":    instance.GetID(),
	})

	schedule, err := cron.ScheduleFromConfig(cfg.Cron)
	if err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	lock, err := cron.NewRedisLock(redisClient, cron.DefaultLockName, cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	// The worker has no homepage cache; API replicas expire theirs by TTL.
	sweeper, err := listings.NewSweeper(
		listings.NewRepository(dbClient.DB()),
		dbClient,
		metrics.NewListingMetrics(prometheus.DefaultRegisterer),
		nil,
		logg,
	)
	if err != nil {
		return err
	}

	jobParams := cron.ListingJobParams{Logger: logg, Sweeper: sweeper}
	expireJob, err := cron.NewListingExpirationJob(jobParams)
	if err != nil {
		return err
	}
	lapseJob, err := cron.NewPremiumLapseJob(jobParams)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expireJob, lapseJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: schedule,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}
