package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/alo17/ilan-backend/api/controllers"
	"github.com/alo17/ilan-backend/api/routes"
	"github.com/alo17/ilan-backend/internal/contact"
	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/internal/notifications"
	"github.com/alo17/ilan-backend/internal/users"
	"github.com/alo17/ilan-backend/pkg/cache"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/crypto"
	"github.com/alo17/ilan-backend/pkg/db"
	"github.com/alo17/ilan-backend/pkg/env"
	"github.com/alo17/ilan-backend/pkg/instance"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/metrics"
	"github.com/alo17/ilan-backend/pkg/migrate"
	"github.com/alo17/ilan-backend/pkg/pubsub"
	"github.com/alo17/ilan-backend/pkg/ratelimit"
	"github.com/alo17/ilan-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	codec, err := crypto.NewCodecFromConfig(cfg.Encryption.Key)
	if err != nil {
		return err
	}

	var limiter ratelimit.Checker = ratelimit.New(ratelimit.Options{MaxEntries: cfg.RateLimit.MaxEntries})
	if cfg.RateLimit.UseRedis() {
		redisLimiter, err := ratelimit.NewRedisLimiter(redisClient)
		if err != nil {
			return err
		}
		limiter = redisLimiter
	}

	ready := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	var dispatcher notifications.Dispatcher = notifications.NewLogDispatcher(logg)
	if cfg.PubSub.Enabled() {
		var psClient *pubsub.Client
		psClient, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, psClient.Close()) }()

		var publisher *notifications.PubSubDispatcher
		publisher, err = notifications.NewPubSubDispatcher(psClient.NotificationPublisher(), cfg.Notifications, logg)
		if err != nil {
			return err
		}
		// Flush in-flight publishes before the client closes.
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Notifications.PublishTimeout)
			defer cancel()
			err = multierr.Append(err, publisher.Close(closeCtx))
		}()
		dispatcher = publisher
		ready["pubsub"] = psClient
	}

	cacheOpts := cache.Options{MaxEntries: cfg.Cache.MaxEntries}
	homepageCache := cache.New[*listings.Homepage](cacheOpts)

	usersRepo := users.NewRepository(dbClient.DB())
	house := users.NewHouseAccountResolver(usersRepo, cfg.Listings.HouseAccountEmail, cache.New[string](cacheOpts), cfg.Cache.HouseAccountTTL, logg)

	listingsRepo := listings.NewRepository(dbClient.DB())
	listingMetrics := metrics.NewListingMetrics(prometheus.DefaultRegisterer)

	listingService, err := listings.NewService(listings.ServiceParams{
		Repo:          listingsRepo,
		DB:            dbClient,
		Codec:         codec,
		Notifier:      dispatcher,
		HouseAccounts: house,
		Cache:         homepageCache,
		Config:        cfg.Listings,
		HomepageTTL:   cfg.Cache.HomepageTTL,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	sweeper, err := listings.NewSweeper(listingsRepo, dbClient, listingMetrics, homepageCache, logg)
	if err != nil {
		return err
	}

	contactService, err := contact.NewService(contact.ServiceParams{
		Listings: listingsRepo,
		Users:    usersRepo,
		Codec:    codec,
		Limiter:  limiter,
		Metrics:  listingMetrics,
		Config:   cfg.RevealPhone,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Listings: listingService,
			Sweeper:  sweeper,
			Contact:  contactService,
			Limiter:  limiter,
			Gatherer: prometheus.DefaultGatherer,
			Ready:    ready,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
