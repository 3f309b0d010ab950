package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alo17/ilan-backend/api/controllers"
	"github.com/alo17/ilan-backend/api/middleware"
	"github.com/alo17/ilan-backend/internal/contact"
	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/ratelimit"
)

// Dependencies are the services the HTTP surface is wired to.
type Dependencies struct {
	Listings listings.Service
	Sweeper  *listings.Sweeper
	Contact  contact.Service
	Limiter  ratelimit.Checker
	Gatherer prometheus.Gatherer
	Ready    map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Service.AllowedOrigins),
	)

	createPolicy := middleware.RateLimitPolicy{
		Name:   "create-listing",
		Limit:  cfg.RateLimit.CreateLimit,
		Window: cfg.RateLimit.CreateWindow,
	}
	cronPolicy := middleware.RateLimitPolicy{
		Name:   "cron",
		Limit:  cfg.RateLimit.CronLimit,
		Window: cfg.RateLimit.CronWindow,
	}
	paymentsPolicy := middleware.RateLimitPolicy{
		Name:   "payments",
		Limit:  cfg.RateLimit.PaymentsLimit,
		Window: time.Minute,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/cron", func(r chi.Router) {
		r.Use(middleware.RateLimit(cronPolicy, deps.Limiter, logg))
		r.Use(middleware.CronAuth(cfg.Cron, logg))
		handler := controllers.CronExpireListings(deps.Sweeper, cfg.Cron.OnDemandTimeout, logg)
		r.Get("/expire-listings", handler)
		r.Post("/expire-listings", handler)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(paymentsPolicy, deps.Limiter, logg)).
			Post("/webhooks/payments", controllers.PaymentsWebhook(deps.Listings, cfg.Payments, cfg.Listings.PremiumDurationDays, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWT, cfg.Listings.HouseAccountEmail, logg))

			r.Route("/listings", func(r chi.Router) {
				r.Get("/", controllers.ListingsBrowse(deps.Listings, logg))
				r.Get("/homepage", controllers.ListingsHomepage(deps.Listings, logg))
				r.With(middleware.RequireAuth(logg)).Get("/mine", controllers.ListingsMine(deps.Listings, logg))
				r.With(middleware.RequireAuth(logg), middleware.RateLimit(createPolicy, deps.Limiter, logg)).
					Post("/", controllers.ListingCreate(deps.Listings, logg))
				r.Get("/{ref}", controllers.ListingGet(deps.Listings, logg))
				r.With(middleware.RequireAuth(logg)).Post("/{ref}/renew", controllers.ListingRenew(deps.Listings, logg))
				r.Post("/{ref}/reveal-phone", controllers.RevealPhone(deps.Contact, logg))
			})

			r.Route("/moderator", func(r chi.Router) {
				r.Use(middleware.RequireModerator(logg))
				r.Patch("/listings/{id}", controllers.ModerateListing(deps.Listings, logg))
			})
		})
	})

	return r
}
