package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/auth"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/db/models"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/metrics"
	"github.com/alo17/ilan-backend/pkg/ratelimit"
	"github.com/alo17/ilan-backend/pkg/visibility"
)

const rateLimitNamespace = "reveal-phone"

// Fetch-Site values a browser sends for requests originating from our own pages.
var allowedFetchSites = map[string]struct{}{
	"same-origin": {},
	"same-site":   {},
	"none":        {},
}

// Service reveals a listing's contact phone to eligible callers.
type Service interface {
	Reveal(ctx context.Context, input RevealInput) (RevealResult, error)
}

// RevealInput is everything the reveal checks need from the request.
type RevealInput struct {
	Ref       string
	Actor     auth.Actor
	ClientIP  string
	FetchSite string
}

// RevealResult carries the phone on success. Quota is populated whenever the limiter
// ran, including on errors returned after the limiter check.
type RevealResult struct {
	Phone        string
	Quota        ratelimit.Result
	QuotaChecked bool
}

type listingFinder interface {
	FindByID(ctx context.Context, id string) (*models.Listing, error)
}

type phoneFinder interface {
	PhoneByID(ctx context.Context, id string) (*string, error)
}

type phoneRevealer interface {
	Reveal(value string) (string, error)
}

// ServiceParams configure the reveal service.
type ServiceParams struct {
	Listings listingFinder
	Users    phoneFinder
	Codec    phoneRevealer
	Limiter  ratelimit.Checker
	Metrics  *metrics.ListingMetrics
	Config   config.RevealPhoneConfig
	Logger   *logger.Logger
}

type service struct {
	listings listingFinder
	users    phoneFinder
	codec    phoneRevealer
	limiter  ratelimit.Checker
	metrics  *metrics.ListingMetrics
	cfg      config.RevealPhoneConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the reveal service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Listings == nil:
		return nil, fmt.Errorf("listing finder required")
	case params.Users == nil:
		return nil, fmt.Errorf("user phone finder required")
	case params.Codec == nil:
		return nil, fmt.Errorf("phone codec required")
	case params.Limiter == nil:
		return nil, fmt.Errorf("rate limiter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &service{
		listings: params.Listings,
		users:    params.Users,
		codec:    params.Codec,
		limiter:  params.Limiter,
		metrics:  params.Metrics,
		cfg:      cfg,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Reveal runs the checks in a fixed order: request origin, rate limit, reference,
// existence, visibility, the owner's show-phone choice, and finally phone resolution.
func (s *service) Reveal(ctx context.Context, input RevealInput) (RevealResult, error) {
	var result RevealResult

	if !fetchSiteAllowed(input.FetchSite) {
		s.metrics.IncReveal(metrics.RevealOutcomeForbidden)
		return result, pkgerrors.New(pkgerrors.CodeForbidden, "cross-site reveal requests are not allowed")
	}

	quota, err := s.limiter.Check(ctx, ratelimit.Key(rateLimitNamespace, input.ClientIP), s.cfg.Limit, s.cfg.Window)
	if err != nil {
		s.metrics.IncReveal(metrics.RevealOutcomeError)
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable")
	}
	result.Quota = quota
	result.QuotaChecked = true
	if !quota.Allowed {
		s.metrics.IncReveal(metrics.RevealOutcomeRateLimited)
		return result, pkgerrors.New(pkgerrors.CodeRateLimit, "too many phone reveal requests").
			WithDetails(map[string]any{
				"remaining": quota.Remaining,
				"resetAt":   quota.ResetAt.UTC(),
			})
	}

	id, err := listings.ParseRef(input.Ref)
	if err != nil {
		s.metrics.IncReveal(metrics.RevealOutcomeNotFound)
		return result, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncReveal(metrics.RevealOutcomeNotFound)
			return result, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		s.metrics.IncReveal(metrics.RevealOutcomeError)
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load listing")
	}

	if !visibility.CanView(listing, input.Actor, s.now()) {
		s.metrics.IncReveal(metrics.RevealOutcomeNotFound)
		return result, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if !listing.ShowPhone {
		s.metrics.IncReveal(metrics.RevealOutcomeHidden)
		return result, pkgerrors.New(pkgerrors.CodeForbidden, "phone hidden")
	}

	stored, err := s.storedPhone(ctx, listing)
	if err != nil {
		s.metrics.IncReveal(metrics.RevealOutcomeError)
		return result, err
	}
	if stored == "" {
		s.metrics.IncReveal(metrics.RevealOutcomeNoPhone)
		return result, errNoPhone()
	}

	phone, err := s.codec.Reveal(stored)
	if err != nil {
		logCtx := s.logg.WithListingID(ctx, listing.ID)
		s.logg.Error(logCtx, "phone decryption failed", err)
		s.metrics.IncReveal(metrics.RevealOutcomeNoPhone)
		return result, errNoPhone()
	}

	s.metrics.IncReveal(metrics.RevealOutcomeRevealed)
	result.Phone = phone
	return result, nil
}

// storedPhone prefers the listing's phone and falls back to the owner's profile phone.
func (s *service) storedPhone(ctx context.Context, listing *models.Listing) (string, error) {
	if listing.Phone != nil && strings.TrimSpace(*listing.Phone) != "" {
		return strings.TrimSpace(*listing.Phone), nil
	}
	phone, err := s.users.PhoneByID(ctx, listing.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load owner phone")
	}
	if phone == nil {
		return "", nil
	}
	return strings.TrimSpace(*phone), nil
}

func fetchSiteAllowed(value string) bool {
	site := strings.ToLower(strings.TrimSpace(value))
	if site == "" {
		return true
	}
	_, ok := allowedFetchSites[site]
	return ok
}

func errNoPhone() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "no phone")
}
