package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/logger"
)

const (
	ListingExpirationJobName = "listing-expiration"
	PremiumLapseJobName      = "premium-lapse"
)

type listingSweeper interface {
	Sweep(ctx context.Context, now time.Time) (*listings.SweepResult, error)
	LapsePremium(ctx context.Context, now time.Time) (int, error)
}

// ListingJobParams configure the listing lifecycle jobs. Now defaults to time.Now.
type ListingJobParams struct {
	Logger  *logger.Logger
	Sweeper listingSweeper
	Now     func() time.Time
}

func (p ListingJobParams) withDefaults() (ListingJobParams, error) {
	switch {
	case p.Logger == nil:
		return p, errors.New("logger required")
	case p.Sweeper == nil:
		return p, errors.New("listing sweeper required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p, nil
}

// NewListingExpirationJob deactivates every active listing whose expiry has passed.
func NewListingExpirationJob(params ListingJobParams) (Job, error) {
	p, err := params.withDefaults()
	if err != nil {
		return nil, err
	}
	return NewJob(ListingExpirationJobName, func(ctx context.Context) error {
		result, err := p.Sweeper.Sweep(ctx, p.Now().UTC())
		if err != nil {
			return fmt.Errorf("sweep expired listings: %w", err)
		}
		p.Logger.Info(p.Logger.WithField(ctx, "expired_count", result.Count), "listing expiration sweep complete")
		return nil
	}), nil
}

// NewPremiumLapseJob clears premium flags whose paid period ended.
func NewPremiumLapseJob(params ListingJobParams) (Job, error) {
	p, err := params.withDefaults()
	if err != nil {
		return nil, err
	}
	return NewJob(PremiumLapseJobName, func(ctx context.Context) error {
		lapsed, err := p.Sweeper.LapsePremium(ctx, p.Now().UTC())
		if err != nil {
			return fmt.Errorf("lapse premium listings: %w", err)
		}
		p.Logger.Info(p.Logger.WithField(ctx, "lapsed_count", lapsed), "premium lapse complete")
		return nil
	}), nil
}
