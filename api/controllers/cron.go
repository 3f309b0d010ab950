package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/internal/listings"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

const defaultOnDemandSweepTimeout = 10 * time.Second

type expirationSweeper interface {
	Sweep(ctx context.Context, now time.Time) (*listings.SweepResult, error)
}

type expireListingsResponse struct {
	ExpiredCount int       `json:"expiredCount"`
	ExpiredIDs   []string  `json:"expiredIds"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// CronExpireListings runs one expiration sweep on demand under its own timeout.
func CronExpireListings(sweeper expirationSweeper, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultOnDemandSweepTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		now := time.Now().UTC()
		result, err := sweeper.Sweep(ctx, now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expiration sweep failed"))
			return
		}

		ids := result.ExpiredIDs
		if ids == nil {
			ids = []string{}
		}
		responses.WriteSuccess(w, expireListingsResponse{
			ExpiredCount: result.Count,
			ExpiredIDs:   ids,
			Message:      fmt.Sprintf("%d listing(s) expired", result.Count),
			Timestamp:    now,
		})
	}
}
