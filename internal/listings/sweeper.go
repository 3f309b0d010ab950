package listings

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/pkg/cache"
	"github.com/alo17/ilan-backend/pkg/db"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/metrics"
)

// SweepResult reports the listings deactivated by one sweep.
type SweepResult struct {
	ExpiredIDs []string `json:"expiredIds"`
	Count      int      `json:"expiredCount"`
}

// Sweeper deactivates listings whose expiry passed. It never deletes rows, and running
// it twice for the same instant changes nothing the second time.
type Sweeper struct {
	repo     *Repository
	dbClient *db.Client
	metrics  *metrics.ListingMetrics
	cache    *cache.Cache[*Homepage]
	logg     *logger.Logger
}

// NewSweeper wires the sweeper. Metrics and cache are optional.
func NewSweeper(repo *Repository, dbClient *db.Client, m *metrics.ListingMetrics, feedCache *cache.Cache[*Homepage], logg *logger.Logger) (*Sweeper, error) {
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Sweeper{repo: repo, dbClient: dbClient, metrics: m, cache: feedCache, logg: logg}, nil
}

// Sweep deactivates every active listing with expires_at before now in one transaction.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	now = now.UTC()
	var candidates []ExpiryCandidate
	var affected int64
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.ExpiryCandidates(ctx, now)
		if err != nil {
			return fmt.Errorf("select expired listings: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		n, err := txRepo.Expire(ctx, now, ids...)
		if err != nil {
			return fmt.Errorf("deactivate expired listings: %w", err)
		}
		candidates = rows
		affected = n
		return nil
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire listings")
	}

	result := &SweepResult{ExpiredIDs: make([]string, 0, len(candidates)), Count: int(affected)}
	for _, c := range candidates {
		result.ExpiredIDs = append(result.ExpiredIDs, c.ID)
		auditCtx := s.logg.WithFields(ctx, map[string]any{
			"event":      "listing.expired",
			"listing_id": c.ID,
			"user_id":    c.UserID,
			"title":      c.Title,
			"expires_at": c.ExpiresAt,
		})
		s.logg.Info(auditCtx, "listing expired")
	}
	s.metrics.AddExpired(result.Count)
	if result.Count > 0 && s.cache != nil {
		s.cache.Delete(homepageCacheKey)
	}
	return result, nil
}

// LapsePremium clears the premium flag on listings whose premium period ended.
func (s *Sweeper) LapsePremium(ctx context.Context, now time.Time) (int, error) {
	n, err := s.repo.LapsePremium(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lapse premium listings")
	}
	s.metrics.AddPremiumLapsed(int(n))
	if n > 0 && s.cache != nil {
		s.cache.Delete(homepageCacheKey)
	}
	return int(n), nil
}
