package listings

import (
	"context"

	"github.com/alo17/ilan-backend/pkg/auth"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
)

const homepageCacheKey = "listings:homepage"

// Homepage returns the premium and latest sections of the front page. The result is
// shared by all anonymous visitors and cached briefly.
func (s *service) Homepage(ctx context.Context) (*Homepage, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(homepageCacheKey); ok {
			return cached, nil
		}
	}

	now := s.now()
	filter, err := s.filterFor(ctx, auth.Anonymous(), now)
	if err != nil {
		return nil, err
	}

	premium, err := s.repo.List(ctx, ListQuery{
		Filter:      &filter,
		PremiumOnly: true,
		Now:         now,
		Limit:       s.cfg.HomepagePremium,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: homepage premium listings")
	}
	latest, err := s.repo.List(ctx, ListQuery{
		Filter: &filter,
		Now:    now,
		Limit:  s.cfg.HomepageLatest,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: homepage latest listings")
	}

	feed := &Homepage{
		Premium: newListingDTOs(premium, now, false),
		Latest:  newListingDTOs(latest, now, false),
	}
	if s.cache != nil {
		s.cache.Set(homepageCacheKey, feed, s.homepageTTL)
	}
	return feed, nil
}

func (s *service) invalidateHomepage() {
	if s.cache == nil {
		return
	}
	s.cache.Delete(homepageCacheKey)
}
