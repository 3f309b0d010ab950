package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/pkg/cache"
	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/logger"
)

const houseAccountCacheKey = "house-account:id"

type emailFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// HouseAccountResolver maps the configured house account email to its user id. Listings
// owned by that account are hidden from public browse.
type HouseAccountResolver struct {
	users emailFinder
	email string
	cache *cache.Cache[string]
	ttl   time.Duration
	logg  *logger.Logger
}

// NewHouseAccountResolver builds a resolver. An empty email disables the exclusion.
func NewHouseAccountResolver(users emailFinder, email string, store *cache.Cache[string], ttl time.Duration, logg *logger.Logger) *HouseAccountResolver {
	return &HouseAccountResolver{
		users: users,
		email: strings.TrimSpace(email),
		cache: store,
		ttl:   ttl,
		logg:  logg,
	}
}

// ID resolves the house account id. A missing account yields "" and no error so browse
// keeps working before the account exists.
func (r *HouseAccountResolver) ID(ctx context.Context) (string, error) {
	if r == nil || r.email == "" || r.users == nil {
		return "", nil
	}
	if r.cache != nil {
		if id, ok := r.cache.Get(houseAccountCacheKey); ok {
			return id, nil
		}
	}

	user, err := r.users.FindByEmail(ctx, r.email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if r.logg != nil {
				r.logg.Warn(ctx, "house account not found; browse exclusion disabled")
			}
			r.remember("")
			return "", nil
		}
		return "", err
	}
	r.remember(user.ID)
	return user.ID, nil
}

func (r *HouseAccountResolver) remember(id string) {
	if r.cache == nil {
		return
	}
	r.cache.Set(houseAccountCacheKey, id, r.ttl)
}
