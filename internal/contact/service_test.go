package contact

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/internal/users"
	"github.com/alo17/ilan-backend/pkg/auth"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/crypto"
	"github.com/alo17/ilan-backend/pkg/db/dbtest"
	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/metrics"
	"github.com/alo17/ilan-backend/pkg/ratelimit"
)

var baseNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *service
	conn    *gorm.DB
	codec   *crypto.Codec
	limiter *ratelimit.Limiter
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	codec, err := crypto.NewCodec(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	limiter := ratelimit.New(ratelimit.Options{Clock: func() time.Time { return baseNow }})
	logs := &bytes.Buffer{}

	svc, err := NewService(ServiceParams{
		Listings: listings.NewRepository(conn),
		Users:    users.NewRepository(conn),
		Codec:    codec,
		Limiter:  limiter,
		Metrics:  metrics.NewListingMetrics(prometheus.NewRegistry()),
		Config:   config.RevealPhoneConfig{Limit: limit, Window: time.Minute, Timeout: time.Second},
		Logger:   logger.New(logger.Options{ServiceName: "contact-test", Output: logs}),
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return baseNow }
	return &fixture{svc: impl, conn: conn, codec: codec, limiter: limiter, logs: logs}
}

func (f *fixture) seedUser(t *testing.T, phone *string) *models.User {
	t.Helper()
	user := &models.User{
		ID:    models.NewID(),
		Email: models.NewID() + "@example.com",
		Name:  "İlan Sahibi",
		Phone: phone,
		Role:  enums.UserRoleUser,
	}
	require.NoError(t, f.conn.Create(user).Error)
	return user
}

func (f *fixture) seedListing(t *testing.T, owner string, mutate func(*models.Listing)) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		ID:              models.NewID(),
		UserID:          owner,
		Title:           "Kiralık 2+1 daire",
		Description:     "Merkezi konumda",
		Price:           decimal.NewFromInt(15000),
		Category:        "emlak",
		Images:          pq.StringArray{},
		ShowPhone:       true,
		ApprovalStatus:  enums.ApprovalStatusApproved,
		IsActive:        true,
		ExpiresAt:       baseNow.Add(5 * 24 * time.Hour),
		PremiumFeatures: pq.StringArray{},
		CreatedAt:       baseNow.Add(-time.Hour),
		UpdatedAt:       baseNow.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(listing)
	}
	require.NoError(t, f.conn.Create(listing).Error)
	return listing
}

func (f *fixture) encrypt(t *testing.T, phone string) *string {
	t.Helper()
	envelope, err := f.codec.Encrypt(phone)
	require.NoError(t, err)
	return &envelope
}

func strPtr(s string) *string { return &s }

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func TestRevealReturnsDecryptedListingPhone(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = f.encrypt(t, "+905551112233")
	})

	result, err := f.svc.Reveal(context.Background(), RevealInput{
		Ref:       listings.BuildSlug(listing.Title, listing.ID),
		ClientIP:  "10.0.0.1",
		FetchSite: "same-origin",
	})
	require.NoError(t, err)
	assert.Equal(t, "+905551112233", result.Phone)
	assert.True(t, result.QuotaChecked)
	assert.Equal(t, 29, result.Quota.Remaining)
}

func TestRevealRejectsCrossSiteBeforeCountingQuota(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = f.encrypt(t, "+905551112233")
	})

	result, err := f.svc.Reveal(context.Background(), RevealInput{
		Ref:       listing.ID,
		ClientIP:  "10.0.0.2",
		FetchSite: "cross-site",
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Empty(t, result.Phone)
	assert.False(t, result.QuotaChecked)
	assert.Equal(t, 0, f.limiter.Len())
}

func TestRevealAllowsMissingOrNavigationFetchSite(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = f.encrypt(t, "+905551112233")
	})

	for _, site := range []string{"", "none", "Same-Site"} {
		_, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.0.3", FetchSite: site})
		require.NoError(t, err, "fetch site %q", site)
	}
}

func TestRevealHidesUnapprovedListingFromStrangers(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.ApprovalStatus = enums.ApprovalStatusPending
		l.Phone = f.encrypt(t, "+905551112233")
	})

	_, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.0.4"})
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "listing not found", typed.Message())

	stranger := auth.Actor{ID: models.NewID(), Role: enums.UserRoleUser}
	_, err = f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, Actor: stranger, ClientIP: "10.0.0.4"})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestRevealAllowsOwnerAndAdminOnHiddenListing(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.ApprovalStatus = enums.ApprovalStatusPending
		l.Phone = f.encrypt(t, "+905551112233")
	})

	for _, actor := range []auth.Actor{
		{ID: owner.ID, Role: enums.UserRoleUser},
		{ID: models.NewID(), Role: enums.UserRoleAdmin},
	} {
		result, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, Actor: actor, ClientIP: "10.0.0.5"})
		require.NoError(t, err)
		assert.Equal(t, "+905551112233", result.Phone)
	}
}

func TestRevealExpiredListingIsNotFound(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.ExpiresAt = baseNow.Add(-time.Minute)
		l.Phone = f.encrypt(t, "+905551112233")
	})

	_, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.0.6"})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestRevealRespectsShowPhone(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, strPtr("+905550000000"))
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.ShowPhone = false
		l.Phone = f.encrypt(t, "+905551112233")
	})

	_, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.0.7"})
	typed := requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Equal(t, "phone hidden", typed.Message())
}

func TestRevealRateLimitsPerClient(t *testing.T) {
	f := newFixture(t, 2)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = f.encrypt(t, "+905551112233")
	})
	in := RevealInput{Ref: listing.ID, ClientIP: "10.0.0.8"}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Reveal(context.Background(), in)
		require.NoError(t, err)
	}

	result, err := f.svc.Reveal(context.Background(), in)
	typed := requireCode(t, err, pkgerrors.CodeRateLimit)
	assert.True(t, result.QuotaChecked)
	assert.False(t, result.Quota.Allowed)
	assert.Equal(t, 0, result.Quota.Remaining)
	assert.Equal(t, baseNow.Add(time.Minute), result.Quota.ResetAt)

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, details["remaining"])

	other := in
	other.ClientIP = "10.0.0.9"
	_, err = f.svc.Reveal(context.Background(), other)
	require.NoError(t, err)
}

func TestRevealFallsBackToOwnerPhone(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, f.encrypt(t, "+905554443322"))
	listing := f.seedListing(t, owner.ID, nil)

	result, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.1.1"})
	require.NoError(t, err)
	assert.Equal(t, "+905554443322", result.Phone)
}

func TestRevealPassesThroughLegacyPlaintext(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = strPtr("0555 111 22 33")
	})

	result, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.1.2"})
	require.NoError(t, err)
	assert.Equal(t, "0555 111 22 33", result.Phone)
}

func TestRevealUndecryptablePhoneIsNoPhone(t *testing.T) {
	f := newFixture(t, 30)
	other, err := crypto.NewCodec(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	envelope, err := other.Encrypt("+905551112233")
	require.NoError(t, err)

	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = &envelope
	})

	result, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.1.3"})
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "no phone", typed.Message())
	assert.Empty(t, result.Phone)
	assert.Contains(t, f.logs.String(), "phone decryption failed")
	assert.NotContains(t, f.logs.String(), "+905551112233")
}

func TestRevealMalformedEnvelopeIsNoPhone(t *testing.T) {
	f := newFixture(t, 30)
	valid := *f.encrypt(t, "+905551112233")
	parts := strings.Split(valid, ":")
	longIV := base64.StdEncoding.EncodeToString(make([]byte, 16))
	owner := f.seedUser(t, nil)

	for i, stored := range []string{
		longIV + ":Y2lwaGVy:" + longIV,
		parts[0] + ":" + parts[1] + ":" + parts[2][:8],
	} {
		listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
			l.Phone = strPtr(stored)
		})

		result, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: fmt.Sprintf("10.0.2.%d", i)})
		typed := requireCode(t, err, pkgerrors.CodeNotFound)
		assert.Equal(t, "no phone", typed.Message())
		assert.Empty(t, result.Phone)
	}
	assert.Contains(t, f.logs.String(), "phone decryption failed")
}

func TestRevealWithoutAnyPhone(t *testing.T) {
	f := newFixture(t, 30)
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, nil)

	_, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.1.4"})
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "no phone", typed.Message())
}

func TestRevealBadReference(t *testing.T) {
	f := newFixture(t, 30)

	_, err := f.svc.Reveal(context.Background(), RevealInput{Ref: "../etc/passwd", ClientIP: "10.0.1.5"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Reveal(context.Background(), RevealInput{Ref: "olmayan-ilan-" + models.NewID(), ClientIP: "10.0.1.5"})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRevealFailsClosedWhenLimiterErrors(t *testing.T) {
	f := newFixture(t, 30)
	f.svc.limiter = failingLimiter{}
	owner := f.seedUser(t, nil)
	listing := f.seedListing(t, owner.ID, func(l *models.Listing) {
		l.Phone = strPtr("0555 111 22 33")
	})

	result, err := f.svc.Reveal(context.Background(), RevealInput{Ref: listing.ID, ClientIP: "10.0.1.6"})
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Empty(t, result.Phone)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	require.Error(t, err)
}
