package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/api/middleware"
	"github.com/alo17/ilan-backend/internal/contact"
	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/internal/users"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/crypto"
	"github.com/alo17/ilan-backend/pkg/db/dbtest"
	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/metrics"
	"github.com/alo17/ilan-backend/pkg/ratelimit"
)

type revealFixture struct {
	conn    *gorm.DB
	codec   *crypto.Codec
	handler http.Handler
}

func newRevealFixture(t *testing.T, limit int) *revealFixture {
	t.Helper()
	conn := dbtest.Open(t)
	codec, err := crypto.NewCodec(bytes.Repeat([]byte{3}, 32))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	svc, err := contact.NewService(contact.ServiceParams{
		Listings: listings.NewRepository(conn),
		Users:    users.NewRepository(conn),
		Codec:    codec,
		Limiter:  ratelimit.New(ratelimit.Options{}),
		Metrics:  metrics.NewListingMetrics(prometheus.NewRegistry()),
		Config:   config.RevealPhoneConfig{Limit: limit, Window: time.Minute, Timeout: time.Second},
		Logger:   logger.New(logger.Options{ServiceName: "contact-controller-test"}),
	})
	if err != nil {
		t.Fatalf("contact service: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(config.JWTConfig{Secret: "secret", Issuer: "alo17"}, "", nil))
	r.Post("/api/v1/listings/{ref}/reveal-phone", RevealPhone(svc, nil))
	return &revealFixture{conn: conn, codec: codec, handler: r}
}

func (f *revealFixture) seed(t *testing.T, status enums.ApprovalStatus) *models.Listing {
	t.Helper()
	envelope, err := f.codec.Encrypt("+905321234567")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	now := time.Now().UTC()
	listing := &models.Listing{
		ID:              models.NewID(),
		UserID:          models.NewID(),
		Title:           "Satılık bisiklet",
		Description:     "Az kullanılmış",
		Price:           decimal.NewFromInt(4000),
		Category:        "spor",
		Images:          pq.StringArray{},
		Phone:           &envelope,
		ShowPhone:       true,
		ApprovalStatus:  status,
		IsActive:        true,
		ExpiresAt:       now.Add(48 * time.Hour),
		PremiumFeatures: pq.StringArray{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := f.conn.Create(listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

func (f *revealFixture) reveal(ref, fetchSite string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+ref+"/reveal-phone", nil)
	req.RemoteAddr = "198.51.100.20:4000"
	if fetchSite != "" {
		req.Header.Set("Sec-Fetch-Site", fetchSite)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestRevealPhoneReturnsPhoneWithNoStoreHeaders(t *testing.T) {
	f := newRevealFixture(t, 30)
	listing := f.seed(t, enums.ApprovalStatusApproved)

	resp := f.reveal(listings.BuildSlug(listing.Title, listing.ID), "same-origin")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	var body struct {
		Data revealPhoneResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Phone != "+905321234567" {
		t.Fatalf("unexpected phone %q", body.Data.Phone)
	}
	if got := resp.Header().Get("Cache-Control"); got != "no-store, no-cache, must-revalidate, private" {
		t.Fatalf("unexpected Cache-Control %q", got)
	}
	if resp.Header().Get("Pragma") != "no-cache" {
		t.Fatal("expected Pragma no-cache")
	}
	if got := resp.Header().Get(middleware.HeaderRateLimitRemaining); got != "29" {
		t.Fatalf("expected remaining 29 got %q", got)
	}
}

func TestRevealPhoneCrossSiteIsForbidden(t *testing.T) {
	f := newRevealFixture(t, 30)
	listing := f.seed(t, enums.ApprovalStatusApproved)

	resp := f.reveal(listing.ID, "cross-site")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if resp.Header().Get(middleware.HeaderRateLimitRemaining) != "" {
		t.Fatal("rejected cross-site calls must not consume or report quota")
	}
	if resp.Header().Get("Cache-Control") == "" {
		t.Fatal("error responses must also be uncacheable")
	}
}

func TestRevealPhonePendingListingIsNotFound(t *testing.T) {
	f := newRevealFixture(t, 30)
	listing := f.seed(t, enums.ApprovalStatusPending)

	resp := f.reveal(listing.ID, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if resp.Header().Get(middleware.HeaderRateLimitRemaining) == "" {
		t.Fatal("expected remaining quota header once the limiter ran")
	}
}

func TestRevealPhoneRateLimited(t *testing.T) {
	f := newRevealFixture(t, 1)
	listing := f.seed(t, enums.ApprovalStatusApproved)

	if resp := f.reveal(listing.ID, "same-site"); resp.Code != http.StatusOK {
		t.Fatalf("expected first call 200 got %d", resp.Code)
	}
	resp := f.reveal(listing.ID, "same-site")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if resp.Header().Get(middleware.HeaderRetryAfter) == "" {
		t.Fatal("expected Retry-After on 429")
	}
	if got := resp.Header().Get(middleware.HeaderRateLimitRemaining); got != "0" {
		t.Fatalf("expected remaining 0 got %q", got)
	}
}

func TestRevealPhoneBadReference(t *testing.T) {
	f := newRevealFixture(t, 30)
	resp := f.reveal("bad%20ref", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
