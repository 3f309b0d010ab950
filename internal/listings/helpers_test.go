package listings

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/internal/notifications"
	"github.com/alo17/ilan-backend/pkg/cache"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/crypto"
	"github.com/alo17/ilan-backend/pkg/db"
	"github.com/alo17/ilan-backend/pkg/db/dbtest"
	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	"github.com/alo17/ilan-backend/pkg/logger"
)

var baseNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Dispatch(_ context.Context, event notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) types() []enums.ListingEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.ListingEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type staticHouse struct {
	id string
}

func (s staticHouse) ID(context.Context) (string, error) { return s.id, nil }

type harness struct {
	svc      *service
	conn     *gorm.DB
	client   *db.Client
	codec    *crypto.Codec
	notifier *recordingNotifier
	feed     *cache.Cache[*Homepage]
	houseID  string
}

func testLogger(out io.Writer) *logger.Logger {
	if out == nil {
		out = io.Discard
	}
	return logger.New(logger.Options{ServiceName: "listings-test", Output: out})
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromGorm(conn)
	codec, err := crypto.NewCodec(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	notifier := &recordingNotifier{}
	feed := cache.New[*Homepage](cache.Options{})
	houseID := models.NewID()

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		DB:            client,
		Codec:         codec,
		Notifier:      notifier,
		HouseAccounts: staticHouse{id: houseID},
		Cache:         feed,
		Config: config.ListingsConfig{
			DurationDays:     30,
			RenewalGraceDays: 7,
			HomepagePremium:  6,
			HomepageLatest:   12,
		},
		HomepageTTL: 30 * time.Second,
		Logger:      testLogger(nil),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return baseNow }
	return &harness{
		svc:      impl,
		conn:     conn,
		client:   client,
		codec:    codec,
		notifier: notifier,
		feed:     feed,
		houseID:  houseID,
	}
}

// seedListing inserts an approved, active listing expiring ten days after baseNow.
func seedListing(t *testing.T, conn *gorm.DB, owner string, mutate func(*models.Listing)) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		ID:              models.NewID(),
		UserID:          owner,
		Title:           "Satılık koltuk takımı",
		Description:     "Temiz kullanılmış",
		Price:           decimal.NewFromInt(2500),
		Category:        "ev-yasam",
		Images:          pq.StringArray{},
		ShowPhone:       true,
		ApprovalStatus:  enums.ApprovalStatusApproved,
		IsActive:        true,
		ExpiresAt:       baseNow.Add(10 * 24 * time.Hour),
		PremiumFeatures: pq.StringArray{},
		CreatedAt:       baseNow.Add(-20 * 24 * time.Hour),
		UpdatedAt:       baseNow.Add(-20 * 24 * time.Hour),
	}
	if mutate != nil {
		mutate(listing)
	}
	if err := conn.Create(listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

func reload(t *testing.T, conn *gorm.DB, id string) *models.Listing {
	t.Helper()
	var listing models.Listing
	if err := conn.First(&listing, "id = ?", id).Error; err != nil {
		t.Fatalf("reload listing: %v", err)
	}
	return &listing
}

func countListings(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(&models.Listing{}).Count(&n).Error; err != nil {
		t.Fatalf("count listings: %v", err)
	}
	return n
}
