package listings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/internal/notifications"
	"github.com/alo17/ilan-backend/pkg/auth"
	"github.com/alo17/ilan-backend/pkg/cache"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/crypto"
	"github.com/alo17/ilan-backend/pkg/db"
	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/pagination"
	"github.com/alo17/ilan-backend/pkg/visibility"
)

// Service exposes the listing lifecycle and read paths.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*ListingDTO, error)
	Moderate(ctx context.Context, actor auth.Actor, id string, decision Decision) (*ListingDTO, error)
	MarkPremium(ctx context.Context, id string, durationDays int, features []string) (*ListingDTO, error)
	ClearDanglingPremium(ctx context.Context, id string) (bool, error)
	Renew(ctx context.Context, actor auth.Actor, ref string) (*RenewResult, error)
	Get(ctx context.Context, actor auth.Actor, ref string) (*ListingDTO, error)
	Browse(ctx context.Context, actor auth.Actor, params BrowseParams) (*ListResult, error)
	Mine(ctx context.Context, actor auth.Actor, params pagination.Params) (*ListResult, error)
	Homepage(ctx context.Context) (*Homepage, error)
}

// CreateInput holds the validated payload to create a listing.
type CreateInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Category    string
	SubCategory *string
	City        *string
	Condition   *string
	Brand       *string
	Model       *string
	Images      []string
	Phone       *string
	ShowPhone   bool
}

// Decision is a moderator's verdict on a listing.
type Decision struct {
	Status enums.ApprovalStatus
	Notes  *string
}

// BrowseParams filters the public listing index.
type BrowseParams struct {
	Category string
	Query    string
	Limit    int
	Cursor   string
}

type phoneEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

type houseAccounts interface {
	ID(ctx context.Context) (string, error)
}

// ServiceParams configure the listing service.
type ServiceParams struct {
	Repo          *Repository
	DB            *db.Client
	Codec         phoneEncrypter
	Notifier      notifications.Dispatcher
	HouseAccounts houseAccounts
	Cache         *cache.Cache[*Homepage]
	Config        config.ListingsConfig
	HomepageTTL   time.Duration
	Logger        *logger.Logger
}

type service struct {
	repo        *Repository
	dbClient    *db.Client
	codec       phoneEncrypter
	notifier    notifications.Dispatcher
	house       houseAccounts
	cache       *cache.Cache[*Homepage]
	cfg         config.ListingsConfig
	homepageTTL time.Duration
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs a listing service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Codec == nil {
		return nil, fmt.Errorf("phone codec required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.DurationDays <= 0 {
		cfg.DurationDays = 30
	}
	if cfg.RenewalGraceDays < 0 {
		cfg.RenewalGraceDays = 0
	}
	if cfg.HomepagePremium <= 0 {
		cfg.HomepagePremium = 6
	}
	if cfg.HomepageLatest <= 0 {
		cfg.HomepageLatest = 12
	}
	return &service{
		repo:        params.Repo,
		dbClient:    params.DB,
		codec:       params.Codec,
		notifier:    params.Notifier,
		house:       params.HouseAccounts,
		cache:       params.Cache,
		cfg:         cfg,
		homepageTTL: params.HomepageTTL,
		logg:        params.Logger,
		// Postgres keeps microseconds; matching that keeps page cursors exact.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// Create stores a new listing awaiting moderation with a fresh active period.
func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*ListingDTO, error) {
	if !actor.IsAuthenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to create a listing")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now()
	listing := &models.Listing{
		ID:              models.NewID(),
		UserID:          actor.ID,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		Price:           input.Price,
		Category:        strings.TrimSpace(input.Category),
		SubCategory:     trimmedOrNil(input.SubCategory),
		City:            trimmedOrNil(input.City),
		Condition:       trimmedOrNil(input.Condition),
		Brand:           trimmedOrNil(input.Brand),
		Model:           trimmedOrNil(input.Model),
		Images:          pq.StringArray(nonNil(input.Images)),
		ShowPhone:       input.ShowPhone,
		ApprovalStatus:  enums.ApprovalStatusPending,
		IsActive:        true,
		ExpiresAt:       now.Add(s.cfg.Duration()),
		PremiumFeatures: pq.StringArray{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if phone := trimmedOrNil(input.Phone); phone != nil {
		envelope, err := s.codec.Encrypt(*phone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypt phone")
		}
		hash := crypto.PhoneHash(*phone)
		listing.Phone = &envelope
		listing.PhoneHash = &hash
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, pkgerrors.FromDB(err, "db: insert listing")
	}

	s.notify(ctx, notifications.Event{
		Type:      enums.ListingEventCreated,
		ListingID: listing.ID,
		UserID:    listing.UserID,
		ActorID:   actor.ID,
	})

	dto := NewListingDTO(listing, now, true)
	return &dto, nil
}

// Moderate applies an approve or reject decision.
func (s *service) Moderate(ctx context.Context, actor auth.Actor, id string, decision Decision) (*ListingDTO, error) {
	if !actor.CanModerate() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "moderator role required")
	}
	if !decision.Status.IsDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or rejected")
	}
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.repo.Moderate(ctx, ModerationUpdate{
		ID:          id,
		Status:      decision.Status,
		ModeratorID: actor.ID,
		Notes:       trimmedOrNil(decision.Notes),
		At:          now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: moderate listing")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}

	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateHomepage()
	s.notify(ctx, notifications.Event{
		Type:      enums.ListingEventModerated,
		ListingID: listing.ID,
		UserID:    listing.UserID,
		ActorID:   actor.ID,
		Data:      map[string]any{"status": string(decision.Status)},
	})

	dto := NewListingDTO(listing, now, true)
	return &dto, nil
}

// MarkPremium activates premium for durationDays, merging features, and sends the
// listing back to moderation.
func (s *service) MarkPremium(ctx context.Context, id string, durationDays int, features []string) (*ListingDTO, error) {
	if durationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "premium duration must be positive")
	}
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var listing *models.Listing
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load listing")
		}

		until := now.Add(time.Duration(durationDays) * 24 * time.Hour)
		merged := mergeFeatures(current.PremiumFeatures, features)
		if _, err := txRepo.ApplyPremium(ctx, id, until, merged, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: apply premium")
		}

		current.IsPremium = true
		current.PremiumUntil = &until
		current.PremiumFeatures = pq.StringArray(merged)
		current.ApprovalStatus = enums.ApprovalStatusPending
		current.UpdatedAt = now
		listing = current
		return nil
	}); err != nil {
		return nil, pkgerrors.FromDB(err, "db: mark premium")
	}

	s.invalidateHomepage()
	s.notify(ctx, notifications.Event{
		Type:      enums.ListingEventPremium,
		ListingID: listing.ID,
		UserID:    listing.UserID,
		Data:      map[string]any{"durationDays": durationDays, "features": []string(listing.PremiumFeatures)},
	})

	dto := NewListingDTO(listing, now, true)
	return &dto, nil
}

// ClearDanglingPremium reverts a premium flag left without an end date by a failed
// payment.
func (s *service) ClearDanglingPremium(ctx context.Context, id string) (bool, error) {
	id, err := parseID(id)
	if err != nil {
		return false, err
	}
	cleared, err := s.repo.ClearDanglingPremium(ctx, id, s.now())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear premium")
	}
	return cleared, nil
}

// Renew reactivates an expired listing. Owners may renew within the grace window after
// expiry; admins have no upper bound.
func (s *service) Renew(ctx context.Context, actor auth.Actor, ref string) (*RenewResult, error) {
	if !actor.IsAuthenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to renew a listing")
	}
	id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(listing.UserID) && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner can renew this listing")
	}

	now := s.now()
	if err := s.renewalBlocked(listing, actor, now); err != nil {
		return nil, err
	}

	update := RenewUpdate{
		ID:        id,
		Now:       now,
		ExpiresAt: now.Add(s.cfg.Duration()),
	}
	if !actor.IsAdmin() {
		floor := now.Add(-time.Duration(s.cfg.RenewalGraceDays+1) * 24 * time.Hour)
		update.NotBefore = &floor
	}

	renewed, err := s.repo.Renew(ctx, update)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: renew listing")
	}
	if !renewed {
		// lost a race with another renewal or moderation; report the state now stored
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.renewalBlocked(current, actor, now); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing changed during renewal; retry")
	}

	s.invalidateHomepage()
	s.notify(ctx, notifications.Event{
		Type:      enums.ListingEventRenewed,
		ListingID: listing.ID,
		UserID:    listing.UserID,
		ActorID:   actor.ID,
	})

	return &RenewResult{
		ID:             id,
		IsActive:       true,
		ExpiresAt:      update.ExpiresAt,
		ApprovalStatus: enums.ApprovalStatusPending,
	}, nil
}

// renewalBlocked returns the reason a renewal may not proceed, or nil.
func (s *service) renewalBlocked(listing *models.Listing, actor auth.Actor, now time.Time) error {
	if listing.ExpiresAt.After(now) {
		return pkgerrors.New(pkgerrors.CodeNotExpired, "listing has not expired yet").
			WithDetails(map[string]any{"expiresAt": listing.ExpiresAt})
	}
	if actor.IsAdmin() {
		return nil
	}
	daysSinceExpiry := int(now.Sub(listing.ExpiresAt) / (24 * time.Hour))
	if daysSinceExpiry > s.cfg.RenewalGraceDays {
		return pkgerrors.New(pkgerrors.CodeRenewalWindowClosed, "renewal window has closed").
			WithDetails(map[string]any{
				"daysSinceExpiry": daysSinceExpiry,
				"graceDays":       s.cfg.RenewalGraceDays,
			})
	}
	return nil
}

// Get returns a single listing the actor is allowed to see.
func (s *service) Get(ctx context.Context, actor auth.Actor, ref string) (*ListingDTO, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := visibility.EnsureVisible(listing, actor, now); err != nil {
		return nil, err
	}
	dto := NewListingDTO(listing, now, actor.Owns(listing.UserID) || actor.IsAdmin())
	return &dto, nil
}

// Browse lists publicly visible listings newest first.
func (s *service) Browse(ctx context.Context, actor auth.Actor, params BrowseParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	now := s.now()
	filter, err := s.filterFor(ctx, actor, now)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, ListQuery{
		Filter:   &filter,
		Category: params.Category,
		Search:   params.Query,
		Now:      now,
		Cursor:   cursor,
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: browse listings")
	}
	return page(rows, limit, now, false), nil
}

// Mine lists the actor's own listings regardless of visibility.
func (s *service) Mine(ctx context.Context, actor auth.Actor, params pagination.Params) (*ListResult, error) {
	if !actor.IsAuthenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	now := s.now()
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, ListQuery{
		OwnerID: actor.ID,
		Now:     now,
		Cursor:  cursor,
		Limit:   limit + 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list own listings")
	}
	return page(rows, limit, now, true), nil
}

func (s *service) filterFor(ctx context.Context, actor auth.Actor, now time.Time) (visibility.Filter, error) {
	filter := visibility.Filter{Now: now, Viewer: actor}
	if s.house == nil {
		return filter, nil
	}
	houseID, err := s.house.ID(ctx)
	if err != nil {
		return filter, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve house account")
	}
	filter.HouseAccountID = houseID
	return filter, nil
}

func (s *service) load(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load listing")
	}
	return listing, nil
}

func (s *service) notify(ctx context.Context, event notifications.Event) {
	if s.notifier == nil {
		return
	}
	event.OccurredAt = s.now()
	s.notifier.Dispatch(ctx, event)
}

func page(rows []models.Listing, limit int, now time.Time, withModeration bool) *ListResult {
	rows, more := pagination.Trim(rows, limit)
	next := ""
	if more {
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ListResult{
		Items:  newListingDTOs(rows, now, withModeration),
		Cursor: next,
	}
}

func validateCreate(input CreateInput) error {
	switch {
	case strings.TrimSpace(input.Title) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case strings.TrimSpace(input.Description) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	case strings.TrimSpace(input.Category) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	case input.Price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

func parseID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !models.IsID(id) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid listing id")
	}
	return id, nil
}

// mergeFeatures returns the de-duplicated, sorted union of both feature sets.
func mergeFeatures(current, added []string) []string {
	set := make(map[string]struct{}, len(current)+len(added))
	for _, list := range [][]string{current, added} {
		for _, feature := range list {
			if f := strings.TrimSpace(feature); f != "" {
				set[f] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for feature := range set {
		out = append(out, feature)
	}
	sort.Strings(out)
	return out
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
