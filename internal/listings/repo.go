package listings

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	"github.com/alo17/ilan-backend/pkg/pagination"
	"github.com/alo17/ilan-backend/pkg/visibility"
)

// Repository wraps listing persistence. Every state transition is a single conditional
// UPDATE whose WHERE clause restates the transition's precondition.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new listing row.
func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// FindByID loads the listing by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindForUpdate loads the listing and, on Postgres, row-locks it for the surrounding
// transaction.
func (r *Repository) FindForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := lockRows(r.db.WithContext(ctx)).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// ModerationUpdate carries a moderation decision.
type ModerationUpdate struct {
	ID          string
	Status      enums.ApprovalStatus
	ModeratorID string
	Notes       *string
	At          time.Time
}

// Moderate records the decision. It never touches is_active.
func (r *Repository) Moderate(ctx context.Context, update ModerationUpdate) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", update.ID).
		Updates(map[string]any{
			"approval_status": update.Status,
			"moderator_id":    update.ModeratorID,
			"moderated_at":    update.At,
			"moderator_notes": update.Notes,
			"updated_at":      update.At,
		})
	return res.RowsAffected > 0, res.Error
}

// ApplyPremium activates premium and sends the listing back to review.
func (r *Repository) ApplyPremium(ctx context.Context, id string, until time.Time, features []string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_premium":       true,
			"premium_until":    until,
			"premium_features": pq.StringArray(features),
			"approval_status":  enums.ApprovalStatusPending,
			"updated_at":       at,
		})
	return res.RowsAffected > 0, res.Error
}

// ClearDanglingPremium drops a premium flag that was never given an end date.
func (r *Repository) ClearDanglingPremium(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Where("is_premium = ?", true).
		Where("premium_until IS NULL").
		Updates(map[string]any{
			"is_premium": false,
			"updated_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// RenewUpdate reactivates an expired listing. When NotBefore is set the listing must
// have expired after it.
type RenewUpdate struct {
	ID        string
	Now       time.Time
	ExpiresAt time.Time
	NotBefore *time.Time
}

// Renew applies the renewal only while the listing is still expired and, for owners,
// inside the grace window.
func (r *Repository) Renew(ctx context.Context, update RenewUpdate) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", update.ID).
		Where("expires_at <= ?", update.Now)
	if update.NotBefore != nil {
		query = query.Where("expires_at > ?", *update.NotBefore)
	}
	res := query.Updates(map[string]any{
		"is_active":       true,
		"expires_at":      update.ExpiresAt,
		"approval_status": enums.ApprovalStatusPending,
		"updated_at":      update.Now,
	})
	return res.RowsAffected > 0, res.Error
}

// ExpiryCandidate is the audit view of a listing about to be deactivated.
type ExpiryCandidate struct {
	ID        string
	UserID    string
	Title     string
	ExpiresAt time.Time
}

// ExpiryCandidates returns active listings whose expiry passed, locking them on Postgres.
func (r *Repository) ExpiryCandidates(ctx context.Context, now time.Time) ([]ExpiryCandidate, error) {
	var rows []ExpiryCandidate
	err := lockRows(expiredScope(r.db.WithContext(ctx).Model(&models.Listing{}), now)).
		Select("id", "user_id", "title", "expires_at").
		Order("expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// Expire deactivates the given listings in one statement, touching only rows that are
// still active and past expiry. Repeated calls are no-ops.
func (r *Repository) Expire(ctx context.Context, now time.Time, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := expiredScope(r.db.WithContext(ctx).Model(&models.Listing{}), now).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// LapsePremium clears is_premium on listings whose premium period ended.
func (r *Repository) LapsePremium(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("is_premium = ?", true).
		Where("premium_until IS NOT NULL").
		Where("premium_until < ?", now).
		Updates(map[string]any{
			"is_premium": false,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// ListQuery describes a listing page. Filter is applied when non-nil; OwnerID limits the
// page to one owner.
type ListQuery struct {
	Filter      *visibility.Filter
	OwnerID     string
	Category    string
	Search      string
	PremiumOnly bool
	Now         time.Time
	Cursor      *pagination.Cursor
	Limit       int
}

// List returns listings newest first.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]models.Listing, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{})
	if q.Filter != nil {
		query = query.Scopes(q.Filter.Scope)
	}
	if q.OwnerID != "" {
		query = query.Where("listings.user_id = ?", q.OwnerID)
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		query = query.Where("listings.category = ?", category)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		query = query.Where("(LOWER(listings.title) LIKE ? ESCAPE '\\' OR LOWER(listings.description) LIKE ? ESCAPE '\\')", like, like)
	}
	if q.PremiumOnly {
		query = query.Where("listings.is_premium = ?", true).
			Where("listings.premium_until > ?", q.Now)
	}
	if q.Cursor != nil {
		query = query.Where("(listings.created_at < ? OR (listings.created_at = ? AND listings.id < ?))",
			q.Cursor.CreatedAt, q.Cursor.CreatedAt, q.Cursor.ID)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []models.Listing
	err := query.Order("listings.created_at DESC").Order("listings.id DESC").Find(&rows).Error
	return rows, err
}

func expiredScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("is_active = ?", true).Where("expires_at < ?", now)
}

func lockRows(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(value)
}
