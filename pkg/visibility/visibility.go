package visibility

import (
	"time"

	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/pkg/auth"
	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
)

// IsPublic reports whether a listing may be shown to anyone at now. It is derived on
// every read and never stored.
func IsPublic(listing *models.Listing, now time.Time) bool {
	if listing == nil {
		return false
	}
	return listing.IsActive &&
		listing.ApprovalStatus == enums.ApprovalStatusApproved &&
		listing.ExpiresAt.After(now)
}

// CanView reports whether viewer may read the listing: public, owned by the viewer, or
// the viewer is admin-equivalent.
func CanView(listing *models.Listing, viewer auth.Actor, now time.Time) bool {
	if listing == nil {
		return false
	}
	return IsPublic(listing, now) || viewer.Owns(listing.UserID) || viewer.IsAdmin()
}

// EnsureVisible returns a not-found error when the viewer may not see the listing, so
// hidden and missing listings are indistinguishable.
func EnsureVisible(listing *models.Listing, viewer auth.Actor, now time.Time) error {
	if !CanView(listing, viewer, now) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return nil
}

// Filter applies the public visibility rules to list queries.
type Filter struct {
	Now            time.Time
	HouseAccountID string
	Viewer         auth.Actor
}

// ExcludesHouseAccount reports whether house account listings are hidden for the viewer.
func (f Filter) ExcludesHouseAccount() bool {
	if f.HouseAccountID == "" {
		return false
	}
	if f.Viewer.IsAdmin() || f.Viewer.ID == f.HouseAccountID {
		return false
	}
	return true
}

// Scope restricts a listings query to publicly visible rows.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	now := f.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	db = db.Where("listings.is_active = ?", true).
		Where("listings.approval_status = ?", enums.ApprovalStatusApproved).
		Where("listings.expires_at > ?", now)
	if f.ExcludesHouseAccount() {
		db = db.Where("listings.user_id <> ?", f.HouseAccountID)
	}
	return db
}
