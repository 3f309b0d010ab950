package listings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alo17/ilan-backend/pkg/db/models"
	"github.com/alo17/ilan-backend/pkg/enums"
	"github.com/alo17/ilan-backend/pkg/visibility"
)

// ListingDTO is the read shape of a listing. It never carries the phone number.
type ListingDTO struct {
	ID              string               `json:"id"`
	Slug            string               `json:"slug"`
	UserID          string               `json:"userId"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Price           decimal.Decimal      `json:"price"`
	Category        string               `json:"category"`
	SubCategory     *string              `json:"subCategory,omitempty"`
	City            *string              `json:"city,omitempty"`
	Condition       *string              `json:"condition,omitempty"`
	Brand           *string              `json:"brand,omitempty"`
	Model           *string              `json:"model,omitempty"`
	Images          []string             `json:"images"`
	ShowPhone       bool                 `json:"showPhone"`
	HasPhone        bool                 `json:"hasPhone"`
	ApprovalStatus  enums.ApprovalStatus `json:"approvalStatus"`
	IsActive        bool                 `json:"isActive"`
	IsVisible       bool                 `json:"isVisible"`
	ExpiresAt       time.Time            `json:"expiresAt"`
	IsPremium       bool                 `json:"isPremium"`
	PremiumUntil    *time.Time           `json:"premiumUntil,omitempty"`
	PremiumFeatures []string             `json:"premiumFeatures"`
	ModeratedAt     *time.Time           `json:"moderatedAt,omitempty"`
	ModeratorNotes  *string              `json:"moderatorNotes,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// NewListingDTO maps a model to its read shape. Moderation notes are only included
// when withModeration is set.
func NewListingDTO(l *models.Listing, now time.Time, withModeration bool) ListingDTO {
	dto := ListingDTO{
		ID:              l.ID,
		Slug:            BuildSlug(l.Title, l.ID),
		UserID:          l.UserID,
		Title:           l.Title,
		Description:     l.Description,
		Price:           l.Price,
		Category:        l.Category,
		SubCategory:     l.SubCategory,
		City:            l.City,
		Condition:       l.Condition,
		Brand:           l.Brand,
		Model:           l.Model,
		Images:          nonNil(l.Images),
		ShowPhone:       l.ShowPhone,
		HasPhone:        l.Phone != nil && *l.Phone != "",
		ApprovalStatus:  l.ApprovalStatus,
		IsActive:        l.IsActive,
		IsVisible:       visibility.IsPublic(l, now),
		ExpiresAt:       l.ExpiresAt,
		IsPremium:       premiumActive(l, now),
		PremiumFeatures: nonNil(l.PremiumFeatures),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if dto.IsPremium {
		dto.PremiumUntil = l.PremiumUntil
	}
	if withModeration {
		dto.ModeratedAt = l.ModeratedAt
		dto.ModeratorNotes = l.ModeratorNotes
	}
	return dto
}

func newListingDTOs(rows []models.Listing, now time.Time, withModeration bool) []ListingDTO {
	out := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewListingDTO(&rows[i], now, withModeration))
	}
	return out
}

// premiumActive ignores stale rows where the flag outlived premium_until.
func premiumActive(l *models.Listing, now time.Time) bool {
	return l.IsPremium && l.PremiumUntil != nil && l.PremiumUntil.After(now)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}

// RenewResult is returned after a successful renewal.
type RenewResult struct {
	ID             string               `json:"id"`
	IsActive       bool                 `json:"isActive"`
	ExpiresAt      time.Time            `json:"expiresAt"`
	ApprovalStatus enums.ApprovalStatus `json:"approvalStatus"`
}

// ListResult wraps a page of listings and the cursor for the next page.
type ListResult struct {
	Items  []ListingDTO `json:"items"`
	Cursor string       `json:"cursor"`
}

// Homepage is the cached front page feed.
type Homepage struct {
	Premium []ListingDTO `json:"premium"`
	Latest  []ListingDTO `json:"latest"`
}
