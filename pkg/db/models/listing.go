package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/alo17/ilan-backend/pkg/enums"
)

// Listing is a classified ad with its moderation, activation and premium state.
type Listing struct {
	ID          string          `gorm:"column:id;type:varchar(32);primaryKey"`
	UserID      string          `gorm:"column:user_id;type:varchar(32);not null;index"`
	Title       string          `gorm:"column:title;not null"`
	Description string          `gorm:"column:description;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Category    string          `gorm:"column:category;not null;index"`
	SubCategory *string         `gorm:"column:sub_category"`
	City        *string         `gorm:"column:city"`
	Condition   *string         `gorm:"column:condition"`
	Brand       *string         `gorm:"column:brand"`
	Model       *string         `gorm:"column:model"`
	Images      pq.StringArray  `gorm:"column:images;type:text[];not null"`

	Phone     *string `gorm:"column:phone"`
	PhoneHash *string `gorm:"column:phone_hash;type:varchar(16)"`
	ShowPhone bool    `gorm:"column:show_phone;not null"`

	ApprovalStatus enums.ApprovalStatus `gorm:"column:approval_status;type:varchar(16);not null"`
	ModeratorID    *string              `gorm:"column:moderator_id;type:varchar(32)"`
	ModeratedAt    *time.Time           `gorm:"column:moderated_at"`
	ModeratorNotes *string              `gorm:"column:moderator_notes"`

	IsActive  bool      `gorm:"column:is_active;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`

	IsPremium       bool           `gorm:"column:is_premium;not null"`
	PremiumUntil    *time.Time     `gorm:"column:premium_until"`
	PremiumFeatures pq.StringArray `gorm:"column:premium_features;type:text[];not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Listing) TableName() string { return "listings" }
