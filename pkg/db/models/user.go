package models

import (
	"time"

	"github.com/alo17/ilan-backend/pkg/enums"
)

// User is the identity record owned by the account service. The listing core only
// reads it for phone fallback and house-account resolution.
type User struct {
	ID        string         `gorm:"column:id;type:varchar(32);primaryKey"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name      string         `gorm:"column:name;not null"`
	Phone     *string        `gorm:"column:phone"`
	Role      enums.UserRole `gorm:"column:role;type:varchar(16);not null;default:user"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
