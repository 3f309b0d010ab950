package users

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/alo17/ilan-backend/pkg/db/models"
)

// Repository exposes the read-only user lookups the listing core needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByEmail retrieves the user matching the provided email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// PhoneByID returns the stored phone of a user; nil when the user has none.
func (r *Repository) PhoneByID(ctx context.Context, id string) (*string, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Phone, nil
}
