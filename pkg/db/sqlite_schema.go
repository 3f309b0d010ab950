package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Mirrors pkg/migrate/migrations for the sqlite driver. Arrays are stored as text
// literals; goose migrations stay Postgres-only.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          VARCHAR(32) PRIMARY KEY,
		email       TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		phone       TEXT,
		role        VARCHAR(16) NOT NULL DEFAULT 'user',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id                VARCHAR(32) PRIMARY KEY,
		user_id           VARCHAR(32) NOT NULL,
		title             TEXT NOT NULL,
		description       TEXT NOT NULL,
		price             NUMERIC NOT NULL,
		category          TEXT NOT NULL,
		sub_category      TEXT,
		city              TEXT,
		condition         TEXT,
		brand             TEXT,
		model             TEXT,
		images            TEXT NOT NULL DEFAULT '{}',
		phone             TEXT,
		phone_hash        VARCHAR(16),
		show_phone        BOOLEAN NOT NULL DEFAULT 1,
		approval_status   VARCHAR(16) NOT NULL DEFAULT 'pending',
		moderator_id      VARCHAR(32),
		moderated_at      DATETIME,
		moderator_notes   TEXT,
		is_active         BOOLEAN NOT NULL DEFAULT 1,
		expires_at        DATETIME NOT NULL,
		is_premium        BOOLEAN NOT NULL DEFAULT 0,
		premium_until     DATETIME,
		premium_features  TEXT NOT NULL DEFAULT '{}',
		created_at        DATETIME NOT NULL,
		updated_at        DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_user_created ON listings (user_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_public ON listings (approval_status, is_active, expires_at)`,
}

// ApplySQLiteSchema creates the listings tables on an sqlite connection. It is
// idempotent.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
