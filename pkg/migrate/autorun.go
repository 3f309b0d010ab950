package migrate

import (
	"context"
	"fmt"

	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/db"
	"github.com/alo17/ilan-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date when ALO17_AUTO_MIGRATE is set. Postgres
// gets the embedded goose set; an sqlite file gets the equivalent table definitions.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Dialect()})

	if client.Dialect() == db.DriverSQLite {
		logg.Info(ctx, "applying sqlite schema")
		return db.ApplySQLiteSchema(ctx, client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle for migrations: %w", err)
	}
	logg.Info(ctx, "applying embedded migrations")
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
