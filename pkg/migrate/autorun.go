package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/assetcart/pkg/config"
	"github.com/angelmondragon/assetcart/pkg/db"
	"github.com/angelmondragon/assetcart/pkg/logger"
)

// MaybeRunDev brings the orders schema up to date as the API starts, when
// ASSETCART_AUTO_MIGRATE is set on a dev deployment or a local SQLite file.
// Shared Postgres outside dev is migrated with cmd/migrate only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !autoRunAllowed(cfg) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"dir":     DefaultDir,
		"dialect": client.Dialect(),
	})
	logg.Info(ctx, "applying order schema migrations on startup")
	if err := Run(ctx, sqlDB, client.Dialect(), DefaultDir, "up"); err != nil {
		return fmt.Errorf("auto-migrating order schema: %w", err)
	}
	logg.Info(ctx, "order schema up to date")
	return nil
}

func autoRunAllowed(cfg *config.Config) bool {
	if cfg == nil || !cfg.FeatureFlags.AutoMigrate {
		return false
	}
	return cfg.App.IsDev() || cfg.DB.IsSQLite()
}
