package migrate

import (
	"context"
	"fmt"

	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/db"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot when the deployment opts in.
// Production runs migrations through cmd/migrate instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return fmt.Errorf("config and db client are required")
	}
	if !cfg.DB.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}

	dir := cfg.DB.MigrationsDir
	if dir == "" {
		dir = DefaultDir
	}

	if logg != nil {
		logg.Info(ctx, "running pending migrations")
	}
	return Up(ctx, sqlDB, dir)
}
