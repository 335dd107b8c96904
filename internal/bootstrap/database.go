package bootstrap

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/pkg/config"
	"github.com/coursemarket/server-go/pkg/database"
	"github.com/coursemarket/server-go/pkg/database/migrations"
)

// PrepareDatabase migrates the schema and runs registered data migrations
// when enabled via configuration.
func PrepareDatabase(db *gorm.DB, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Database.RunMigrations {
		logger.Info("database migrations skipped", slog.String("env_var", "CM_DB_RUN_MIGRATIONS=false"))
		return nil
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	if err := migrations.Run(db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("database migrations applied successfully")
	return nil
}
