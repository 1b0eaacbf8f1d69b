package migration

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/amsterdam-discovery/internal/auth"
	"github.com/elskow/amsterdam-discovery/internal/calculator"
	"github.com/elskow/amsterdam-discovery/internal/config"
	"github.com/elskow/amsterdam-discovery/internal/database"
)

// Module brings the schema up to date on startup when database.auto_migrate
// is set: goose files for postgres, gorm AutoMigrate for sqlite.
func Module() fx.Option {
	return fx.Options(
		fx.Invoke(registerHooks),
	)
}

// AutoMigrate creates or updates the tables from the gorm models.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&auth.User{}, &calculator.Calculation{})
}

func registerHooks(
	lifecycle fx.Lifecycle,
	config *config.AppConfig,
	db *gorm.DB,
	logger *zap.Logger,
) {
	if !config.Database.AutoMigrate {
		logger.Info("automatic migrations disabled")
		return
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if config.Database.Driver != database.DriverPostgres {
				logger.Info("Auto-migrating sqlite schema")
				if err := AutoMigrate(ctx, db); err != nil {
					return fmt.Errorf("failed to auto-migrate database: %w", err)
				}
				return nil
			}

			migrator, err := NewMigrator(&config.Database)
			if err != nil {
				return err
			}
			defer migrator.Close()
			return reconcile(migrator, logger)
		},
	})
}

func reconcile(migrator *Migrator, logger *zap.Logger) error {
	// Get current version before migration
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	// Get latest available version
	latestVersion, err := migrator.GetLatestVersion()
	if err != nil {
		return fmt.Errorf("failed to get latest migration version: %w", err)
	}

	logger.Info("Database migration status",
		zap.Int64("current_version", currentVersion),
		zap.Int64("latest_version", latestVersion))

	switch {
	case currentVersion > latestVersion:
		logger.Info("Downgrading database schema",
			zap.Int64("from_version", currentVersion),
			zap.Int64("to_version", latestVersion))
		if err := migrator.DownTo(latestVersion); err != nil {
			return fmt.Errorf("failed to downgrade database: %w", err)
		}
	case currentVersion < latestVersion:
		logger.Info("Upgrading database schema",
			zap.Int64("from_version", currentVersion),
			zap.Int64("to_version", latestVersion))
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("failed to upgrade database: %w", err)
		}
	}
	return nil
}
