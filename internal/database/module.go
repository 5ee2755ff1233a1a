package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/AimalShah/BarterDash-sub003/internal/config"
)

//go:embed migrations/001_initial_schema.sql
var migrationSQL string

// Module provides database connectivity and migrations
var Module = fx.Module("database",
	fx.Provide(ProvideRepository),
	fx.Invoke(runMigrations),
)

// ProvideRepository creates a database repository from config
func ProvideRepository(cfg *config.Config, logger *zap.Logger) (*Repository, error) {
	logger.Info("Connecting to database...")

	pool := PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute,
	}

	repo, err := NewRepository(cfg.Database.ConnectionString, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}

// runMigrations runs database migrations on startup
func runMigrations(repo *Repository, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	ctx := context.Background()
	if err := repo.RunMigrations(ctx, migrationSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Migrations completed successfully")
	return nil
}
