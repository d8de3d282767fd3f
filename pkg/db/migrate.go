package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"buildtrack/pkg/config"
)

// Migrate 执行 migrations 目录下的所有 up 脚本，MigrationsPath 为空时跳过
func Migrate(cfg config.DBConfig, logger *zap.Logger) error {
	if cfg.MigrationsPath == "" {
		logger.Info("Migrations path not configured, skipping schema migration")
		return nil
	}

	m, err := migrate.New("file://"+cfg.MigrationsPath, DSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("Schema migrations applied",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
