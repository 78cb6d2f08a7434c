package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/dotdir"
	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/storage/postgres"
	"github.com/papercomputeco/tether/pkg/storage/sqlite"
)

// DefaultSQLiteFile is the database file created in the .tether/ directory
// when no sqlite_path is configured.
const DefaultSQLiteFile = "tether.db"

// OpenStore opens the configured storage driver. Commands that only read
// conversations or memories use it without building the full runtime.
func OpenStore(ctx context.Context, c config.StorageConfig, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch c.Driver {
	case "", "sqlite":
		path, err := SQLitePath(c, configDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Debug("using SQLite storage", "path", path)
		return driver, nil

	case "postgres":
		if c.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Debug("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q (available: sqlite, postgres)", c.Driver)
	}
}

// SQLitePath resolves the database path, defaulting to tether.db in the
// .tether/ directory.
func SQLitePath(c config.StorageConfig, configDir string) (string, error) {
	if c.SQLitePath != "" {
		return c.SQLitePath, nil
	}

	path, err := dotdir.NewManager().Path(DefaultSQLiteFile, configDir)
	if err != nil {
		return "", fmt.Errorf("resolving tether directory: %w", err)
	}
	return path, nil
}
