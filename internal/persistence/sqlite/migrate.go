package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/billboard-server/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

func newMigrationManager(pool *ConnectionPool, logger *slog.Logger) migration.MigrationManager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(pool.DB()),
		migrationDir,
		logger,
	)
}

// Migrate applies every pending embedded schema migration.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	return newMigrationManager(pool, logger).RunMigrations(ctx)
}

// MigrationStatus reports the applied and pending embedded migrations.
func MigrationStatus(ctx context.Context, pool *ConnectionPool) (*migration.MigrationStatus, error) {
	return newMigrationManager(pool, slog.Default()).GetMigrationStatus(ctx)
}
