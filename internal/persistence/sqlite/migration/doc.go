// Package migration applies versioned SQL schema changes to the billboard
// server's SQLite database.
//
// Migration files are read from an fs.FS (normally an embed.FS compiled into
// the binary) and follow the naming convention {version}_{description}.sql,
// e.g. "001_users.sql". Each file runs in its own transaction and is recorded
// in the schema_migrations table so it is applied at most once.
//
// Example usage:
//
//	scanner := migration.NewFileScanner(files)
//	executor := migration.NewSQLiteExecutor(db)
//	manager := migration.NewMigrationManager(scanner, executor, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
