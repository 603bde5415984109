package migration

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_create_widgets.sql": {Data: []byte(`-- Description: Create widgets
CREATE TABLE widgets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL CHECK (name IN ('a', 'b'))
);`)},
		"migrations/002_add_widget_index.sql": {Data: []byte(`CREATE INDEX idx_widgets_name ON widgets(name);
-- trailing comment`)},
		"migrations/README.md": {Data: []byte("ignored")},
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewConnectionManager(InMemoryTestSQLiteConfig()).GetConnection()
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestFileScanner(t *testing.T) {
	t.Parallel()

	scanner := NewFileScanner(testMigrations())
	migrations, err := scanner.ScanMigrations("migrations")
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[0].Description != "Create widgets" {
		t.Fatalf("unexpected first migration: %#v", migrations[0])
	}
	if migrations[1].Description != "add widget index" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
	if len(migrations[0].Checksum) != 64 {
		t.Fatalf("expected sha256 checksum, got %q", migrations[0].Checksum)
	}
}

func TestFileScannerRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		files fstest.MapFS
		want  error
	}{
		"bad name": {
			files: fstest.MapFS{"m/create.sql": {Data: []byte("SELECT 1;")}},
			want:  ErrInvalidMigrationFile,
		},
		"duplicate version": {
			files: fstest.MapFS{
				"m/001_a.sql":  {Data: []byte("SELECT 1;")},
				"m/0001_b.sql": {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
		"unbalanced parenthesis": {
			files: fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE t (id INTEGER;")}},
			want:  ErrInvalidMigrationFile,
		},
		"comment only": {
			files: fstest.MapFS{"m/001_a.sql": {Data: []byte("-- nothing here\n")}},
			want:  ErrInvalidMigrationFile,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := NewFileScanner(tc.files).ScanMigrations("m")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var fsErr *FileSystemError
	if _, err := NewFileScanner(fstest.MapFS{}).ScanMigrations("missing"); !errors.As(err, &fsErr) {
		t.Fatalf("expected FileSystemError for missing directory, got %v", err)
	}
}

func TestParseSQL(t *testing.T) {
	t.Parallel()

	statements := parseSQL("-- header\nCREATE TABLE a (id INTEGER);\n\nCREATE INDEX i ON a(id);\n-- done\n")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if !strings.HasPrefix(statements[1], "CREATE INDEX") {
		t.Fatalf("unexpected second statement %q", statements[1])
	}
}

func TestManagerAppliesPendingMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	executor := NewSQLiteExecutor(db)
	executor.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	manager := NewMigrationManager(NewFileScanner(testMigrations()), executor, "migrations", nil)

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	versions, err := manager.GetAppliedVersions(ctx)
	if err != nil {
		t.Fatalf("GetAppliedVersions failed: %v", err)
	}
	if strings.Join(versions, ",") != "001,002" {
		t.Fatalf("unexpected applied versions %v", versions)
	}

	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 {
		t.Fatalf("unexpected status: %#v", status)
	}
	if !status.AppliedMigrations[0].AppliedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected applied_at %v", status.AppliedMigrations[0].AppliedAt)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO widgets (name) VALUES ('a')`); err != nil {
		t.Fatalf("migrated table is unusable: %v", err)
	}
}

func TestManagerDetectsChangedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := testMigrations()
	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "migrations", nil)
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	files["migrations/002_add_widget_index.sql"] = &fstest.MapFile{Data: []byte("CREATE INDEX idx_other ON widgets(id);")}
	if err := manager.RunMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestManagerRejectsGapsInSequence(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"m/003_c.sql": {Data: []byte("CREATE TABLE c (id INTEGER);")},
	}
	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(openTestDB(t)), "m", nil)

	if err := manager.RunMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestExecutorRollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	executor := NewSQLiteExecutor(db)

	err := executor.ExecuteMigration(ctx, Migration{
		Version: "001",
		SQL:     "CREATE TABLE half (id INTEGER);\nINSERT INTO nowhere VALUES (1);",
	})
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'`).Scan(&count); err != nil {
		t.Fatalf("inspect schema failed: %v", err)
	}
	if count != 0 {
		t.Fatal("failed migration left a table behind")
	}
}

func TestConnectionManager(t *testing.T) {
	t.Parallel()

	dsn := NewConnectionManager(DefaultSQLiteConfig("/tmp/billboard.db")).DataSourceName()
	for _, want := range []string{"foreign_keys%281%29", "busy_timeout%285000%29", "journal_mode%28wal%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("DSN %q is missing %q", dsn, want)
		}
	}
	if !strings.HasPrefix(dsn, "/tmp/billboard.db?") {
		t.Fatalf("unexpected DSN prefix %q", dsn)
	}

	invalid := []SQLiteConfig{
		{Path: ""},
		{Path: "x.db?mode=ro"},
		{Path: "x.db", JournalMode: "SIDEWAYS"},
		{Path: "x.db", Synchronous: "SOMETIMES"},
		{Path: "x.db", MaxOpenConns: -1},
		{Path: InMemoryPath, MaxOpenConns: 4},
	}
	for _, config := range invalid {
		if err := NewConnectionManager(config).ValidateConfig(); err == nil {
			t.Fatalf("expected %#v to be rejected", config)
		}
	}

	db := openTestDB(t)
	var enabled int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys failed: %v", err)
	}
	if enabled != 1 {
		t.Fatal("expected foreign keys to be enabled through the DSN")
	}
}
