package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/billboard-server/internal/persistence"
	"github.com/example/billboard-server/internal/persistence/sqlite"
	"github.com/example/billboard-server/internal/persistence/sqlite/migration"
	"github.com/example/billboard-server/internal/recurrence"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style tests.
type SQLiteHarness struct {
	Storage *sqlite.Storage
	Path    string

	Users      persistence.UserRepository
	Billboards persistence.BillboardRepository
	Schedules  persistence.ScheduleRepository
	Sessions   persistence.SessionRepository

	tb      testing.TB
	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with tb.
func NewSQLiteHarness(tb testing.TB, opts ...sqlite.Options) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "billboard.db")
	config := migration.TempFileTestSQLiteConfig(path)

	options := sqlite.Options{}
	if len(opts) > 0 {
		options = opts[0]
	}
	if options.Config == nil {
		options.Config = &config
	}

	storage, err := sqlite.Open(path, options)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:    storage,
		Path:       path,
		Users:      storage.Users,
		Billboards: storage.Billboards,
		Schedules:  storage.Schedules,
		Sessions:   storage.Sessions,
		tb:         tb,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser inserts fixture and returns the stored record.
func (h *SQLiteHarness) SeedUser(fixture UserFixture) persistence.User {
	h.tb.Helper()

	record := fixture.Record()
	id, err := h.Users.CreateUser(context.Background(), record)
	if err != nil {
		h.tb.Fatalf("failed to seed user %q: %v", record.Username, err)
	}
	record.ID = id
	return record
}

// SeedBillboard inserts fixture owned by owner and returns the stored record.
func (h *SQLiteHarness) SeedBillboard(owner persistence.User, fixture BillboardFixture) persistence.Billboard {
	h.tb.Helper()

	record := fixture.Record(owner.ID)
	id, err := h.Billboards.CreateBillboard(context.Background(), record)
	if err != nil {
		h.tb.Fatalf("failed to seed billboard %q: %v", record.Name, err)
	}
	record.ID = id
	record.OwnerUsername = owner.Username
	return record
}

// SeedSchedule expands def for billboard and stores it.
func (h *SQLiteHarness) SeedSchedule(billboard persistence.Billboard, creator persistence.User, def recurrence.Definition) persistence.Schedule {
	h.tb.Helper()

	stored, err := h.Schedules.CreateSchedule(context.Background(), ScheduleRecord(billboard.ID, creator.ID, def))
	if err != nil {
		h.tb.Fatalf("failed to seed schedule for %q: %v", billboard.Name, err)
	}
	return stored
}
