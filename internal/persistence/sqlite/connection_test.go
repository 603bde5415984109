package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/example/billboard-server/internal/persistence"
)

func newSQLMockPool(t *testing.T) (*ConnectionPool, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewConnectionPoolFromDB(db), mock
}

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	locked := errors.New("database is locked (5) (SQLITE_BUSY)")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, persistence.ErrNotFound},
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), persistence.ErrDuplicate},
		{"primary key", errors.New("constraint failed: UNIQUE constraint failed: sessions.token (1555)"), persistence.ErrDuplicate},
		{"foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), persistence.ErrForeignKeyViolation},
		{"check", errors.New("constraint failed: CHECK constraint failed: day BETWEEN 1 AND 7 (275)"), persistence.ErrConstraintViolation},
		{"not null", errors.New("constraint failed: NOT NULL constraint failed: billboards.content (1299)"), persistence.ErrConstraintViolation},
		{"locked", locked, locked},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := mapper.MapError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("MapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if mapper.MapError(nil) != nil {
		t.Fatal("MapError(nil) should be nil")
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	pool, mock := newSQLMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM schedule_times").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := pool.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM schedule_times WHERE schedule_id = ?", 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateScheduleIsAtomic(t *testing.T) {
	pool, mock := newSQLMockPool(t)
	repo := NewScheduleRepository(pool)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schedules").WillReturnResult(sqlmock.NewResult(7, 1))
	prepared := mock.ExpectPrepare("INSERT INTO schedule_times")
	prepared.ExpectExec().WithArgs(int64(7), 3, 1400, 1440).WillReturnResult(sqlmock.NewResult(1, 1))
	prepared.ExpectExec().WithArgs(int64(7), 4, 0, 60).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := repo.CreateSchedule(context.Background(), persistence.Schedule{
		BillboardID:     1,
		CreatorID:       1,
		Day:             3,
		StartMinute:     1400,
		DurationMinutes: 100,
		CreatedAt:       referenceTime,
		Times: []persistence.ScheduleTime{
			{Day: 3, StartMinute: 1400, EndMinute: 1440},
			{Day: 4, StartMinute: 0, EndMinute: 60},
		},
	})
	if err == nil {
		t.Fatal("expected CreateSchedule to fail")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) || errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("store failure should not map to a persistence sentinel, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListSchedulesForBillboardScopesTimes(t *testing.T) {
	pool, mock := newSQLMockPool(t)
	repo := NewScheduleRepository(pool)

	scheduleColumns := []string{
		"id", "billboard_id", "name", "creator_id", "username",
		"day", "start_minute", "duration_minutes", "repeating", "gap_minutes", "created_at",
	}
	createdAt := formatTime(referenceTime)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.billboard_id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(scheduleColumns).
			AddRow(int64(11), int64(5), "Lobby", int64(1), "admin", 1, 60, 30, false, 0, createdAt).
			AddRow(int64(12), int64(5), "Lobby", int64(1), "admin", 2, 90, 15, false, 0, createdAt))
	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM schedule_times WHERE schedule_id IN (SELECT id FROM schedules WHERE billboard_id = ?)",
	)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "day", "start_minute", "end_minute"}).
			AddRow(int64(1), int64(11), 1, 60, 90).
			AddRow(int64(2), int64(12), 2, 90, 105))

	schedules, err := repo.ListSchedulesForBillboard(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListSchedulesForBillboard failed: %v", err)
	}
	if len(schedules) != 2 || len(schedules[0].Times) != 1 || len(schedules[1].Times) != 1 {
		t.Fatalf("unexpected schedules %#v", schedules)
	}
	if schedules[1].Times[0].EndMinute != 105 {
		t.Fatalf("times attached to the wrong schedule: %#v", schedules[1].Times)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepositoryStoreFailure(t *testing.T) {
	pool, mock := newSQLMockPool(t)
	repo := NewSessionRepository(pool)

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnError(errors.New("database is locked"))

	if _, err := repo.DeleteExpiredSessions(context.Background(), time.Now()); err == nil {
		t.Fatal("expected an error from a locked database")
	}

	mock.ExpectQuery("SELECT token, user_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "created_at", "expires_at"}))

	if _, err := repo.GetSession(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
