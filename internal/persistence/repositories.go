package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (int64, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdatePermissions(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	// DeleteUser removes the user together with their sessions, schedules and billboards.
	DeleteUser(ctx context.Context, id int64) error
}

// BillboardRepository stores billboards and their content.
type BillboardRepository interface {
	CreateBillboard(ctx context.Context, billboard Billboard) (int64, error)
	UpdateBillboard(ctx context.Context, billboard Billboard) error
	GetBillboard(ctx context.Context, id int64) (Billboard, error)
	GetBillboardByName(ctx context.Context, name string) (Billboard, error)
	// ListBillboards returns every billboard without its content.
	ListBillboards(ctx context.Context) ([]Billboard, error)
	HasSchedules(ctx context.Context, id int64) (bool, error)
	// DeleteBillboard removes the billboard together with its schedules.
	DeleteBillboard(ctx context.Context, id int64) error
}

// ScheduleRepository stores schedules and their materialized times.
type ScheduleRepository interface {
	// CreateSchedule persists the schedule and all of its times atomically.
	CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error)
	GetSchedule(ctx context.Context, id int64) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	ListSchedulesForBillboard(ctx context.Context, billboardID int64) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
	ListSlots(ctx context.Context) ([]Slot, error)
	// ListActiveSlots returns slots on day whose interval strictly contains minute.
	ListActiveSlots(ctx context.Context, day, minute int) ([]Slot, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}
