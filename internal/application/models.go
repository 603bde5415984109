package application

import (
	"time"

	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      int64
	Permissions policy.Permissions
}

func (p Principal) caller() policy.Caller {
	return policy.Caller{UserID: p.UserID, Permissions: p.Permissions}
}

// User represents an account exposed by the application services.
type User struct {
	ID          int64
	Username    string
	Permissions policy.Permissions
	CreatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Billboard represents a named billboard document and its owner.
type Billboard struct {
	ID            int64
	Name          string
	OwnerID       int64
	OwnerUsername string
	Content       []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Schedule represents a weekly schedule definition together with its expanded times.
type Schedule struct {
	ID              int64
	BillboardID     int64
	BillboardName   string
	CreatorID       int64
	CreatorUsername string
	Definition      recurrence.Definition
	CreatedAt       time.Time
	Times           []ScheduleTime
}

// ScheduleTime is one materialized interval of a schedule.
type ScheduleTime struct {
	ID         int64
	ScheduleID int64
	Day        int
	Start      int
	End        int
}

// CreateBillboardParams wraps the data required to create a billboard.
type CreateBillboardParams struct {
	Principal Principal
	Name      string
	Content   []byte
}

// UpdateBillboardParams wraps the data required to rename or rewrite a billboard.
type UpdateBillboardParams struct {
	Principal   Principal
	BillboardID int64
	Name        string
	Content     []byte
}

// AddScheduleParams wraps the data required to schedule a billboard.
type AddScheduleParams struct {
	Principal   Principal
	BillboardID int64
	Definition  recurrence.Definition
}

// AddScheduleResult carries the created schedule and the schedules it now overrides.
type AddScheduleResult struct {
	Schedule   Schedule
	Overridden []int64
}

// CurrentBillboard is what a display should show at a given instant.
type CurrentBillboard struct {
	BillboardID int64
	ScheduleID  int64
	Name        string
	Content     []byte
	Fallback    bool
}

// AddUserParams wraps the data required to create a user.
type AddUserParams struct {
	Principal   Principal
	Username    string
	Password    string
	Permissions policy.Permissions
}

// UpdatePermissionsParams wraps the data required to change a user's flags.
type UpdatePermissionsParams struct {
	Principal   Principal
	UserID      int64
	Permissions policy.Permissions
}

// UpdatePasswordParams wraps the data required to change a user's password.
type UpdatePasswordParams struct {
	Principal Principal
	UserID    int64
	Password  string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LoginParams captures the data required to authenticate a user.
type LoginParams struct {
	Username string
	Password string
}

// LoginResult captures the outcome of a successful login.
type LoginResult struct {
	User    User
	Session Session
}
