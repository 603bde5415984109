package persistence

import "time"

// User represents an account able to sign in to the billboard server.
type User struct {
	ID                 int64
	Username           string
	PasswordHash       string
	CreateBillboards   bool
	EditBillboards     bool
	ScheduleBillboards bool
	EditUsers          bool
	CreatedAt          time.Time
}

// Billboard represents stored billboard content and its owner.
// Content is always the decoded (uncompressed) document.
type Billboard struct {
	ID            int64
	Name          string
	OwnerID       int64
	OwnerUsername string
	Content       []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Schedule represents an immutable weekly schedule definition for a billboard.
type Schedule struct {
	ID              int64
	BillboardID     int64
	BillboardName   string
	CreatorID       int64
	CreatorUsername string
	Day             int
	StartMinute     int
	DurationMinutes int
	Repeating       bool
	GapMinutes      int
	CreatedAt       time.Time
	Times           []ScheduleTime
}

// ScheduleTime is one materialized interval of a schedule.
type ScheduleTime struct {
	ID          int64
	ScheduleID  int64
	Day         int
	StartMinute int
	EndMinute   int
}

// Slot is a schedule time joined with the billboard it displays.
type Slot struct {
	ScheduleTimeID int64
	ScheduleID     int64
	BillboardID    int64
	BillboardName  string
	Day            int
	StartMinute    int
	EndMinute      int
}

// Session represents an authentication session persisted for a user.
type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}
