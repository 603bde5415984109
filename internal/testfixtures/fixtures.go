package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/billboard-server/internal/persistence"
	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
)

var (
	userCounter      uint64
	billboardCounter uint64
)

// Wednesday 2024-03-06 12:00 UTC.
var referenceTime = time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// BillboardXML returns a small billboard document showing message.
func BillboardXML(message string) string {
	return "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<billboard background=\"#0000FF\">\n" +
		"    <message colour=\"#FFFF00\">" + message + "</message>\n" +
		"</billboard>\n"
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
	Username     string
	PasswordHash string
	Permissions  policy.Permissions
	CreatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a user fixture with a unique username and no permissions.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	fixture := UserFixture{
		Username:     fmt.Sprintf("user-%03d", idx),
		PasswordHash: fmt.Sprintf("$argon2id$fixture-%03d", idx),
		CreatedAt:    referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUsername overrides the generated username.
func WithUsername(username string) UserOption {
	return func(f *UserFixture) { f.Username = username }
}

// WithPasswordHash overrides the generated password hash.
func WithPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithPermissions sets the permission flags.
func WithPermissions(permissions policy.Permissions) UserOption {
	return func(f *UserFixture) { f.Permissions = permissions }
}

// Record returns the fixture as a persistence.User.
func (f UserFixture) Record() persistence.User {
	return persistence.User{
		Username:           f.Username,
		PasswordHash:       f.PasswordHash,
		CreateBillboards:   f.Permissions.CreateBillboards,
		EditBillboards:     f.Permissions.EditBillboards,
		ScheduleBillboards: f.Permissions.ScheduleBillboards,
		EditUsers:          f.Permissions.EditUsers,
		CreatedAt:          f.CreatedAt,
	}
}

// --------------------------- Billboard fixtures ---------------------------

// BillboardFixture represents a deterministic billboard record.
type BillboardFixture struct {
	Name      string
	Content   string
	CreatedAt time.Time
}

// BillboardOption configures the generated billboard fixture.
type BillboardOption func(*BillboardFixture)

// NewBillboardFixture returns a billboard fixture with a unique name.
func NewBillboardFixture(opts ...BillboardOption) BillboardFixture {
	idx := atomic.AddUint64(&billboardCounter, 1)
	name := fmt.Sprintf("billboard-%03d", idx)
	fixture := BillboardFixture{
		Name:      name,
		Content:   BillboardXML("Welcome to " + name),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBillboardName overrides the generated name.
func WithBillboardName(name string) BillboardOption {
	return func(f *BillboardFixture) { f.Name = name }
}

// WithBillboardContent overrides the generated document.
func WithBillboardContent(content string) BillboardOption {
	return func(f *BillboardFixture) { f.Content = content }
}

// Record returns the fixture as a persistence.Billboard owned by ownerID.
func (f BillboardFixture) Record(ownerID int64) persistence.Billboard {
	return persistence.Billboard{
		Name:      f.Name,
		OwnerID:   ownerID,
		Content:   []byte(f.Content),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ---------------------------- Schedule fixtures ----------------------------

// ScheduleRecord expands def and returns the persistence record for it.
// It panics when def is invalid.
func ScheduleRecord(billboardID, creatorID int64, def recurrence.Definition) persistence.Schedule {
	occurrences, err := recurrence.Expand(def)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: invalid schedule definition %+v: %v", def, err))
	}
	schedule := persistence.Schedule{
		BillboardID:     billboardID,
		CreatorID:       creatorID,
		Day:             def.Day,
		StartMinute:     def.StartMinute,
		DurationMinutes: def.DurationMinutes,
		Repeating:       def.Repeating,
		GapMinutes:      def.GapMinutes,
		CreatedAt:       referenceTime,
		Times:           make([]persistence.ScheduleTime, len(occurrences)),
	}
	for i, occ := range occurrences {
		schedule.Times[i] = persistence.ScheduleTime{Day: occ.Day, StartMinute: occ.Start, EndMinute: occ.End}
	}
	return schedule
}
