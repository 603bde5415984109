package transport

import (
	"github.com/example/billboard-server/internal/codec"
	"github.com/example/billboard-server/internal/policy"
)

// Request is the wire envelope sent by clients. Payload holds the
// operation-specific CBOR map and is decoded by the operation's handler.
type Request struct {
	Operation policy.Operation `cbor:"operation"`
	Token     string           `cbor:"token,omitempty"`
	Payload   codec.RawMessage `cbor:"payload,omitempty"`
}

// Response is the wire envelope returned for every request. Error and
// Data are mutually exclusive.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// LoginUserRequest is the payload of loginUser.
type LoginUserRequest struct {
	Username string `cbor:"username"`
	Password string `cbor:"password"`
}

// LoginUserResponse is returned by loginUser.
type LoginUserResponse struct {
	Token       string             `cbor:"token"`
	UserID      int64              `cbor:"userId"`
	ExpiresAt   string             `cbor:"expiresAt"`
	Permissions policy.Permissions `cbor:"permissions"`
}

// BillboardRef addresses a billboard by id.
type BillboardRef struct {
	BillboardID int64 `cbor:"billboardId"`
}

// BillboardNameRef addresses a billboard by name.
type BillboardNameRef struct {
	Name string `cbor:"billboardName"`
}

// CreateBillboardRequest is the payload of createBillboard.
type CreateBillboardRequest struct {
	Name    string `cbor:"billboardName"`
	Content string `cbor:"billboardData"`
}

// UpdateBillboardRequest is the payload of updateBillboard. The billboard is
// renamed when Name differs from the stored name.
type UpdateBillboardRequest struct {
	BillboardID int64  `cbor:"billboardId"`
	Name        string `cbor:"billboardName"`
	Content     string `cbor:"billboardData"`
}

// BillboardSummary is one entry of listBillboards.
type BillboardSummary struct {
	BillboardID   int64  `cbor:"billboardId"`
	Name          string `cbor:"billboardName"`
	OwnerID       int64  `cbor:"creatorId"`
	OwnerUsername string `cbor:"creatorName"`
}

// ListBillboardsResponse is returned by listBillboards.
type ListBillboardsResponse struct {
	Billboards []BillboardSummary `cbor:"billboards"`
}

// BillboardIDResponse carries a billboard id.
type BillboardIDResponse struct {
	BillboardID int64 `cbor:"billboardId"`
}

// BillboardNameResponse carries a billboard name.
type BillboardNameResponse struct {
	Name string `cbor:"billboardName"`
}

// ExistsResponse is returned by billboardNameExists.
type ExistsResponse struct {
	Exists bool `cbor:"exists"`
}

// BillboardDataResponse is returned by getBillboardData.
type BillboardDataResponse struct {
	BillboardID   int64  `cbor:"billboardId"`
	Name          string `cbor:"billboardName"`
	OwnerUsername string `cbor:"creatorName"`
	Content       string `cbor:"billboardData"`
}

// CreatorNameResponse is returned by getBillboardCreatorName.
type CreatorNameResponse struct {
	Username string `cbor:"creatorName"`
}

// AddScheduleRequest is the payload of addSchedule.
type AddScheduleRequest struct {
	BillboardID     int64 `cbor:"billboardId"`
	Day             int   `cbor:"day"`
	StartMinute     int   `cbor:"minutesStart"`
	DurationMinutes int   `cbor:"minutesDuration"`
	Repeating       bool  `cbor:"repeating"`
	GapMinutes      int   `cbor:"minutesRepeatGap"`
}

// AddScheduleResponse is returned by addSchedule. Overridden lists existing
// schedules that now share screen time with the new one.
type AddScheduleResponse struct {
	ScheduleID int64   `cbor:"scheduleId"`
	Overridden []int64 `cbor:"overriddenScheduleIds,omitempty"`
}

// ScheduleRef addresses a schedule by id.
type ScheduleRef struct {
	ScheduleID int64 `cbor:"scheduleId"`
}

// ScheduleTimeInfo is one materialized interval of a schedule.
type ScheduleTimeInfo struct {
	ID    int64 `cbor:"id"`
	Day   int   `cbor:"day"`
	Start int   `cbor:"minutesStart"`
	End   int   `cbor:"minutesEnd"`
}

// ScheduleInfo describes a schedule and its times.
type ScheduleInfo struct {
	ScheduleID      int64              `cbor:"scheduleId"`
	BillboardID     int64              `cbor:"billboardId"`
	BillboardName   string             `cbor:"billboardName"`
	CreatorID       int64              `cbor:"creatorId"`
	CreatorUsername string             `cbor:"creatorName"`
	Day             int                `cbor:"day"`
	StartMinute     int                `cbor:"minutesStart"`
	DurationMinutes int                `cbor:"minutesDuration"`
	Repeating       bool               `cbor:"repeating"`
	GapMinutes      int                `cbor:"minutesRepeatGap"`
	CreatedAt       string             `cbor:"createdAt"`
	Times           []ScheduleTimeInfo `cbor:"times"`
}

// SchedulesResponse is returned by getAllSchedules and getBillboardSchedule.
type SchedulesResponse struct {
	Schedules []ScheduleInfo `cbor:"schedules"`
}

// CurrentBillboardResponse is returned by getCurrentBillboard.
type CurrentBillboardResponse struct {
	BillboardID int64  `cbor:"billboardId,omitempty"`
	ScheduleID  int64  `cbor:"scheduleId,omitempty"`
	Name        string `cbor:"billboardName"`
	Content     string `cbor:"billboardData"`
	Fallback    bool   `cbor:"fallback"`
}

// UserRef addresses a user by id.
type UserRef struct {
	UserID int64 `cbor:"userId"`
}

// UsernameRef addresses a user by name.
type UsernameRef struct {
	Username string `cbor:"username"`
}

// UsernamesResponse is returned by getUsernames, keyed by user id.
type UsernamesResponse struct {
	Users map[int64]string `cbor:"users"`
}

// UserDataResponse is returned by getUserData. It never carries the password hash.
type UserDataResponse struct {
	UserID      int64              `cbor:"userId"`
	Username    string             `cbor:"username"`
	Permissions policy.Permissions `cbor:"permissions"`
	CreatedAt   string             `cbor:"createdAt"`
}

// UserIDResponse carries a user id.
type UserIDResponse struct {
	UserID int64 `cbor:"userId"`
}

// AddUserRequest is the payload of addUser. The permission flags are
// flattened into the map.
type AddUserRequest struct {
	Username string `cbor:"username"`
	Password string `cbor:"password"`
	policy.Permissions
}

// UpdatePermissionsRequest is the payload of updateUserPermissions.
type UpdatePermissionsRequest struct {
	UserID int64 `cbor:"userId"`
	policy.Permissions
}

// PermissionsResponse carries a permission set.
type PermissionsResponse struct {
	policy.Permissions
}

// UpdatePasswordRequest is the payload of updatePassword.
type UpdatePasswordRequest struct {
	UserID   int64  `cbor:"userId"`
	Password string `cbor:"password"`
}
