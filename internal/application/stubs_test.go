package application

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
	"github.com/example/billboard-server/internal/scheduler"
)

var testNow = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) // a Wednesday

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeHash(password string) (string, error) { return "hash:" + password, nil }

func fakeVerify(hashed, password string) error {
	if hashed != "hash:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type userRecord struct {
	user User
	hash string
}

type userStoreStub struct {
	mu      sync.Mutex
	users   map[int64]userRecord
	nextID  int64
	err     error
	deleted []int64
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{users: make(map[int64]userRecord), nextID: 1}
}

func (u *userStoreStub) seed(username string, permissions policy.Permissions) User {
	user, _ := u.CreateUser(context.Background(), User{Username: username, Permissions: permissions}, "hash:secret")
	return user
}

func (u *userStoreStub) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return User{}, u.err
	}
	for _, rec := range u.users {
		if rec.user.Username == user.Username {
			return User{}, ErrConflict
		}
	}
	user.ID = u.nextID
	user.CreatedAt = testNow
	u.nextID++
	u.users[user.ID] = userRecord{user: user, hash: passwordHash}
	return user, nil
}

func (u *userStoreStub) GetUser(ctx context.Context, id int64) (User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return User{}, u.err
	}
	rec, ok := u.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return rec.user, nil
}

func (u *userStoreStub) GetUserByUsername(ctx context.Context, username string) (User, error) {
	creds, err := u.GetUserCredentials(ctx, username)
	return creds.User, err
}

func (u *userStoreStub) GetUserCredentials(ctx context.Context, username string) (UserCredentials, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return UserCredentials{}, u.err
	}
	for _, rec := range u.users {
		if rec.user.Username == username {
			return UserCredentials{User: rec.user, PasswordHash: rec.hash}, nil
		}
	}
	return UserCredentials{}, ErrNotFound
}

func (u *userStoreStub) ListUsers(ctx context.Context) ([]User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	users := make([]User, 0, len(u.users))
	for _, rec := range u.users {
		users = append(users, rec.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (u *userStoreStub) CountUsers(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return 0, u.err
	}
	return len(u.users), nil
}

func (u *userStoreStub) UpdatePermissions(ctx context.Context, id int64, permissions policy.Permissions) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	rec, ok := u.users[id]
	if !ok {
		return ErrNotFound
	}
	rec.user.Permissions = permissions
	u.users[id] = rec
	return nil
}

func (u *userStoreStub) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	rec, ok := u.users[id]
	if !ok {
		return ErrNotFound
	}
	rec.hash = passwordHash
	u.users[id] = rec
	return nil
}

func (u *userStoreStub) DeleteUser(ctx context.Context, id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[id]; !ok {
		return ErrNotFound
	}
	delete(u.users, id)
	u.deleted = append(u.deleted, id)
	return nil
}

func (u *userStoreStub) hashOf(id int64) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.users[id].hash
}

type sessionStoreStub struct {
	mu       sync.Mutex
	sessions map[string]Session
	purges   []time.Time
	err      error
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{sessions: make(map[string]Session)}
}

func (s *sessionStoreStub) CreateSession(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, exists := s.sessions[session.Token]; exists {
		return ErrConflict
	}
	s.sessions[session.Token] = session
	return nil
}

func (s *sessionStoreStub) GetSession(ctx context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Session{}, s.err
	}
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionStoreStub) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.sessions, token)
	return nil
}

func (s *sessionStoreStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.purges = append(s.purges, reference)
	var removed int64
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

type billboardRepoStub struct {
	mu         sync.Mutex
	billboards map[int64]Billboard
	scheduled  map[int64]bool
	owners     map[int64]string
	nextID     int64
	err        error
}

func newBillboardRepoStub() *billboardRepoStub {
	return &billboardRepoStub{
		billboards: make(map[int64]Billboard),
		scheduled:  make(map[int64]bool),
		owners:     make(map[int64]string),
		nextID:     1,
	}
}

func (b *billboardRepoStub) seed(name string, ownerID int64, scheduled bool) Billboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	billboard := Billboard{
		ID:            b.nextID,
		Name:          name,
		OwnerID:       ownerID,
		OwnerUsername: b.owners[ownerID],
		Content:       []byte("<billboard><message>" + name + "</message></billboard>"),
	}
	b.nextID++
	b.billboards[billboard.ID] = billboard
	b.scheduled[billboard.ID] = scheduled
	return billboard
}

func (b *billboardRepoStub) nameTaken(name string, except int64) bool {
	for id, existing := range b.billboards {
		if id != except && existing.Name == name {
			return true
		}
	}
	return false
}

func (b *billboardRepoStub) CreateBillboard(ctx context.Context, billboard Billboard) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	if b.nameTaken(billboard.Name, 0) {
		return 0, ErrConflict
	}
	billboard.ID = b.nextID
	billboard.OwnerUsername = b.owners[billboard.OwnerID]
	b.nextID++
	b.billboards[billboard.ID] = billboard
	return billboard.ID, nil
}

func (b *billboardRepoStub) UpdateBillboard(ctx context.Context, billboard Billboard) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if _, ok := b.billboards[billboard.ID]; !ok {
		return ErrNotFound
	}
	if b.nameTaken(billboard.Name, billboard.ID) {
		return ErrConflict
	}
	b.billboards[billboard.ID] = billboard
	return nil
}

func (b *billboardRepoStub) GetBillboard(ctx context.Context, id int64) (Billboard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return Billboard{}, b.err
	}
	billboard, ok := b.billboards[id]
	if !ok {
		return Billboard{}, ErrNotFound
	}
	return billboard, nil
}

func (b *billboardRepoStub) GetBillboardByName(ctx context.Context, name string) (Billboard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return Billboard{}, b.err
	}
	for _, billboard := range b.billboards {
		if billboard.Name == name {
			return billboard, nil
		}
	}
	return Billboard{}, ErrNotFound
}

func (b *billboardRepoStub) ListBillboards(ctx context.Context) ([]Billboard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	list := make([]Billboard, 0, len(b.billboards))
	for _, billboard := range b.billboards {
		billboard.Content = nil
		list = append(list, billboard)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (b *billboardRepoStub) HasSchedules(ctx context.Context, id int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	return b.scheduled[id], nil
}

func (b *billboardRepoStub) DeleteBillboard(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.billboards[id]; !ok {
		return ErrNotFound
	}
	delete(b.billboards, id)
	delete(b.scheduled, id)
	return nil
}

type scheduleRepoStub struct {
	mu         sync.Mutex
	schedules  []Schedule
	nextID     int64
	nextTimeID int64
	err        error
	activeErr  error
	created    []Schedule
}

func newScheduleRepoStub() *scheduleRepoStub {
	return &scheduleRepoStub{nextID: 1, nextTimeID: 1}
}

func (r *scheduleRepoStub) CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Schedule{}, r.err
	}
	r.created = append(r.created, schedule)
	schedule.ID = r.nextID
	r.nextID++
	times := make([]ScheduleTime, len(schedule.Times))
	for i, st := range schedule.Times {
		st.ID = r.nextTimeID
		st.ScheduleID = schedule.ID
		r.nextTimeID++
		times[i] = st
	}
	schedule.Times = times
	r.schedules = append(r.schedules, schedule)
	return schedule, nil
}

func (r *scheduleRepoStub) ListSchedules(ctx context.Context) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]Schedule(nil), r.schedules...), nil
}

func (r *scheduleRepoStub) ListSchedulesForBillboard(ctx context.Context, billboardID int64) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []Schedule
	for _, schedule := range r.schedules {
		if schedule.BillboardID == billboardID {
			out = append(out, schedule)
		}
	}
	return out, nil
}

func (r *scheduleRepoStub) DeleteSchedule(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, schedule := range r.schedules {
		if schedule.ID == id {
			r.schedules = append(r.schedules[:i], r.schedules[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *scheduleRepoStub) slots() []scheduler.Slot {
	var out []scheduler.Slot
	for _, schedule := range r.schedules {
		for _, st := range schedule.Times {
			out = append(out, scheduler.Slot{
				ID:          st.ID,
				ScheduleID:  schedule.ID,
				BillboardID: schedule.BillboardID,
				Occurrence:  recurrence.Occurrence{Day: st.Day, Start: st.Start, End: st.End},
			})
		}
	}
	return out
}

func (r *scheduleRepoStub) ListSlots(ctx context.Context) ([]scheduler.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.slots(), nil
}

func (r *scheduleRepoStub) ListActiveSlots(ctx context.Context, day, minute int) ([]scheduler.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeErr != nil {
		return nil, r.activeErr
	}
	var out []scheduler.Slot
	for _, slot := range r.slots() {
		if slot.Occurrence.Contains(day, minute) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func principal(id int64, permissions policy.Permissions) Principal {
	return Principal{UserID: id, Permissions: permissions}
}
