package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/billboard-server/internal/application"
	"github.com/example/billboard-server/internal/persistence"
	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
	"github.com/example/billboard-server/internal/scheduler"
)

// mapStoreError translates persistence failures into application errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrConflict
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: referenced record does not exist", application.ErrNotFound)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return application.NewValidationError("record", "violates a store constraint")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", application.ErrStoreUnavailable, err)
	}
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
	now  func() time.Time
}

func newUserRepositoryAdapter(repo persistence.UserRepository, now func() time.Time) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo, now: now}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = a.now().UTC()
	}
	id, err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash))
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	user.ID = id
	return user, nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id int64) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByUsername(ctx context.Context, username string) (application.User, error) {
	stored, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	stored, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	users := make([]application.User, len(stored))
	for i, model := range stored {
		users[i] = toApplicationUser(model)
	}
	return users, nil
}

func (a *userRepositoryAdapter) CountUsers(ctx context.Context) (int, error) {
	count, err := a.repo.CountUsers(ctx)
	return count, mapStoreError(err)
}

func (a *userRepositoryAdapter) UpdatePermissions(ctx context.Context, id int64, permissions policy.Permissions) error {
	return mapStoreError(a.repo.UpdatePermissions(ctx, toPersistenceUser(application.User{ID: id, Permissions: permissions}, "")))
}

func (a *userRepositoryAdapter) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return mapStoreError(a.repo.UpdatePassword(ctx, id, passwordHash))
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id int64) error {
	return mapStoreError(a.repo.DeleteUser(ctx, id))
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentials(ctx context.Context, username string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return application.UserCredentials{}, mapStoreError(err)
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id int64) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	return toApplicationUser(stored), nil
}

type billboardRepositoryAdapter struct {
	repo persistence.BillboardRepository
}

func newBillboardRepositoryAdapter(repo persistence.BillboardRepository) *billboardRepositoryAdapter {
	return &billboardRepositoryAdapter{repo: repo}
}

func (a *billboardRepositoryAdapter) CreateBillboard(ctx context.Context, billboard application.Billboard) (int64, error) {
	id, err := a.repo.CreateBillboard(ctx, toPersistenceBillboard(billboard))
	return id, mapStoreError(err)
}

func (a *billboardRepositoryAdapter) UpdateBillboard(ctx context.Context, billboard application.Billboard) error {
	return mapStoreError(a.repo.UpdateBillboard(ctx, toPersistenceBillboard(billboard)))
}

func (a *billboardRepositoryAdapter) GetBillboard(ctx context.Context, id int64) (application.Billboard, error) {
	stored, err := a.repo.GetBillboard(ctx, id)
	if err != nil {
		return application.Billboard{}, mapStoreError(err)
	}
	return toApplicationBillboard(stored), nil
}

func (a *billboardRepositoryAdapter) GetBillboardByName(ctx context.Context, name string) (application.Billboard, error) {
	stored, err := a.repo.GetBillboardByName(ctx, name)
	if err != nil {
		return application.Billboard{}, mapStoreError(err)
	}
	return toApplicationBillboard(stored), nil
}

func (a *billboardRepositoryAdapter) ListBillboards(ctx context.Context) ([]application.Billboard, error) {
	stored, err := a.repo.ListBillboards(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	billboards := make([]application.Billboard, len(stored))
	for i, model := range stored {
		billboards[i] = toApplicationBillboard(model)
	}
	return billboards, nil
}

func (a *billboardRepositoryAdapter) HasSchedules(ctx context.Context, id int64) (bool, error) {
	scheduled, err := a.repo.HasSchedules(ctx, id)
	return scheduled, mapStoreError(err)
}

func (a *billboardRepositoryAdapter) DeleteBillboard(ctx context.Context, id int64) error {
	return mapStoreError(a.repo.DeleteBillboard(ctx, id))
}

type scheduleRepositoryAdapter struct {
	repo persistence.ScheduleRepository
}

func newScheduleRepositoryAdapter(repo persistence.ScheduleRepository) *scheduleRepositoryAdapter {
	return &scheduleRepositoryAdapter{repo: repo}
}

func (a *scheduleRepositoryAdapter) CreateSchedule(ctx context.Context, schedule application.Schedule) (application.Schedule, error) {
	stored, err := a.repo.CreateSchedule(ctx, toPersistenceSchedule(schedule))
	if err != nil {
		return application.Schedule{}, mapStoreError(err)
	}
	created := toApplicationSchedule(stored)
	// The insert does not join names; keep the ones the caller resolved.
	created.BillboardName = schedule.BillboardName
	created.CreatorUsername = schedule.CreatorUsername
	return created, nil
}

func (a *scheduleRepositoryAdapter) ListSchedules(ctx context.Context) ([]application.Schedule, error) {
	stored, err := a.repo.ListSchedules(ctx)
	return toApplicationSchedules(stored), mapStoreError(err)
}

func (a *scheduleRepositoryAdapter) ListSchedulesForBillboard(ctx context.Context, billboardID int64) ([]application.Schedule, error) {
	stored, err := a.repo.ListSchedulesForBillboard(ctx, billboardID)
	return toApplicationSchedules(stored), mapStoreError(err)
}

func (a *scheduleRepositoryAdapter) DeleteSchedule(ctx context.Context, id int64) error {
	return mapStoreError(a.repo.DeleteSchedule(ctx, id))
}

func (a *scheduleRepositoryAdapter) ListSlots(ctx context.Context) ([]scheduler.Slot, error) {
	stored, err := a.repo.ListSlots(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toSchedulerSlots(stored), nil
}

func (a *scheduleRepositoryAdapter) ListActiveSlots(ctx context.Context, day, minute int) ([]scheduler.Slot, error) {
	stored, err := a.repo.ListActiveSlots(ctx, day, minute)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toSchedulerSlots(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) error {
	return mapStoreError(a.repo.CreateSession(ctx, persistence.Session{
		Token:     session.Token,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}))
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return application.Session{
		Token:     stored.Token,
		UserID:    stored.UserID,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

func (a *sessionRepositoryAdapter) DeleteSession(ctx context.Context, token string) error {
	return mapStoreError(a.repo.DeleteSession(ctx, token))
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	removed, err := a.repo.DeleteExpiredSessions(ctx, reference)
	return removed, mapStoreError(err)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:       model.ID,
		Username: model.Username,
		Permissions: policy.Permissions{
			CreateBillboards:   model.CreateBillboards,
			EditBillboards:     model.EditBillboards,
			ScheduleBillboards: model.ScheduleBillboards,
			EditUsers:          model.EditUsers,
		},
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:                 user.ID,
		Username:           user.Username,
		PasswordHash:       passwordHash,
		CreateBillboards:   user.Permissions.CreateBillboards,
		EditBillboards:     user.Permissions.EditBillboards,
		ScheduleBillboards: user.Permissions.ScheduleBillboards,
		EditUsers:          user.Permissions.EditUsers,
		CreatedAt:          user.CreatedAt,
	}
}

func toApplicationBillboard(model persistence.Billboard) application.Billboard {
	return application.Billboard{
		ID:            model.ID,
		Name:          model.Name,
		OwnerID:       model.OwnerID,
		OwnerUsername: model.OwnerUsername,
		Content:       model.Content,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceBillboard(billboard application.Billboard) persistence.Billboard {
	return persistence.Billboard{
		ID:            billboard.ID,
		Name:          billboard.Name,
		OwnerID:       billboard.OwnerID,
		OwnerUsername: billboard.OwnerUsername,
		Content:       billboard.Content,
		CreatedAt:     billboard.CreatedAt,
		UpdatedAt:     billboard.UpdatedAt,
	}
}

func toApplicationSchedule(model persistence.Schedule) application.Schedule {
	schedule := application.Schedule{
		ID:              model.ID,
		BillboardID:     model.BillboardID,
		BillboardName:   model.BillboardName,
		CreatorID:       model.CreatorID,
		CreatorUsername: model.CreatorUsername,
		Definition: recurrence.Definition{
			Day:             model.Day,
			StartMinute:     model.StartMinute,
			DurationMinutes: model.DurationMinutes,
			Repeating:       model.Repeating,
			GapMinutes:      model.GapMinutes,
		},
		CreatedAt: model.CreatedAt,
		Times:     make([]application.ScheduleTime, len(model.Times)),
	}
	for i, st := range model.Times {
		schedule.Times[i] = application.ScheduleTime{
			ID:         st.ID,
			ScheduleID: st.ScheduleID,
			Day:        st.Day,
			Start:      st.StartMinute,
			End:        st.EndMinute,
		}
	}
	return schedule
}

func toApplicationSchedules(models []persistence.Schedule) []application.Schedule {
	if models == nil {
		return nil
	}
	schedules := make([]application.Schedule, len(models))
	for i, model := range models {
		schedules[i] = toApplicationSchedule(model)
	}
	return schedules
}

func toPersistenceSchedule(schedule application.Schedule) persistence.Schedule {
	model := persistence.Schedule{
		ID:              schedule.ID,
		BillboardID:     schedule.BillboardID,
		CreatorID:       schedule.CreatorID,
		Day:             schedule.Definition.Day,
		StartMinute:     schedule.Definition.StartMinute,
		DurationMinutes: schedule.Definition.DurationMinutes,
		Repeating:       schedule.Definition.Repeating,
		GapMinutes:      schedule.Definition.GapMinutes,
		CreatedAt:       schedule.CreatedAt,
		Times:           make([]persistence.ScheduleTime, len(schedule.Times)),
	}
	for i, st := range schedule.Times {
		model.Times[i] = persistence.ScheduleTime{Day: st.Day, StartMinute: st.Start, EndMinute: st.End}
	}
	return model
}

func toSchedulerSlots(models []persistence.Slot) []scheduler.Slot {
	slots := make([]scheduler.Slot, len(models))
	for i, model := range models {
		slots[i] = scheduler.Slot{
			ID:          model.ScheduleTimeID,
			ScheduleID:  model.ScheduleID,
			BillboardID: model.BillboardID,
			Occurrence:  recurrence.Occurrence{Day: model.Day, Start: model.StartMinute, End: model.EndMinute},
		}
	}
	return slots
}
