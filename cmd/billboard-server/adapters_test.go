package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/billboard-server/internal/application"
	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
	"github.com/example/billboard-server/internal/testfixtures"
)

func TestAdaptersOverSQLite(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())

	owner := harness.SeedUser(testfixtures.NewUserFixture(
		testfixtures.WithPermissions(policy.Permissions{CreateBillboards: true, ScheduleBillboards: true}),
	))
	board := harness.SeedBillboard(owner, testfixtures.NewBillboardFixture())
	harness.SeedSchedule(board, owner, recurrence.Definition{Day: 1, StartMinute: 60, DurationMinutes: 30})

	users := newUserRepositoryAdapter(harness.Users, clock.NowFunc())
	billboards := newBillboardRepositoryAdapter(harness.Billboards)
	schedules := newScheduleRepositoryAdapter(harness.Schedules)

	t.Run("user permissions round trip", func(t *testing.T) {
		user, err := users.GetUserByUsername(ctx, owner.Username)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, user.ID)
		assert.Equal(t, policy.Permissions{CreateBillboards: true, ScheduleBillboards: true}, user.Permissions)
	})

	t.Run("created users are stamped with the clock", func(t *testing.T) {
		created, err := users.CreateUser(ctx, application.User{Username: "stamped"}, "$argon2id$stub")
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.True(t, created.CreatedAt.Equal(testfixtures.ReferenceTime()))
	})

	t.Run("duplicate names map to conflict", func(t *testing.T) {
		_, err := billboards.CreateBillboard(ctx, application.Billboard{
			Name:      board.Name,
			OwnerID:   owner.ID,
			Content:   []byte(testfixtures.BillboardXML("copy")),
			CreatedAt: clock.Now(),
			UpdatedAt: clock.Now(),
		})
		assert.ErrorIs(t, err, application.ErrConflict)
	})

	t.Run("missing rows map to not found", func(t *testing.T) {
		_, err := billboards.GetBillboard(ctx, board.ID+1000)
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("active slots become scheduler slots", func(t *testing.T) {
		slots, err := schedules.ListActiveSlots(ctx, 1, 75)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, board.ID, slots[0].BillboardID)
		assert.Equal(t, recurrence.Occurrence{Day: 1, Start: 60, End: 90}, slots[0].Occurrence)

		scheduled, err := billboards.HasSchedules(ctx, board.ID)
		require.NoError(t, err)
		assert.True(t, scheduled)
	})

	t.Run("deleting the owner removes their billboards", func(t *testing.T) {
		require.NoError(t, users.DeleteUser(ctx, owner.ID))

		_, err := billboards.GetBillboard(ctx, board.ID)
		assert.ErrorIs(t, err, application.ErrNotFound)

		slots, err := schedules.ListActiveSlots(ctx, 1, 75)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}
