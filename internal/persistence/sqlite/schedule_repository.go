package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/billboard-server/internal/persistence"
)

const scheduleSelect = `
	SELECT s.id, s.billboard_id, b.name, s.creator_id, u.username,
	       s.day, s.start_minute, s.duration_minutes, s.repeating, s.gap_minutes, s.created_at
	FROM schedules s
	JOIN billboards b ON b.id = s.billboard_id
	JOIN users u ON u.id = s.creator_id
`

const slotSelect = `
	SELECT st.id, st.schedule_id, s.billboard_id, b.name, st.day, st.start_minute, st.end_minute
	FROM schedule_times st
	JOIN schedules s ON s.id = st.schedule_id
	JOIN billboards b ON b.id = s.billboard_id
`

// ScheduleRepository implements persistence.ScheduleRepository using SQLite
type ScheduleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewScheduleRepository creates a new SQLite schedule repository
func NewScheduleRepository(pool *ConnectionPool) *ScheduleRepository {
	return &ScheduleRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSchedule inserts a schedule and its materialized times in one
// transaction. The returned schedule carries the generated ids.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.Schedule) (persistence.Schedule, error) {
	if err := r.validateSchedule(schedule); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now()
	}
	schedule.CreatedAt = schedule.CreatedAt.UTC()

	times := make([]persistence.ScheduleTime, len(schedule.Times))
	copy(times, schedule.Times)

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO schedules (billboard_id, creator_id, day, start_minute, duration_minutes, repeating, gap_minutes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			schedule.BillboardID,
			schedule.CreatorID,
			schedule.Day,
			schedule.StartMinute,
			schedule.DurationMinutes,
			schedule.Repeating,
			schedule.GapMinutes,
			formatTime(schedule.CreatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if schedule.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read schedule id: %w", err)
		}

		return r.insertTimes(ctx, tx, schedule.ID, times)
	})
	if err != nil {
		return persistence.Schedule{}, err
	}

	schedule.Times = times
	return schedule, nil
}

// GetSchedule retrieves a schedule with its times
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id int64) (persistence.Schedule, error) {
	schedules, err := r.listSchedules(ctx,
		scheduleSelect+` WHERE s.id = ?`,
		timesFilter{where: `WHERE schedule_id = ?`, args: []any{id}},
		id)
	if err != nil {
		return persistence.Schedule{}, err
	}
	if len(schedules) == 0 {
		return persistence.Schedule{}, persistence.ErrNotFound
	}
	return schedules[0], nil
}

// ListSchedules returns every schedule ordered by id, with times
func (r *ScheduleRepository) ListSchedules(ctx context.Context) ([]persistence.Schedule, error) {
	return r.listSchedules(ctx, scheduleSelect+` ORDER BY s.id ASC`, timesFilter{})
}

// ListSchedulesForBillboard returns the schedules showing billboardID
func (r *ScheduleRepository) ListSchedulesForBillboard(ctx context.Context, billboardID int64) ([]persistence.Schedule, error) {
	return r.listSchedules(ctx,
		scheduleSelect+` WHERE s.billboard_id = ? ORDER BY s.id ASC`,
		timesFilter{
			where: `WHERE schedule_id IN (SELECT id FROM schedules WHERE billboard_id = ?)`,
			args:  []any{billboardID},
		},
		billboardID)
}

// DeleteSchedule removes a schedule and its times
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM schedule_times WHERE schedule_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM schedules WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return rowsAffectedOrNotFound(result)
	})
}

// ListSlots returns every schedule time joined with its billboard, oldest first
func (r *ScheduleRepository) ListSlots(ctx context.Context) ([]persistence.Slot, error) {
	return r.listSlots(ctx, slotSelect+` ORDER BY st.id ASC`)
}

// ListActiveSlots returns the slots on day with start < minute < end, newest first
func (r *ScheduleRepository) ListActiveSlots(ctx context.Context, day, minute int) ([]persistence.Slot, error) {
	return r.listSlots(ctx, slotSelect+`
		WHERE st.day = ? AND st.start_minute < ? AND st.end_minute > ?
		ORDER BY st.id DESC
	`, day, minute, minute)
}

func (r *ScheduleRepository) validateSchedule(schedule persistence.Schedule) error {
	if schedule.BillboardID == 0 || schedule.CreatorID == 0 {
		return persistence.ErrConstraintViolation
	}
	for _, t := range schedule.Times {
		if t.Day < 1 || t.Day > 7 || t.StartMinute < 0 || t.StartMinute >= t.EndMinute || t.EndMinute > 1440 {
			return persistence.ErrConstraintViolation
		}
	}
	return nil
}

func (r *ScheduleRepository) insertTimes(ctx context.Context, tx *sql.Tx, scheduleID int64, times []persistence.ScheduleTime) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_times (schedule_id, day, start_minute, end_minute)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer stmt.Close()

	for i := range times {
		result, err := stmt.ExecContext(ctx, scheduleID, times[i].Day, times[i].StartMinute, times[i].EndMinute)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if times[i].ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read schedule time id: %w", err)
		}
		times[i].ScheduleID = scheduleID
	}
	return nil
}

// timesFilter scopes the schedule_times read to the schedules a listing selected.
// The zero value reads every time.
type timesFilter struct {
	where string
	args  []any
}

func (r *ScheduleRepository) listSchedules(ctx context.Context, query string, filter timesFilter, args ...any) ([]persistence.Schedule, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var (
		schedules []persistence.Schedule
		index     = make(map[int64]int)
	)
	for rows.Next() {
		var (
			schedule     persistence.Schedule
			createdAtStr string
		)
		if err := rows.Scan(
			&schedule.ID,
			&schedule.BillboardID,
			&schedule.BillboardName,
			&schedule.CreatorID,
			&schedule.CreatorUsername,
			&schedule.Day,
			&schedule.StartMinute,
			&schedule.DurationMinutes,
			&schedule.Repeating,
			&schedule.GapMinutes,
			&createdAtStr,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if schedule.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
			return nil, err
		}
		index[schedule.ID] = len(schedules)
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	if len(schedules) == 0 {
		return nil, nil
	}

	if err := r.attachTimes(ctx, schedules, index, filter); err != nil {
		return nil, err
	}
	return schedules, nil
}

// attachTimes loads the times of every listed schedule in one query.
func (r *ScheduleRepository) attachTimes(ctx context.Context, schedules []persistence.Schedule, index map[int64]int, filter timesFilter) error {
	query := `SELECT id, schedule_id, day, start_minute, end_minute FROM schedule_times`
	if filter.where != "" {
		query += ` ` + filter.where
	}
	query += ` ORDER BY schedule_id ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, filter.args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var t persistence.ScheduleTime
		if err := rows.Scan(&t.ID, &t.ScheduleID, &t.Day, &t.StartMinute, &t.EndMinute); err != nil {
			return r.mapper.MapError(err)
		}
		if i, ok := index[t.ScheduleID]; ok {
			schedules[i].Times = append(schedules[i].Times, t)
		}
	}
	if err := rows.Err(); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *ScheduleRepository) listSlots(ctx context.Context, query string, args ...any) ([]persistence.Slot, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var slots []persistence.Slot
	for rows.Next() {
		var slot persistence.Slot
		if err := rows.Scan(
			&slot.ScheduleTimeID,
			&slot.ScheduleID,
			&slot.BillboardID,
			&slot.BillboardName,
			&slot.Day,
			&slot.StartMinute,
			&slot.EndMinute,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return slots, nil
}
