package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/billboard-server/internal/policy"
	"github.com/example/billboard-server/internal/recurrence"
	"github.com/example/billboard-server/internal/scheduler"
)

const (
	// FallbackBillboardName is returned when no schedule covers the current minute.
	FallbackBillboardName = "Temporary billboard"
	// FallbackBillboardContent is the document shown when nothing is scheduled.
	FallbackBillboardContent = "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"no\"?>\n" +
		"<billboard>\n" +
		"    <message>No billboard is currently showing.</message>\n" +
		"</billboard>\n"
)

// ScheduleRepository captures the persistence operations needed by the schedule service.
type ScheduleRepository interface {
	// CreateSchedule persists the schedule and all of its times atomically.
	CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	ListSchedulesForBillboard(ctx context.Context, billboardID int64) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
	ListSlots(ctx context.Context) ([]scheduler.Slot, error)
	// ListActiveSlots returns slots on day whose interval strictly contains minute.
	ListActiveSlots(ctx context.Context, day, minute int) ([]scheduler.Slot, error)
}

// BillboardReader loads billboards for the schedule service.
type BillboardReader interface {
	GetBillboard(ctx context.Context, id int64) (Billboard, error)
}

// ScheduleService orchestrates schedule creation and the current-billboard lookup.
type ScheduleService struct {
	schedules  ScheduleRepository
	billboards BillboardReader
	engine     *recurrence.Engine
	now        func() time.Time
	logger     *slog.Logger
}

// NewScheduleService wires dependencies for the schedule service.
func NewScheduleService(schedules ScheduleRepository, billboards BillboardReader, engine *recurrence.Engine, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(schedules, billboards, engine, now, nil)
}

// NewScheduleServiceWithLogger wires dependencies for the schedule service with a specified logger.
func NewScheduleServiceWithLogger(schedules ScheduleRepository, billboards BillboardReader, engine *recurrence.Engine, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		schedules:  schedules,
		billboards: billboards,
		engine:     engine,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

func (s *ScheduleService) ready() error {
	if s == nil || s.schedules == nil || s.billboards == nil {
		return fmt.Errorf("schedule service not configured")
	}
	return nil
}

// AddSchedule expands the definition and stores it together with its times.
// Schedules that share screen time with the new one are reported as overridden;
// they are never rejected.
func (s *ScheduleService) AddSchedule(ctx context.Context, params AddScheduleParams) (result AddScheduleResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	def := params.Definition
	logger := s.loggerWith(ctx, "AddSchedule",
		"principal_id", params.Principal.UserID,
		"billboard_id", params.BillboardID,
		"day", def.Day,
		"start_minute", def.StartMinute,
		"duration_minutes", def.DurationMinutes,
		"repeating", def.Repeating,
	)
	defer func() {
		logOutcome(ctx, logger, err, "schedule created",
			"schedule_id", result.Schedule.ID,
			"times", len(result.Schedule.Times),
			"overridden", len(result.Overridden),
		)
	}()

	if decision := policy.Evaluate(policy.AddSchedule, params.Principal.caller(), policy.Target{}); !decision.Allowed {
		err = forbidden(decision)
		return
	}

	var occurrences []recurrence.Occurrence
	occurrences, err = recurrence.Expand(def)
	if err != nil {
		var fieldErr *recurrence.FieldError
		if errors.As(err, &fieldErr) {
			err = NewValidationError(fieldErr.Field, fieldErr.Reason)
		}
		return
	}

	var billboard Billboard
	billboard, err = s.billboards.GetBillboard(ctx, params.BillboardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: billboard %d", ErrNotFound, params.BillboardID)
		}
		return
	}

	var existing []scheduler.Slot
	existing, err = s.schedules.ListSlots(ctx)
	if err != nil {
		return
	}
	overlaps := scheduler.DetectOverlaps(existing, occurrences)

	candidate := Schedule{
		BillboardID:   billboard.ID,
		BillboardName: billboard.Name,
		CreatorID:     params.Principal.UserID,
		Definition:    def,
		CreatedAt:     s.now().UTC(),
		Times:         make([]ScheduleTime, len(occurrences)),
	}
	for i, occ := range occurrences {
		candidate.Times[i] = ScheduleTime{Day: occ.Day, Start: occ.Start, End: occ.End}
	}

	var created Schedule
	created, err = s.schedules.CreateSchedule(ctx, candidate)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: billboard %d", ErrNotFound, params.BillboardID)
		}
		return
	}

	result.Schedule = created
	for _, overlap := range overlaps {
		result.Overridden = append(result.Overridden, overlap.WithScheduleID)
	}
	return
}

// DeleteSchedule removes a schedule and its times.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, principal Principal, scheduleID int64) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteSchedule", "principal_id", principal.UserID, "schedule_id", scheduleID)
	defer func() {
		logOutcome(ctx, logger, err, "schedule deleted")
	}()

	if decision := policy.Evaluate(policy.DeleteSchedule, principal.caller(), policy.Target{}); !decision.Allowed {
		err = forbidden(decision)
		return
	}

	if err = s.schedules.DeleteSchedule(ctx, scheduleID); err != nil && errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: schedule %d", ErrNotFound, scheduleID)
	}
	return
}

// ListSchedules returns every schedule with its times.
func (s *ScheduleService) ListSchedules(ctx context.Context, principal Principal) ([]Schedule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if decision := policy.Evaluate(policy.GetAllSchedules, principal.caller(), policy.Target{}); !decision.Allowed {
		return nil, forbidden(decision)
	}
	return s.schedules.ListSchedules(ctx)
}

// ListBillboardSchedules returns the schedules of one billboard.
func (s *ScheduleService) ListBillboardSchedules(ctx context.Context, principal Principal, billboardID int64) ([]Schedule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if decision := policy.Evaluate(policy.GetBillboardSchedule, principal.caller(), policy.Target{}); !decision.Allowed {
		return nil, forbidden(decision)
	}
	if _, err := s.billboards.GetBillboard(ctx, billboardID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: billboard %d", ErrNotFound, billboardID)
		}
		return nil, err
	}
	return s.schedules.ListSchedulesForBillboard(ctx, billboardID)
}

// CurrentBillboard returns the billboard scheduled for the current minute, or
// the fallback document when nothing is scheduled.
func (s *ScheduleService) CurrentBillboard(ctx context.Context) (CurrentBillboard, error) {
	if err := s.ready(); err != nil {
		return CurrentBillboard{}, err
	}

	day, minute := s.engine.Position(s.now())
	candidates, err := s.schedules.ListActiveSlots(ctx, day, minute)
	if err != nil {
		return CurrentBillboard{}, err
	}

	slot, ok := scheduler.Resolve(candidates, day, minute)
	if !ok {
		return fallbackBillboard(), nil
	}

	billboard, err := s.billboards.GetBillboard(ctx, slot.BillboardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Deleted between the two reads.
			return fallbackBillboard(), nil
		}
		return CurrentBillboard{}, err
	}

	return CurrentBillboard{
		BillboardID: billboard.ID,
		ScheduleID:  slot.ScheduleID,
		Name:        billboard.Name,
		Content:     billboard.Content,
	}, nil
}

func fallbackBillboard() CurrentBillboard {
	return CurrentBillboard{
		Name:     FallbackBillboardName,
		Content:  []byte(FallbackBillboardContent),
		Fallback: true,
	}
}
