package recurrence

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinutesInDay is the exclusive upper bound of a minute-of-day value.
	MinutesInDay = 1440
	// DaysInWeek is the number of weekdays; days are numbered 1 (Monday) to 7 (Sunday).
	DaysInWeek = 7
)

// ErrInvalidDefinition indicates a schedule definition that cannot be expanded.
var ErrInvalidDefinition = errors.New("recurrence: invalid schedule definition")

// Definition is the compact weekly schedule description supplied by callers.
type Definition struct {
	Day             int
	StartMinute     int
	DurationMinutes int
	Repeating       bool
	GapMinutes      int
}

// Occurrence is a concrete interval within a single day of the week.
// Start is inclusive and End is exclusive: 0 <= Start < End <= MinutesInDay.
type Occurrence struct {
	Day   int
	Start int
	End   int
}

// Contains reports whether minute m of day d falls strictly inside the occurrence.
func (o Occurrence) Contains(day, minute int) bool {
	return o.Day == day && o.Start < minute && o.End > minute
}

// FieldError reports the definition field that failed validation.
// It unwraps to ErrInvalidDefinition.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDefinition, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidDefinition }

// Validate checks the preconditions Expand relies on to terminate.
// Failures are returned as *FieldError.
func Validate(def Definition) error {
	switch {
	case def.Day < 1 || def.Day > DaysInWeek:
		return &FieldError{Field: "day", Reason: fmt.Sprintf("day %d outside 1 (Monday)..%d (Sunday)", def.Day, DaysInWeek)}
	case def.StartMinute < 0 || def.StartMinute >= MinutesInDay:
		return &FieldError{Field: "start_minute", Reason: fmt.Sprintf("start minute %d outside 0..%d", def.StartMinute, MinutesInDay-1)}
	case def.DurationMinutes <= 0:
		return &FieldError{Field: "duration_minutes", Reason: "duration must be positive"}
	case def.Repeating && def.GapMinutes < def.DurationMinutes:
		return &FieldError{Field: "gap_minutes", Reason: fmt.Sprintf("repeat gap %d shorter than duration %d", def.GapMinutes, def.DurationMinutes)}
	}
	return nil
}

// Expand materializes a definition into day-bounded intervals within one week.
//
// Intervals crossing midnight are split at the day boundary. Anything that
// would land after Sunday is dropped and ends the expansion. When the
// definition repeats, the next start is the previous start plus the gap;
// after a midnight split the previous start is minute 0 of the new day.
func Expand(def Definition) ([]Occurrence, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}

	var out []Occurrence
	day := def.Day
	start := def.StartMinute
	first := true

	for day <= DaysInWeek {
		if !first {
			start += def.GapMinutes
			for start > MinutesInDay {
				day++
				start -= MinutesInDay
			}
		}

		end := start + def.DurationMinutes
		for end > MinutesInDay {
			if day > DaysInWeek {
				return out, nil
			}
			out = appendInterval(out, day, start, MinutesInDay)
			day++
			start = 0
			end -= MinutesInDay
		}

		if day > DaysInWeek {
			break
		}
		out = appendInterval(out, day, start, end)

		if !def.Repeating {
			break
		}
		first = false
	}

	return out, nil
}

func appendInterval(out []Occurrence, day, start, end int) []Occurrence {
	if start == end {
		return out
	}
	return append(out, Occurrence{Day: day, Start: start, End: end})
}

// Engine converts wall-clock instants into positions within the weekly grid.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates instants in loc.
// If loc is nil, the local time zone is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

// Location returns the time zone the engine evaluates instants in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.Local
	}
	return e.location
}

// Position returns the ISO weekday (Monday=1..Sunday=7) and minute of day for t.
func (e *Engine) Position(t time.Time) (day, minute int) {
	local := t.In(e.Location())
	day = int(local.Weekday())
	if day == 0 {
		day = DaysInWeek
	}
	minute = local.Hour()*60 + local.Minute()
	return day, minute
}
