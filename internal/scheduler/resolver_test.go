package scheduler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/example/billboard-server/internal/recurrence"
)

func slot(id, scheduleID, billboardID int64, day, start, end int) Slot {
	return Slot{
		ID:          id,
		ScheduleID:  scheduleID,
		BillboardID: billboardID,
		Occurrence:  recurrence.Occurrence{Day: day, Start: start, End: end},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	slots := []Slot{
		slot(1, 10, 100, 3, 600, 660),
		slot(2, 11, 101, 3, 630, 700),
		slot(3, 12, 102, 4, 600, 660),
	}

	t.Run("boundaries are exclusive", func(t *testing.T) {
		t.Parallel()

		if _, ok := Resolve(slots[:1], 3, 600); ok {
			t.Fatal("expected no match at the start minute")
		}
		if _, ok := Resolve(slots[:1], 3, 660); ok {
			t.Fatal("expected no match at the end minute")
		}
		got, ok := Resolve(slots[:1], 3, 601)
		if !ok || got.ID != 1 {
			t.Fatalf("expected slot 1, got %+v (found=%v)", got, ok)
		}
	})

	t.Run("highest id wins on overlap", func(t *testing.T) {
		t.Parallel()

		got, ok := Resolve(slots, 3, 640)
		if !ok {
			t.Fatal("expected a match")
		}
		if got.ID != 2 || got.BillboardID != 101 {
			t.Fatalf("expected slot 2 for billboard 101, got %+v", got)
		}
	})

	t.Run("order of input does not matter", func(t *testing.T) {
		t.Parallel()

		reversed := []Slot{slots[2], slots[1], slots[0]}
		got, ok := Resolve(reversed, 3, 640)
		if !ok || got.ID != 2 {
			t.Fatalf("expected slot 2, got %+v (found=%v)", got, ok)
		}
	})

	t.Run("other days are ignored", func(t *testing.T) {
		t.Parallel()

		if _, ok := Resolve(slots, 5, 640); ok {
			t.Fatal("expected no match on an empty day")
		}
	})
}

func TestDetectOverlaps(t *testing.T) {
	t.Parallel()

	existing := []Slot{
		slot(1, 10, 100, 3, 600, 660),
		slot(2, 10, 100, 3, 900, 960),
		slot(3, 11, 101, 3, 660, 720),
		slot(4, 12, 102, 5, 0, 1440),
	}

	t.Run("reports each overlapping schedule once", func(t *testing.T) {
		t.Parallel()

		candidate := []recurrence.Occurrence{
			{Day: 3, Start: 630, End: 690},
			{Day: 3, Start: 930, End: 990},
		}
		got := DetectOverlaps(existing, candidate)
		want := []Overlap{
			{WithScheduleID: 10, Day: 3, Start: 630, End: 660},
			{WithScheduleID: 11, Day: 3, Start: 660, End: 690},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("unexpected overlaps (-want +got):\n%s", diff)
		}
	})

	t.Run("touching intervals do not overlap", func(t *testing.T) {
		t.Parallel()

		got := DetectOverlaps(existing, []recurrence.Occurrence{{Day: 3, Start: 720, End: 900}})
		if len(got) != 0 {
			t.Fatalf("expected no overlaps, got %+v", got)
		}
	})

	t.Run("different days do not overlap", func(t *testing.T) {
		t.Parallel()

		got := DetectOverlaps(existing, []recurrence.Occurrence{{Day: 4, Start: 0, End: 1440}})
		if len(got) != 0 {
			t.Fatalf("expected no overlaps, got %+v", got)
		}
	})
}
