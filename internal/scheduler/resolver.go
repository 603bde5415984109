package scheduler

import (
	"sort"

	"github.com/example/billboard-server/internal/recurrence"
)

// Slot is a materialized schedule time joined with the billboard it shows.
type Slot struct {
	ID          int64
	ScheduleID  int64
	BillboardID int64
	Occurrence  recurrence.Occurrence
}

// Resolve picks the slot that should be on screen at minute m of day d.
// Only slots with Start < m < End qualify; among those the most recently
// inserted one (highest ID) wins.
func Resolve(slots []Slot, day, minute int) (Slot, bool) {
	var (
		winner Slot
		found  bool
	)
	for _, slot := range slots {
		if !slot.Occurrence.Contains(day, minute) {
			continue
		}
		if !found || slot.ID > winner.ID {
			winner = slot
			found = true
		}
	}
	return winner, found
}

// Overlap describes an existing schedule that a candidate schedule shares screen time with.
type Overlap struct {
	WithScheduleID int64
	Day            int
	Start          int
	End            int
}

// DetectOverlaps reports the existing slots that intersect any candidate interval.
// Each existing schedule appears at most once, in ascending schedule order.
func DetectOverlaps(existing []Slot, candidate []recurrence.Occurrence) []Overlap {
	seen := make(map[int64]bool)
	var overlaps []Overlap
	for _, slot := range existing {
		if seen[slot.ScheduleID] {
			continue
		}
		for _, occ := range candidate {
			if !intersects(slot.Occurrence, occ) {
				continue
			}
			seen[slot.ScheduleID] = true
			overlaps = append(overlaps, Overlap{
				WithScheduleID: slot.ScheduleID,
				Day:            occ.Day,
				Start:          max(slot.Occurrence.Start, occ.Start),
				End:            min(slot.Occurrence.End, occ.End),
			})
			break
		}
	}
	sort.Slice(overlaps, func(i, j int) bool {
		return overlaps[i].WithScheduleID < overlaps[j].WithScheduleID
	})
	return overlaps
}

func intersects(a, b recurrence.Occurrence) bool {
	return a.Day == b.Day && a.Start < b.End && b.Start < a.End
}
