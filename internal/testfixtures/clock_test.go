package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected updated time %v, got %v", clock.Now(), got)
	}
}

func TestWeekMinute(t *testing.T) {
	tests := []struct {
		day, minute int
		want        time.Time
	}{
		{1, 0, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)},
		{3, 12 * 60, ReferenceTime()},
		{7, 1439, time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		if got := WeekMinute(tc.day, tc.minute); !got.Equal(tc.want) {
			t.Fatalf("WeekMinute(%d, %d) = %v, want %v", tc.day, tc.minute, got, tc.want)
		}
	}

	clock := NewClock(time.Time{})
	clock.SetWeekMinute(5, 90)
	if got := clock.Now(); got.Weekday() != time.Friday || got.Hour() != 1 || got.Minute() != 30 {
		t.Fatalf("unexpected clock time %v", got)
	}
}
