package recurrence

import "testing"

func BenchmarkExpandDenseRepeat(b *testing.B) {
	def := Definition{
		Day:             1,
		StartMinute:     0,
		DurationMinutes: 5,
		Repeating:       true,
		GapMinutes:      5,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		occurrences, err := Expand(def)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(occurrences) == 0 {
			b.Fatal("expected occurrences to be generated")
		}
	}
}
