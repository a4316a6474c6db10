package schedule

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want TimeOfDay
	}{
		{"18:30", TimeOfDay{Hour: 18, Minute: 30}},
		{"18:30:15", TimeOfDay{Hour: 18, Minute: 30, Second: 15}},
		{"00:00:00", TimeOfDay{}},
		{"23:59:59", TimeOfDay{Hour: 23, Minute: 59, Second: 59}},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.raw)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTimeOfDay(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestParseTimeOfDayInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "18", "24:00", "18:60", "18:30:60", "half past six", "18:3x"} {
		if _, err := ParseTimeOfDay(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNextUploadTimeNoPrevious(t *testing.T) {
	t.Parallel()
	target := TimeOfDay{Hour: 18, Minute: 30}
	delay := 24 * time.Hour

	// The result only depends on now's date, not its time of day.
	for _, now := range []time.Time{
		time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
	} {
		got := NextUploadTime(now, nil, target, delay)
		want := time.Date(2024, 3, 11, 18, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("NextUploadTime(now=%v) = %v, want %v", now, got, want)
		}
	}
}

func TestNextUploadTimeFloorWins(t *testing.T) {
	t.Parallel()
	target := TimeOfDay{Hour: 8}
	delay := 48 * time.Hour
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// last + delay beyond today's slot + delay: the floor wins.
	last := time.Date(2024, 3, 12, 20, 0, 0, 0, time.UTC)
	got := NextUploadTime(now, &last, target, delay)
	if want := last.Add(delay); !got.Equal(want) {
		t.Fatalf("NextUploadTime = %v, want %v", got, want)
	}

	// Old last upload: the nominal slot wins.
	last = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	got = NextUploadTime(now, &last, target, delay)
	if want := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextUploadTime = %v, want %v", got, want)
	}
}

func TestNextUploadTimeCanReturnPast(t *testing.T) {
	t.Parallel()
	// With no previous upload and a zero delay, a target earlier than now
	// yields a past timestamp. The dispatch loop treats that as due.
	now := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	got := NextUploadTime(now, nil, TimeOfDay{Hour: 6}, 0)
	if !got.Before(now) {
		t.Fatalf("expected past timestamp, got %v (now %v)", got, now)
	}
}
