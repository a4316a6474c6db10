package dispatch

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", duration: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "interval:", "cron:"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestTriggerNextWait(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 10, 12, 7, 0, 0, time.UTC)

	fixed := FixedTrigger(15 * time.Minute)
	if got := fixed.NextWait(now); got != 15*time.Minute {
		t.Fatalf("fixed NextWait = %v", got)
	}

	trig, err := NewTrigger("*/15 * * * *")
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}
	if got := trig.NextWait(now); got != 8*time.Minute {
		t.Fatalf("cron NextWait = %v, want 8m", got)
	}

	trig, err = NewTrigger("@every 20m")
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}
	if got := trig.NextWait(now); got != 20*time.Minute {
		t.Fatalf("@every NextWait = %v, want 20m", got)
	}
}

func TestNewTriggerRejectsBadCron(t *testing.T) {
	t.Parallel()
	if _, err := NewTrigger("61 * * * *"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
