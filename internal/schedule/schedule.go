// Package schedule computes when the next post is allowed to go out.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date, e.g. the daily upload slot.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" (24h clock).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (use HH:MM or HH:MM:SS)", raw)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", raw, err)
		}
		nums[i] = n
	}
	tod := TimeOfDay{Hour: nums[0], Minute: nums[1]}
	if len(nums) == 3 {
		tod.Second = nums[2]
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 || tod.Second < 0 || tod.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", raw)
	}
	return tod, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// On returns the timestamp at this time of day on day's date, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, day.Location())
}

// NextUploadTime computes the earliest allowed time for the next upload.
//
// The nominal slot is today's date (relative to now) at target, shifted
// forward by delay. When a previous upload exists, last+delay acts as a
// floor; the later of the two wins.
//
// The result is not clamped to the future: if target already passed today
// and there is no previous upload, the returned time is in the past and the
// dispatch loop will treat the post as immediately due.
func NextUploadTime(now time.Time, last *time.Time, target TimeOfDay, delay time.Duration) time.Time {
	next := target.On(now).Add(delay)
	if last != nil {
		if potential := last.Add(delay); potential.After(next) {
			next = potential
		}
	}
	return next
}
