package core

import (
	"fmt"
	"time"
)

// Clock returns the current time. Components take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// OrSystem returns c, or SystemClock when c is nil.
func (c Clock) OrSystem() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// FormatTimestamp formats t as a UTC ISO-8601 timestamp with milliseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFmt)
}

// ParseTimestamp parses an ISO-8601 timestamp. RFC 3339 without
// milliseconds is accepted too.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampFmt, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp '%s' (expected ISO-8601)", s)
	}
	return t, nil
}

// UnixMillis converts t to milliseconds since the epoch.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis converts milliseconds since the epoch to a time.Time.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// HumanDuration renders d rounded to the second, e.g. "14m3s".
// Negative durations render with a leading minus.
func HumanDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
