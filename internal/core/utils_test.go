package core

import (
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("SAST", 2*60*60)
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc", time.Date(2024, 7, 15, 10, 30, 0, 0, time.UTC), "2024-07-15T10:30:00.000Z"},
		{"millis", time.Date(2024, 7, 15, 10, 30, 0, 123_000_000, time.UTC), "2024-07-15T10:30:00.123Z"},
		{"converted to utc", time.Date(2024, 7, 15, 12, 30, 0, 0, loc), "2024-07-15T10:30:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.in); got != tt.want {
				t.Errorf("FormatTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2024-07-15T10:30:00.000Z", false},
		{"2024-07-15T10:30:00Z", false},
		{"2024-07-15T10:30:00.5+02:00", false},
		{"2024-07-15", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseTimestamp(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2024, 7, 15, 10, 30, 0, 456_000_000, time.UTC)
	got, err := ParseTimestamp(FormatTimestamp(now))
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("round trip = %v, want %v", got, now)
	}
}

func TestClockOrSystem(t *testing.T) {
	var c Clock
	if c.OrSystem() == nil {
		t.Fatal("expected system clock fallback")
	}

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c = func() time.Time { return fixed }
	if got := c.OrSystem()(); !got.Equal(fixed) {
		t.Errorf("OrSystem() = %v, want %v", got, fixed)
	}
}

func TestUnixMillisRoundTrip(t *testing.T) {
	now := time.Date(2024, 7, 15, 10, 30, 0, 7_000_000, time.UTC)
	if got := FromUnixMillis(UnixMillis(now)); !got.Equal(now) {
		t.Errorf("FromUnixMillis(UnixMillis()) = %v, want %v", got, now)
	}
}
