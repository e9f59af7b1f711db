package calendar

import (
	"testing"
	"time"
)

func mustRules(t *testing.T, closed []ClosedDate) *Rules {
	t.Helper()
	r, err := NewRules("Europe/Madrid", closed)
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	return r
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestWithinBusinessHours(t *testing.T) {
	r := mustRules(t, []ClosedDate{{Day: 1, Month: 1}, {Day: 25, Month: 12}})
	loc := madrid(t)

	tests := []struct {
		name  string
		start time.Time
		dur   time.Duration
		want  bool
	}{
		{"monday midday", time.Date(2026, 3, 2, 12, 0, 0, 0, loc), time.Hour, true},
		{"saturday open", time.Date(2026, 3, 7, 10, 0, 0, 0, loc), time.Hour, true},
		{"sunday rejected", time.Date(2026, 3, 1, 12, 0, 0, 0, loc), time.Hour, false},
		{"before opening", time.Date(2026, 3, 2, 9, 30, 0, 0, loc), time.Hour, false},
		{"ends past closing", time.Date(2026, 3, 2, 19, 30, 0, 0, loc), time.Hour, false},
		{"ends exactly at closing", time.Date(2026, 3, 2, 19, 0, 0, 0, loc), time.Hour, true},
		{"new year closed", time.Date(2026, 1, 1, 12, 0, 0, 0, loc), time.Hour, false},
		{"christmas closed", time.Date(2026, 12, 25, 12, 0, 0, 0, loc), time.Hour, false},
		{"crosses midnight", time.Date(2026, 3, 2, 23, 30, 0, 0, loc), time.Hour, false},
		{"zero duration", time.Date(2026, 3, 2, 12, 0, 0, 0, loc), 0, false},
	}
	for _, tc := range tests {
		if got := r.WithinBusinessHours(tc.start, tc.dur); got != tc.want {
			t.Fatalf("%s: WithinBusinessHours = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWithinBusinessHoursNormalizesOffset(t *testing.T) {
	r := mustRules(t, nil)
	// 11:00 UTC on a March Monday is 12:00 in Madrid.
	utc := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	if !r.WithinBusinessHours(utc, time.Hour) {
		t.Fatal("UTC instant inside Madrid hours should pass")
	}
	// 20:00 UTC is 21:00 in Madrid, after closing.
	late := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	if r.WithinBusinessHours(late, time.Hour) {
		t.Fatal("instant after Madrid closing should fail")
	}
}

func TestSundayAlwaysClosedRegardlessOfDuration(t *testing.T) {
	r := mustRules(t, nil)
	loc := madrid(t)
	sunday := time.Date(2026, 3, 1, 11, 0, 0, 0, loc)
	for _, d := range []time.Duration{time.Minute, 30 * time.Minute, time.Hour, 8 * time.Hour} {
		if r.WithinBusinessHours(sunday, d) {
			t.Fatalf("sunday with duration %v should be closed", d)
		}
	}
}

func TestNextOpeningFrom(t *testing.T) {
	r := mustRules(t, []ClosedDate{{Day: 6, Month: 1}})
	loc := madrid(t)

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			"already open stays put",
			time.Date(2026, 3, 2, 12, 15, 0, 0, loc),
			time.Date(2026, 3, 2, 12, 15, 0, 0, loc),
		},
		{
			"before opening snaps to open",
			time.Date(2026, 3, 2, 7, 0, 0, 0, loc),
			time.Date(2026, 3, 2, 10, 0, 0, 0, loc),
		},
		{
			"after closing moves to next day",
			time.Date(2026, 3, 2, 20, 30, 0, 0, loc),
			time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
		},
		{
			"saturday night skips sunday",
			time.Date(2026, 3, 7, 21, 0, 0, 0, loc),
			time.Date(2026, 3, 9, 10, 0, 0, 0, loc),
		},
		{
			"closed date skipped",
			time.Date(2026, 1, 6, 12, 0, 0, 0, loc),
			time.Date(2026, 1, 7, 10, 0, 0, 0, loc),
		},
	}
	for _, tc := range tests {
		got := r.NextOpeningFrom(tc.from)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: NextOpeningFrom = %v, want %v", tc.name, got, tc.want)
		}
		if !r.WithinBusinessHours(got, time.Minute) {
			t.Fatalf("%s: NextOpeningFrom landed outside business hours: %v", tc.name, got)
		}
	}
}

func TestRoundUpToSlot(t *testing.T) {
	r := mustRules(t, nil)
	loc := madrid(t)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"on boundary unchanged", time.Date(2026, 3, 2, 12, 0, 0, 0, loc), time.Date(2026, 3, 2, 12, 0, 0, 0, loc)},
		{"half hour unchanged", time.Date(2026, 3, 2, 12, 30, 0, 0, loc), time.Date(2026, 3, 2, 12, 30, 0, 0, loc)},
		{"rounds up minutes", time.Date(2026, 3, 2, 12, 1, 0, 0, loc), time.Date(2026, 3, 2, 12, 30, 0, 0, loc)},
		{"rounds up seconds", time.Date(2026, 3, 2, 12, 30, 1, 0, loc), time.Date(2026, 3, 2, 13, 0, 0, 0, loc)},
		{"rounds past hour", time.Date(2026, 3, 2, 12, 45, 0, 0, loc), time.Date(2026, 3, 2, 13, 0, 0, 0, loc)},
	}
	for _, tc := range tests {
		if got := r.RoundUpToSlot(tc.in); !got.Equal(tc.want) {
			t.Fatalf("%s: RoundUpToSlot = %v, want %v", tc.name, got, tc.want)
		}
	}
}
