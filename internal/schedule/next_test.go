package schedule

import (
	"testing"
	"time"
)

// Wed 2025-06-11 10:00 local.
func wednesday() time.Time {
	return time.Date(2025, time.June, 11, 10, 0, 0, 0, time.Local)
}

func TestNextDaily(t *testing.T) {
	t.Parallel()
	now := wednesday()
	tests := []struct {
		name     string
		spec     Spec
		afterRun bool
		want     time.Time
	}{
		{
			name: "slot later today",
			spec: Spec{Mode: "daily", Time: "18:30"},
			want: time.Date(2025, time.June, 11, 18, 30, 0, 0, time.Local),
		},
		{
			name: "slot already passed rolls to tomorrow",
			spec: Spec{Mode: "daily", Time: "08:00"},
			want: time.Date(2025, time.June, 12, 8, 0, 0, 0, time.Local),
		},
		{
			name:     "afterRun always advances",
			spec:     Spec{Mode: "daily", Time: "18:30"},
			afterRun: true,
			want:     time.Date(2025, time.June, 12, 18, 30, 0, 0, time.Local),
		},
		{
			name: "malformed time means midnight",
			spec: Spec{Mode: "daily", Time: "nonsense"},
			want: time.Date(2025, time.June, 12, 0, 0, 0, 0, time.Local),
		},
		{
			name: "unknown mode behaves as daily",
			spec: Spec{Mode: "fortnightly", Time: "18:30"},
			want: time.Date(2025, time.June, 11, 18, 30, 0, 0, time.Local),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Next(tt.spec, now, tt.afterRun)
			if !got.Equal(tt.want) {
				t.Fatalf("Next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextWorkdaySkipsWeekend(t *testing.T) {
	t.Parallel()
	// Fri 2025-06-13 19:00, slot 18:00 already passed.
	now := time.Date(2025, time.June, 13, 19, 0, 0, 0, time.Local)
	got := Next(Spec{Mode: "workday", Time: "18:00"}, now, false)
	want := time.Date(2025, time.June, 16, 18, 0, 0, 0, time.Local) // Monday
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextWeekly(t *testing.T) {
	t.Parallel()
	now := wednesday() // isoWeekday 3
	tests := []struct {
		name     string
		weekday  int
		hhmm     string
		afterRun bool
		want     time.Time
	}{
		{
			name: "later this week", weekday: 5, hhmm: "09:00",
			want: time.Date(2025, time.June, 13, 9, 0, 0, 0, time.Local),
		},
		{
			name: "earlier weekday wraps to next week", weekday: 1, hhmm: "09:00",
			want: time.Date(2025, time.June, 16, 9, 0, 0, 0, time.Local),
		},
		{
			name: "same day, slot passed", weekday: 3, hhmm: "08:00",
			want: time.Date(2025, time.June, 18, 8, 0, 0, 0, time.Local),
		},
		{
			name: "same day, slot ahead", weekday: 3, hhmm: "22:00",
			want: time.Date(2025, time.June, 11, 22, 0, 0, 0, time.Local),
		},
		{
			name: "same day afterRun skips ahead slot", weekday: 3, hhmm: "22:00", afterRun: true,
			want: time.Date(2025, time.June, 18, 22, 0, 0, 0, time.Local),
		},
		{
			name: "out of range weekday defaults to monday", weekday: 9, hhmm: "09:00",
			want: time.Date(2025, time.June, 16, 9, 0, 0, 0, time.Local),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Next(Spec{Mode: "weekly", Weekday: tt.weekday, Time: tt.hhmm}, now, tt.afterRun)
			if !got.Equal(tt.want) {
				t.Fatalf("Next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextMonthlyClampsDay(t *testing.T) {
	t.Parallel()
	// Jan 31 fired; the next slot must land on Feb 28, not skip to March.
	now := time.Date(2025, time.January, 31, 9, 0, 0, 0, time.Local)
	got := Next(Spec{Mode: "monthly", Monthday: 31, Time: "09:00"}, now, true)
	want := time.Date(2025, time.February, 28, 9, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextMonthlyYearRollover(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.December, 20, 12, 0, 0, 0, time.Local)
	got := Next(Spec{Mode: "monthly", Monthday: 5, Time: "07:00"}, now, false)
	want := time.Date(2026, time.January, 5, 7, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextYearly(t *testing.T) {
	t.Parallel()
	now := wednesday()
	tests := []struct {
		name     string
		month    int
		day      int
		afterRun bool
		want     time.Time
	}{
		{
			name: "later this year", month: 12, day: 31,
			want: time.Date(2025, time.December, 31, 0, 0, 0, 0, time.Local),
		},
		{
			name: "passed date rolls a year", month: 1, day: 1,
			want: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.Local),
		},
		{
			name: "leap day clamps in common years", month: 2, day: 30, afterRun: true,
			want: time.Date(2026, time.February, 28, 0, 0, 0, 0, time.Local),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Next(Spec{Mode: "yearly", Month: tt.month, Monthday: tt.day}, now, tt.afterRun)
			if !got.Equal(tt.want) {
				t.Fatalf("Next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextIsAlwaysInTheFuture(t *testing.T) {
	t.Parallel()
	now := wednesday()
	specs := []Spec{
		{Mode: "daily", Time: "10:00"},
		{Mode: "workday", Time: "10:00"},
		{Mode: "weekly", Weekday: 3, Time: "10:00"},
		{Mode: "monthly", Monthday: 11, Time: "10:00"},
		{Mode: "yearly", Month: 6, Monthday: 11, Time: "10:00"},
	}
	for _, spec := range specs {
		for _, afterRun := range []bool{false, true} {
			got := Next(spec, now, afterRun)
			if !got.After(now) {
				t.Fatalf("Next(%+v, afterRun=%v) = %v, not after %v", spec, afterRun, got, now)
			}
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		h, m int
	}{
		{"07:30", 7, 30},
		{" 23:59 ", 23, 59},
		{"24:00", 0, 0},
		{"12:60", 0, 0},
		{"noonish", 0, 0},
		{"", 0, 0},
	}
	for _, tt := range tests {
		h, m := parseTimeOfDay(tt.raw)
		if h != tt.h || m != tt.m {
			t.Fatalf("parseTimeOfDay(%q) = %d:%d, want %d:%d", tt.raw, h, m, tt.h, tt.m)
		}
	}
}
