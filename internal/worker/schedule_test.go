package worker

import (
	"testing"
	"time"

	"riel/internal/core"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Phnom_Penh")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestNextRunDaily(t *testing.T) {
	loc := mustLoc(t)
	s := NewSchedule(loc)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before fire time runs same day",
			now:  time.Date(2025, 3, 10, 9, 0, 0, 0, loc),
			want: time.Date(2025, 3, 10, 23, 55, 0, 0, loc),
		},
		{
			name: "after fire time rolls to tomorrow",
			now:  time.Date(2025, 3, 10, 23, 56, 0, 0, loc),
			want: time.Date(2025, 3, 11, 23, 55, 0, 0, loc),
		},
		{
			name: "exactly at fire time rolls forward",
			now:  time.Date(2025, 3, 10, 23, 55, 0, 0, loc),
			want: time.Date(2025, 3, 11, 23, 55, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.NextRun(core.Daily, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunWeekly(t *testing.T) {
	loc := mustLoc(t)
	s := NewSchedule(loc)

	// 2025-03-10 is a Monday.
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "monday before fire time runs same day",
			now:  time.Date(2025, 3, 10, 12, 0, 0, 0, loc),
			want: time.Date(2025, 3, 10, 23, 59, 0, 0, loc),
		},
		{
			name: "monday after fire time waits a week",
			now:  time.Date(2025, 3, 10, 23, 59, 30, 0, loc),
			want: time.Date(2025, 3, 17, 23, 59, 0, 0, loc),
		},
		{
			name: "midweek waits for next monday",
			now:  time.Date(2025, 3, 12, 8, 0, 0, 0, loc),
			want: time.Date(2025, 3, 17, 23, 59, 0, 0, loc),
		},
		{
			name: "sunday fires next day",
			now:  time.Date(2025, 3, 16, 8, 0, 0, 0, loc),
			want: time.Date(2025, 3, 17, 23, 59, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.NextRun(core.Weekly, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunMonthly(t *testing.T) {
	loc := mustLoc(t)
	s := NewSchedule(loc)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "first of month before fire time runs same day",
			now:  time.Date(2025, 3, 1, 0, 1, 0, 0, loc),
			want: time.Date(2025, 3, 1, 0, 5, 0, 0, loc),
		},
		{
			name: "mid-month waits for next first",
			now:  time.Date(2025, 3, 15, 12, 0, 0, 0, loc),
			want: time.Date(2025, 4, 1, 0, 5, 0, 0, loc),
		},
		{
			name: "december rolls into january",
			now:  time.Date(2025, 12, 20, 12, 0, 0, 0, loc),
			want: time.Date(2026, 1, 1, 0, 5, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.NextRun(core.Monthly, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefForCoversClosedPeriod(t *testing.T) {
	loc := mustLoc(t)
	s := NewSchedule(loc)

	// Weekly fires Monday 23:59; the reference lands in the week that
	// ended the previous Sunday.
	fire := time.Date(2025, 3, 10, 23, 59, 0, 0, loc)
	ref := s.RefFor(core.Weekly, fire)
	start, end, _, err := core.RangeFor(core.Weekly, ref, loc)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	wantStart := time.Date(2025, 3, 3, 0, 0, 0, 0, loc)
	if !start.Equal(wantStart) {
		t.Errorf("week start = %v, want %v", start.In(loc), wantStart)
	}
	if !end.Before(fire) {
		t.Errorf("closed week should end before the fire time, end=%v", end.In(loc))
	}

	// Monthly fires on the 1st at 00:05; the reference lands in the
	// month that just ended.
	fire = time.Date(2025, 4, 1, 0, 5, 0, 0, loc)
	ref = s.RefFor(core.Monthly, fire)
	_, _, label, err := core.RangeFor(core.Monthly, ref, loc)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if label != "2025-03" {
		t.Errorf("monthly label = %q, want 2025-03", label)
	}

	// Daily fires inside the day it reports.
	fire = time.Date(2025, 3, 10, 23, 55, 0, 0, loc)
	if got := s.RefFor(core.Daily, fire); !got.Equal(fire) {
		t.Errorf("daily ref = %v, want %v", got, fire)
	}
}
