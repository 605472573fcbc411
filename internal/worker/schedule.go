package worker

import (
	"time"

	"riel/internal/core"
)

// Fire times, in the report timezone: daily at 23:55, weekly on Monday
// at 23:59, monthly on the 1st at 00:05.
const (
	dailyHour, dailyMinute     = 23, 55
	weeklyHour, weeklyMinute   = 23, 59
	monthlyHour, monthlyMinute = 0, 5
)

// Schedule computes fire times for the rollup jobs in a timezone.
type Schedule struct {
	loc *time.Location
}

func NewSchedule(loc *time.Location) *Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return &Schedule{loc: loc}
}

// NextRun returns the next fire time for a period's job, strictly
// after now.
func (s *Schedule) NextRun(period core.Period, now time.Time) time.Time {
	now = now.In(s.loc)
	switch period {
	case core.Weekly:
		return s.nextWeekly(now)
	case core.Monthly:
		return s.nextMonthly(now)
	default:
		return s.nextDaily(now)
	}
}

func (s *Schedule) nextDaily(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), dailyHour, dailyMinute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Schedule) nextWeekly(now time.Time) time.Time {
	daysUntilMonday := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day(), weeklyHour, weeklyMinute, 0, 0, s.loc).
		AddDate(0, 0, daysUntilMonday)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s *Schedule) nextMonthly(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), 1, monthlyHour, monthlyMinute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

// RefFor maps a job's fire time to the reference instant the report
// should cover. The daily job fires inside the day it closes; the
// weekly and monthly jobs fire just after their period rolled over, so
// the reference steps back a day to land in the closed period.
func (s *Schedule) RefFor(period core.Period, fireTime time.Time) time.Time {
	switch period {
	case core.Weekly, core.Monthly:
		return fireTime.In(s.loc).AddDate(0, 0, -1)
	default:
		return fireTime
	}
}
