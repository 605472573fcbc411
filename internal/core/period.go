package core

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// ParsePeriod validates a period keyword. Unknown keywords fail with
// ErrInvalidPeriod.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// endOfDay is the inclusive end boundary used for range queries:
// 23:59:59.999999 local time.
func endOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 999999000, loc)
}

func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// RangeFor resolves a period keyword against a reference instant and
// timezone into UTC start/end instants plus a human label. Weeks run
// Monday through Sunday; the monthly end boundary lands on the last
// day of the reference month, including the December rollover.
//
// The function is pure and re-entrant: trend series call it once per
// point with shifted reference instants.
func RangeFor(p Period, ref time.Time, loc *time.Location) (start, end time.Time, label string, err error) {
	local := ref.In(loc)
	y, m, d := local.Date()
	switch p {
	case Daily:
		start = startOfDay(y, m, d, loc)
		end = endOfDay(y, m, d, loc)
		label = start.Format("2006-01-02")
	case Weekly:
		monday := local.AddDate(0, 0, -mondayOffset(local.Weekday()))
		my, mm, md := monday.Date()
		start = startOfDay(my, mm, md, loc)
		sunday := start.AddDate(0, 0, 6)
		end = endOfDay(sunday.Year(), sunday.Month(), sunday.Day(), loc)
		label = start.Format("2006-01-02") + "_to_" + sunday.Format("2006-01-02")
	case Monthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		lastDay := start.AddDate(0, 1, 0).AddDate(0, 0, -1)
		end = endOfDay(lastDay.Year(), lastDay.Month(), lastDay.Day(), loc)
		label = start.Format("2006-01")
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
		return
	}
	start = start.UTC()
	end = end.UTC()
	return
}

func mondayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
