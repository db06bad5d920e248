package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Spec is the recurrence rule of one profile. Weekday uses 1=Monday..7=Sunday,
// Monthday is clamped to the target month's length at computation time.
type Spec struct {
	Mode     string
	Time     string // HH:MM
	Weekday  int
	Monthday int
	Month    int
}

// Next computes the next occurrence of spec strictly relative to now.
//
// With afterRun=false the un-advanced slot is returned when it is still in
// the future; a slot at or before now rolls to the following one. With
// afterRun=true the computation always advances past the current slot, even
// when the naive result would equal it. A just-fired schedule must not fire
// again on the next tick.
func Next(spec Spec, now time.Time, afterRun bool) time.Time {
	h, m := parseTimeOfDay(spec.Time)

	switch spec.Mode {
	case "workday":
		next := nextDaily(now, h, m, afterRun)
		for isWeekend(next) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case "weekly":
		return nextWeekly(now, spec.Weekday, h, m, afterRun)
	case "monthly":
		return nextMonthly(now, spec.Monthday, h, m, afterRun)
	case "yearly":
		return nextYearly(now, spec.Month, spec.Monthday, h, m, afterRun)
	default:
		// Unrecognized modes behave as daily.
		return nextDaily(now, h, m, afterRun)
	}
}

func nextDaily(now time.Time, h, m int, afterRun bool) time.Time {
	cand := at(now.Year(), now.Month(), now.Day(), h, m, now.Location())
	if !cand.After(now) || afterRun {
		cand = cand.AddDate(0, 0, 1)
	}
	return cand
}

func nextWeekly(now time.Time, weekday, h, m int, afterRun bool) time.Time {
	if weekday < 1 || weekday > 7 {
		weekday = 1
	}
	cur := isoWeekday(now)
	delta := (weekday - cur + 7) % 7
	cand := at(now.Year(), now.Month(), now.Day(), h, m, now.Location()).AddDate(0, 0, delta)
	if delta == 0 && (!cand.After(now) || afterRun) {
		cand = cand.AddDate(0, 0, 7)
	}
	return cand
}

func nextMonthly(now time.Time, monthday, h, m int, afterRun bool) time.Time {
	y, mo := now.Year(), now.Month()
	cand := at(y, mo, clampDay(monthday, y, mo), h, m, now.Location())
	if !cand.After(now) || afterRun {
		mo++
		if mo > time.December {
			mo = time.January
			y++
		}
		cand = at(y, mo, clampDay(monthday, y, mo), h, m, now.Location())
	}
	return cand
}

func nextYearly(now time.Time, month, monthday, h, m int, afterRun bool) time.Time {
	if month < 1 || month > 12 {
		month = 1
	}
	mo := time.Month(month)
	y := now.Year()
	cand := at(y, mo, clampDay(monthday, y, mo), h, m, now.Location())
	if !cand.After(now) || afterRun {
		y++
		cand = at(y, mo, clampDay(monthday, y, mo), h, m, now.Location())
	}
	return cand
}

func at(y int, mo time.Month, d, h, m int, loc *time.Location) time.Time {
	return time.Date(y, mo, d, h, m, 0, 0, loc)
}

// clampDay bounds a configured day-of-month to what the month actually has,
// so day 31 in February yields February's last day.
func clampDay(day, year int, month time.Month) int {
	if day < 1 {
		day = 1
	}
	last := lastDayOfMonth(year, month)
	if day > last {
		day = last
	}
	return day
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// isoWeekday maps time.Weekday to 1=Monday..7=Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// parseTimeOfDay reads HH:MM. Malformed input yields midnight rather than an
// error: a broken time string must not stall the whole tick.
func parseTimeOfDay(s string) (hour, minute int) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0
	}
	h, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0
	}
	return h, m
}
