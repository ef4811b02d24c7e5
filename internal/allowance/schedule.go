package allowance

import (
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

// NextRun computes the first run date strictly after today.
//
// Weekly rules advance to the next occurrence of DayOfWeek, wrapping a full
// seven days when today already is that weekday. Monthly rules clamp
// DayOfMonth to the length of the target month (Feb 30 -> Feb 28) and roll to
// the following month when the clamped date is not strictly after today.
func NextRun(rule model.AllowanceRule, today time.Time) time.Time {
	today = startOfDay(today)

	switch rule.Frequency {
	case model.FrequencyMonthly:
		return nextMonthly(rule.DayOfMonth, today)
	default:
		return nextWeekly(time.Weekday(rule.DayOfWeek), today)
	}
}

func nextWeekly(day time.Weekday, today time.Time) time.Time {
	delta := (int(day) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

func nextMonthly(dayOfMonth int, today time.Time) time.Time {
	candidate := clampToMonth(today.Year(), today.Month(), dayOfMonth, today.Location())
	if candidate.After(today) {
		return candidate
	}

	next := today.AddDate(0, 0, -today.Day()+1).AddDate(0, 1, 0)
	return clampToMonth(next.Year(), next.Month(), dayOfMonth, today.Location())
}

func clampToMonth(year int, month time.Month, day int, loc *time.Location) time.Time {
	if day < 1 {
		day = 1
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
