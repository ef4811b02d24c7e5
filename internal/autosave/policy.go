package autosave

import (
	"fmt"
	"time"
)

// ClampPercent forces a requested percentage into [0,100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// SaveAmount is the policy-generated saving for an allowance: percent of the
// amount, rounded half up to a whole currency unit.
func SaveAmount(allowance int64, percent int) int64 {
	if allowance <= 0 || percent <= 0 {
		return 0
	}
	return (allowance*int64(percent) + 50) / 100
}

// WeekKey returns the ISO year-week key ("2026-W35", Mon-Sun) of t.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// PriorWeek returns the Monday-to-Sunday window of the calendar week before
// today, as [start, end) day bounds, plus its ISO week key.
func PriorWeek(today time.Time) (start, end time.Time, key string) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	// Back up to this week's Monday, then one week further.
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	monday := day.AddDate(0, 0, -offset)

	start = monday.AddDate(0, 0, -7)
	end = monday
	return start, end, WeekKey(start)
}
