package model

import "time"

// AutoSaveSetting converts a percentage of every allowance into an automatic
// saving record. Percent is always clamped into [0,100] on write.
type AutoSaveSetting struct {
	SubjectID int64     `json:"subject_id"`
	Percent   int       `json:"percent"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WeeklyClaim marks a paid weekly bonus. WeekKey is an ISO year-week key
// ("2026-W35", Mon-Sun); existence means the bonus for that week was paid.
type WeeklyClaim struct {
	ID        int64     `json:"id"`
	SubjectID int64     `json:"subject_id"`
	WeekKey   string    `json:"week_key"`
	ClaimedAt time.Time `json:"claimed_at"`
}
