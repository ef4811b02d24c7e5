package model

import "time"

const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// AllowanceRule is a recurring transfer from a guardian to a dependent.
// NextRunDate is day-granular and is always strictly in the future
// immediately after a successful run.
type AllowanceRule struct {
	ID          int64     `json:"id"`
	IssuerID    int64     `json:"issuer_id"`
	RecipientID int64     `json:"recipient_id"`
	Amount      int64     `json:"amount"`
	Frequency   string    `json:"frequency"`
	DayOfWeek   int       `json:"day_of_week"`  // 0=Sunday, for weekly rules
	DayOfMonth  int       `json:"day_of_month"` // 1-31, for monthly rules
	NextRunDate time.Time `json:"next_run_date"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
