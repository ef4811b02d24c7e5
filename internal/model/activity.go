package model

import "time"

// Activity kinds. The activities table is an append-only ledger; every
// monetary or behavioral event is one record.
const (
	ActivityAllowance       = "allowance"
	ActivitySaving          = "saving"
	ActivityPlannedSpend    = "planned_spend"
	ActivityImpulseSpend    = "impulse_spend"
	ActivityChallengeReward = "challenge_reward"
	ActivityWeeklyBonus     = "weekly_bonus"
	ActivityPurchase        = "purchase"
)

type Activity struct {
	ID         int64     `json:"id"`
	SubjectID  int64     `json:"subject_id"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Category   string    `json:"category"`
	OccurredAt time.Time `json:"occurred_at"`
	Auto       bool      `json:"auto"` // synthesized by the auto-save policy
	RequestID  *string   `json:"request_id"`
	CreatedAt  time.Time `json:"created_at"`
}
