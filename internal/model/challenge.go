package model

import "time"

const (
	ChallengeActive    = "active"
	ChallengeCompleted = "completed"
	ChallengeFailed    = "failed"
	ChallengeCancelled = "cancelled"
)

// ChallengeTemplate is immutable once created. FamilyID is nil for global
// templates visible to every family.
type ChallengeTemplate struct {
	ID             int64     `json:"id"`
	FamilyID       *int64    `json:"family_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	ParamsJSON     string    `json:"-"`
	RewardCurrency int64     `json:"reward_currency"`
	RewardPoints   int       `json:"reward_points"`
	DurationDays   int       `json:"duration_days"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChallengeInstance is one participant's run of a template over the window
// [StartDate, EndDate]. Once non-active the status never reverts.
type ChallengeInstance struct {
	ID            int64      `json:"id"`
	TemplateID    int64      `json:"template_id"`
	ParticipantID int64      `json:"participant_id"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ChallengeCheckin is a habit-challenge check-in; at most one per
// (instance, date).
type ChallengeCheckin struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instance_id"`
	Date       time.Time `json:"date"`
	Value      int64     `json:"value"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
}
