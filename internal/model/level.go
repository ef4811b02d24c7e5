package model

import "time"

// LevelState is the per-subject reward ledger watermark. LastRewardedLevel is
// the highest level whose rewards were already issued; it never decreases.
type LevelState struct {
	SubjectID         int64     `json:"subject_id"`
	LastRewardedLevel int       `json:"last_rewarded_level"`
	CurrencyBalance   int64     `json:"currency_balance"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ShopItem is a cosmetic unlock. Price 0 means the item is granted
// automatically once RequiredLevel is reached.
type ShopItem struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Title         string    `json:"title"`
	Price         int64     `json:"price"`
	RequiredLevel int       `json:"required_level"`
	CreatedAt     time.Time `json:"created_at"`
}

type Unlock struct {
	SubjectID  int64     `json:"subject_id"`
	ItemCode   string    `json:"item_code"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
