package model

import "time"

// InviteCode links a dependent account into a guardian's family. A code is
// consumed at most once; consumption after expiry is rejected.
type InviteCode struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	IssuerID  int64      `json:"issuer_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedBy    *int64     `json:"used_by"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c *InviteCode) Consumed() bool {
	return c.UsedBy != nil
}
