package model

import "time"

const (
	NotifyInfo    = "info"
	NotifySuccess = "success"
	NotifyWarn    = "warn"
)

type Notification struct {
	ID        int64      `json:"id"`
	SubjectID int64      `json:"subject_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Level     string     `json:"level"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}
