package store

import (
	"database/sql"
	"fmt"

	"github.com/sproutfam/sprout/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var readAt sql.NullTime

	err := scanner.Scan(&n.ID, &n.SubjectID, &n.Title, &n.Body, &n.Level, &readAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return &n, nil
}

const notificationCols = `id, subject_id, title, body, level, read_at, created_at`

func (s *NotificationStore) Create(subjectID int64, title, body, level string) (*model.Notification, error) {
	result, err := s.db.Exec(
		`INSERT INTO notifications (subject_id, title, body, level) VALUES (?, ?, ?, ?)`,
		subjectID, title, body, level,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row)
}

func (s *NotificationStore) ListBySubject(subjectID int64, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications
		 WHERE subject_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		subjectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (s *NotificationStore) MarkRead(id, subjectID int64) error {
	_, err := s.db.Exec(
		`UPDATE notifications SET read_at = datetime('now') WHERE id = ? AND subject_id = ? AND read_at IS NULL`,
		id, subjectID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
