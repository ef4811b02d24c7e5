package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var auto int
	var requestID sql.NullString

	err := scanner.Scan(
		&a.ID, &a.SubjectID, &a.Kind, &a.Amount, &a.Category,
		&a.OccurredAt, &auto, &requestID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Auto = auto != 0
	if requestID.Valid {
		a.RequestID = &requestID.String
	}
	return &a, nil
}

const activityCols = `id, subject_id, kind, amount, category, occurred_at, auto, request_id, created_at`

func (s *ActivityStore) Append(a model.Activity) (*model.Activity, error) {
	id, err := s.appendTx(s.db, a)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(`SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	return scanActivity(row)
}

// AppendTx appends a record inside a caller-owned transaction.
func (s *ActivityStore) AppendTx(q Querier, a model.Activity) error {
	_, err := s.appendTx(q, a)
	return err
}

func (s *ActivityStore) appendTx(q Querier, a model.Activity) (int64, error) {
	var auto int
	if a.Auto {
		auto = 1
	}
	var requestID sql.NullString
	if a.RequestID != nil {
		requestID = sql.NullString{String: *a.RequestID, Valid: true}
	}
	occurredAt := a.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	result, err := q.Exec(
		`INSERT INTO activities (subject_id, kind, amount, category, occurred_at, auto, request_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.SubjectID, a.Kind, a.Amount, a.Category, occurredAt, auto, requestID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListBySubject returns the subject's records with occurred_at in [from, to),
// newest first. An empty kind matches all kinds.
func (s *ActivityStore) ListBySubject(subjectID int64, kind string, from, to time.Time) ([]model.Activity, error) {
	query := `SELECT ` + activityCols + ` FROM activities
		WHERE subject_id = ? AND occurred_at >= ? AND occurred_at < ?`
	args := []any{subjectID, from, to}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY occurred_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// SumWindow sums amounts for the subject over [from, to) restricted to the
// given kinds. Category narrows the sum when non-empty; autoOnly restricts to
// policy-generated records.
type SumFilter struct {
	SubjectID int64
	Kinds     []string
	Category  string
	AutoOnly  bool
	From      time.Time
	To        time.Time
}

func (s *ActivityStore) SumWindow(f SumFilter) (int64, error) {
	return s.SumWindowTx(s.db, f)
}

func (s *ActivityStore) SumWindowTx(q Querier, f SumFilter) (int64, error) {
	if len(f.Kinds) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Kinds)), ", ")
	query := `SELECT COALESCE(SUM(amount), 0) FROM activities
		WHERE subject_id = ? AND kind IN (` + placeholders + `) AND occurred_at >= ? AND occurred_at < ?`
	args := []any{f.SubjectID}
	for _, k := range f.Kinds {
		args = append(args, k)
	}
	args = append(args, f.From, f.To)

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.AutoOnly {
		query += ` AND auto = 1`
	}

	var total int64
	if err := q.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum activities: %w", err)
	}
	return total, nil
}

// DailyTotals returns per-day amount sums for the subject and kind over
// [from, to), keyed by date in YYYY-MM-DD form. Days with no records are
// absent from the map.
func (s *ActivityStore) DailyTotals(subjectID int64, kind string, from, to time.Time) (map[string]int64, error) {
	// occurred_at text starts with the YYYY-MM-DD day regardless of the
	// driver's time format, so key on the prefix rather than date().
	rows, err := s.db.Query(
		`SELECT substr(occurred_at, 1, 10), COALESCE(SUM(amount), 0)
		 FROM activities
		 WHERE subject_id = ? AND kind = ? AND occurred_at >= ? AND occurred_at < ?
		 GROUP BY substr(occurred_at, 1, 10)`,
		subjectID, kind, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var day string
		var sum int64
		if err := rows.Scan(&day, &sum); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		totals[day] = sum
	}
	return totals, rows.Err()
}

// Count returns the subject's total record count, one input of the XP
// function.
func (s *ActivityStore) Count(subjectID int64) (int64, error) {
	return s.CountTx(s.db, subjectID)
}

func (s *ActivityStore) CountTx(q Querier, subjectID int64) (int64, error) {
	var n int64
	err := q.QueryRow(`SELECT COUNT(1) FROM activities WHERE subject_id = ?`, subjectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}
