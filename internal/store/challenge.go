package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

// --- Template methods ---

func scanChallengeTemplate(scanner interface{ Scan(...any) error }) (*model.ChallengeTemplate, error) {
	var t model.ChallengeTemplate
	var familyID sql.NullInt64

	err := scanner.Scan(
		&t.ID, &familyID, &t.Title, &t.Description, &t.Type, &t.ParamsJSON,
		&t.RewardCurrency, &t.RewardPoints, &t.DurationDays, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		t.FamilyID = &familyID.Int64
	}
	return &t, nil
}

const challengeTemplateCols = `id, family_id, title, description, challenge_type,
	params_json, reward_currency, reward_points, duration_days, created_at`

func (s *ChallengeStore) CreateTemplate(t model.ChallengeTemplate) (*model.ChallengeTemplate, error) {
	var familyID sql.NullInt64
	if t.FamilyID != nil {
		familyID = sql.NullInt64{Int64: *t.FamilyID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO challenge_templates
		 (family_id, title, description, challenge_type, params_json, reward_currency, reward_points, duration_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		familyID, t.Title, t.Description, t.Type, t.ParamsJSON,
		t.RewardCurrency, t.RewardPoints, t.DurationDays,
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTemplate(id)
}

func (s *ChallengeStore) GetTemplate(id int64) (*model.ChallengeTemplate, error) {
	row := s.db.QueryRow(`SELECT `+challengeTemplateCols+` FROM challenge_templates WHERE id = ?`, id)
	t, err := scanChallengeTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge template: %w", err)
	}
	return t, nil
}

// ListTemplates returns global templates plus the family's own, global first.
func (s *ChallengeStore) ListTemplates(familyID int64) ([]model.ChallengeTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+challengeTemplateCols+` FROM challenge_templates
		 WHERE family_id IS NULL OR family_id = ?
		 ORDER BY family_id IS NOT NULL, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenge templates: %w", err)
	}
	defer rows.Close()

	var templates []model.ChallengeTemplate
	for rows.Next() {
		t, err := scanChallengeTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// --- Instance methods ---

func scanChallengeInstance(scanner interface{ Scan(...any) error }) (*model.ChallengeInstance, error) {
	var in model.ChallengeInstance
	var startDate, endDate string
	var completedAt sql.NullTime

	err := scanner.Scan(
		&in.ID, &in.TemplateID, &in.ParticipantID, &startDate, &endDate,
		&in.Status, &completedAt, &in.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if in.StartDate, err = parseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse start_date %q: %w", startDate, err)
	}
	if in.EndDate, err = parseDate(endDate); err != nil {
		return nil, fmt.Errorf("parse end_date %q: %w", endDate, err)
	}
	if completedAt.Valid {
		in.CompletedAt = &completedAt.Time
	}
	return &in, nil
}

const challengeInstanceCols = `id, template_id, participant_id, start_date, end_date, status, completed_at, created_at`

func (s *ChallengeStore) CreateInstance(templateID, participantID int64, startDate, endDate time.Time) (*model.ChallengeInstance, error) {
	result, err := s.db.Exec(
		`INSERT INTO challenge_instances (template_id, participant_id, start_date, end_date)
		 VALUES (?, ?, ?, ?)`,
		templateID, participantID, formatDate(startDate), formatDate(endDate),
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetInstance(id)
}

func (s *ChallengeStore) GetInstance(id int64) (*model.ChallengeInstance, error) {
	row := s.db.QueryRow(`SELECT `+challengeInstanceCols+` FROM challenge_instances WHERE id = ?`, id)
	in, err := scanChallengeInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge instance: %w", err)
	}
	return in, nil
}

func (s *ChallengeStore) ListByParticipant(participantID int64, statuses ...string) ([]model.ChallengeInstance, error) {
	query := `SELECT ` + challengeInstanceCols + ` FROM challenge_instances WHERE participant_id = ?`
	args := []any{participantID}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
		query += ` AND status IN (` + placeholders + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY id DESC`
	return s.listInstances(query, args...)
}

// ListFinalizable returns active instances whose window closed strictly
// before today.
func (s *ChallengeStore) ListFinalizable(today time.Time) ([]model.ChallengeInstance, error) {
	return s.listInstances(
		`SELECT `+challengeInstanceCols+` FROM challenge_instances
		 WHERE status = 'active' AND end_date < ? ORDER BY id ASC`,
		formatDate(today),
	)
}

func (s *ChallengeStore) listInstances(query string, args ...any) ([]model.ChallengeInstance, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list challenge instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChallengeInstance
	for rows.Next() {
		in, err := scanChallengeInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge instance: %w", err)
		}
		instances = append(instances, *in)
	}
	return instances, rows.Err()
}

// TransitionTx flips an active instance to the given status. The status guard
// in the WHERE clause makes the flip atomic: of two racing finalize calls only
// one sees an affected count of 1, and only that caller pays out.
func (s *ChallengeStore) TransitionTx(q Querier, id int64, to string) (int64, error) {
	var completedAt any
	if to == model.ChallengeCompleted {
		completedAt = time.Now().UTC()
	}

	result, err := q.Exec(
		`UPDATE challenge_instances SET status = ?, completed_at = ?
		 WHERE id = ? AND status = 'active'`,
		to, completedAt, id,
	)
	if err != nil {
		return 0, fmt.Errorf("transition challenge instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// --- Check-in methods ---

func scanCheckin(scanner interface{ Scan(...any) error }) (*model.ChallengeCheckin, error) {
	var c model.ChallengeCheckin
	var date string

	err := scanner.Scan(&c.ID, &c.InstanceID, &date, &c.Value, &c.Note, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if c.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parse checkin_date %q: %w", date, err)
	}
	return &c, nil
}

const checkinCols = `id, instance_id, checkin_date, value, note, created_at`

// CreateCheckin records a check-in for the day. The UNIQUE(instance_id,
// checkin_date) constraint enforces at most one per day; a constraint
// violation surfaces as an error for the caller to map.
func (s *ChallengeStore) CreateCheckin(instanceID int64, date time.Time, value int64, note string) (*model.ChallengeCheckin, error) {
	result, err := s.db.Exec(
		`INSERT INTO challenge_checkins (instance_id, checkin_date, value, note) VALUES (?, ?, ?, ?)`,
		instanceID, formatDate(date), value, note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert checkin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+checkinCols+` FROM challenge_checkins WHERE id = ?`, id)
	return scanCheckin(row)
}

func (s *ChallengeStore) ListCheckins(instanceID int64) ([]model.ChallengeCheckin, error) {
	rows, err := s.db.Query(
		`SELECT `+checkinCols+` FROM challenge_checkins WHERE instance_id = ? ORDER BY checkin_date ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()

	var checkins []model.ChallengeCheckin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		checkins = append(checkins, *c)
	}
	return checkins, rows.Err()
}

// CountCheckins counts distinct check-in dates within [from, to] inclusive.
func (s *ChallengeStore) CountCheckins(instanceID int64, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT checkin_date) FROM challenge_checkins
		 WHERE instance_id = ? AND checkin_date >= ? AND checkin_date <= ?`,
		instanceID, formatDate(from), formatDate(to),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count checkins: %w", err)
	}
	return n, nil
}

// SumCompletedPoints sums reward points over the subject's completed
// instances, the mission input of the XP function.
func (s *ChallengeStore) SumCompletedPoints(subjectID int64) (int64, error) {
	return s.SumCompletedPointsTx(s.db, subjectID)
}

func (s *ChallengeStore) SumCompletedPointsTx(q Querier, subjectID int64) (int64, error) {
	var total int64
	err := q.QueryRow(
		`SELECT COALESCE(SUM(t.reward_points), 0)
		 FROM challenge_instances i
		 JOIN challenge_templates t ON t.id = i.template_id
		 WHERE i.participant_id = ? AND i.status = 'completed'`,
		subjectID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum completed points: %w", err)
	}
	return total, nil
}
