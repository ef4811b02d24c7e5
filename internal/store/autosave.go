package store

import (
	"database/sql"
	"fmt"

	"github.com/sproutfam/sprout/internal/model"
)

type AutoSaveStore struct {
	db *sql.DB
}

func NewAutoSaveStore(db *sql.DB) *AutoSaveStore {
	return &AutoSaveStore{db: db}
}

func scanAutoSaveSetting(scanner interface{ Scan(...any) error }) (*model.AutoSaveSetting, error) {
	var st model.AutoSaveSetting
	var active int

	err := scanner.Scan(&st.SubjectID, &st.Percent, &active, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}

	st.Active = active != 0
	return &st, nil
}

const autoSaveCols = `subject_id, percent, active, updated_at`

func (s *AutoSaveStore) Get(subjectID int64) (*model.AutoSaveSetting, error) {
	return s.GetTx(s.db, subjectID)
}

func (s *AutoSaveStore) GetTx(q Querier, subjectID int64) (*model.AutoSaveSetting, error) {
	row := q.QueryRow(`SELECT `+autoSaveCols+` FROM autosave_settings WHERE subject_id = ?`, subjectID)
	st, err := scanAutoSaveSetting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get autosave setting: %w", err)
	}
	return st, nil
}

// Upsert writes the subject's policy. Percent must already be clamped into
// [0,100] by the caller; the table's CHECK constraint is the backstop.
func (s *AutoSaveStore) Upsert(subjectID int64, percent int, active bool) (*model.AutoSaveSetting, error) {
	var a int
	if active {
		a = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO autosave_settings (subject_id, percent, active)
		 VALUES (?, ?, ?)
		 ON CONFLICT (subject_id) DO UPDATE
		 SET percent = excluded.percent, active = excluded.active, updated_at = datetime('now')`,
		subjectID, percent, a,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert autosave setting: %w", err)
	}
	return s.Get(subjectID)
}

// InsertClaimTx records a weekly bonus payout. The UNIQUE(subject_id,
// week_key) index is the at-most-once guard: an affected count of zero means
// the week was already claimed.
func (s *AutoSaveStore) InsertClaimTx(q Querier, subjectID int64, weekKey string) (int64, error) {
	result, err := q.Exec(
		`INSERT OR IGNORE INTO weekly_claims (subject_id, week_key) VALUES (?, ?)`,
		subjectID, weekKey,
	)
	if err != nil {
		return 0, fmt.Errorf("insert weekly claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *AutoSaveStore) HasClaim(subjectID int64, weekKey string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM weekly_claims WHERE subject_id = ? AND week_key = ?`,
		subjectID, weekKey,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check weekly claim: %w", err)
	}
	return n > 0, nil
}
