package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

type AllowanceRuleStore struct {
	db *sql.DB
}

func NewAllowanceRuleStore(db *sql.DB) *AllowanceRuleStore {
	return &AllowanceRuleStore{db: db}
}

func scanAllowanceRule(scanner interface{ Scan(...any) error }) (*model.AllowanceRule, error) {
	var r model.AllowanceRule
	var nextRun string
	var active int

	err := scanner.Scan(
		&r.ID, &r.IssuerID, &r.RecipientID, &r.Amount, &r.Frequency,
		&r.DayOfWeek, &r.DayOfMonth, &nextRun, &active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.NextRunDate, err = parseDate(nextRun)
	if err != nil {
		return nil, fmt.Errorf("parse next_run_date %q: %w", nextRun, err)
	}
	r.Active = active != 0
	return &r, nil
}

const allowanceRuleCols = `id, issuer_id, recipient_id, amount, frequency,
	day_of_week, day_of_month, next_run_date, active, created_at, updated_at`

func (s *AllowanceRuleStore) Create(r model.AllowanceRule) (*model.AllowanceRule, error) {
	var active int
	if r.Active {
		active = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO allowance_rules
		 (issuer_id, recipient_id, amount, frequency, day_of_week, day_of_month, next_run_date, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.IssuerID, r.RecipientID, r.Amount, r.Frequency,
		r.DayOfWeek, r.DayOfMonth, formatDate(r.NextRunDate), active,
	)
	if err != nil {
		return nil, fmt.Errorf("insert allowance rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AllowanceRuleStore) GetByID(id int64) (*model.AllowanceRule, error) {
	row := s.db.QueryRow(`SELECT `+allowanceRuleCols+` FROM allowance_rules WHERE id = ?`, id)
	r, err := scanAllowanceRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get allowance rule: %w", err)
	}
	return r, nil
}

func (s *AllowanceRuleStore) ListByIssuer(issuerID int64) ([]model.AllowanceRule, error) {
	return s.list(`SELECT `+allowanceRuleCols+` FROM allowance_rules WHERE issuer_id = ? ORDER BY id ASC`, issuerID)
}

func (s *AllowanceRuleStore) ListByRecipient(recipientID int64) ([]model.AllowanceRule, error) {
	return s.list(`SELECT `+allowanceRuleCols+` FROM allowance_rules WHERE recipient_id = ? ORDER BY id ASC`, recipientID)
}

// ListDue returns every active rule whose next_run_date is on or before today.
func (s *AllowanceRuleStore) ListDue(today time.Time) ([]model.AllowanceRule, error) {
	return s.list(
		`SELECT `+allowanceRuleCols+` FROM allowance_rules
		 WHERE active = 1 AND next_run_date <= ? ORDER BY id ASC`,
		formatDate(today),
	)
}

func (s *AllowanceRuleStore) list(query string, args ...any) ([]model.AllowanceRule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list allowance rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AllowanceRule
	for rows.Next() {
		r, err := scanAllowanceRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allowance rule: %w", err)
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *AllowanceRuleStore) SetActive(id int64, active bool) error {
	var a int
	if active {
		a = 1
	}
	_, err := s.db.Exec(
		`UPDATE allowance_rules SET active = ?, updated_at = datetime('now') WHERE id = ?`,
		a, id,
	)
	if err != nil {
		return fmt.Errorf("set allowance rule active: %w", err)
	}
	return nil
}

// AdvanceTx moves next_run_date from its currently observed value to next.
// The old date in the WHERE clause makes the advance a claim: a zero affected
// count means another runner already processed this rule.
func (s *AllowanceRuleStore) AdvanceTx(q Querier, id int64, observed, next time.Time) (int64, error) {
	result, err := q.Exec(
		`UPDATE allowance_rules
		 SET next_run_date = ?, updated_at = datetime('now')
		 WHERE id = ? AND active = 1 AND next_run_date = ?`,
		formatDate(next), id, formatDate(observed),
	)
	if err != nil {
		return 0, fmt.Errorf("advance allowance rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *AllowanceRuleStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM allowance_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete allowance rule: %w", err)
	}
	return nil
}
