package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

type InviteCodeStore struct {
	db *sql.DB
}

func NewInviteCodeStore(db *sql.DB) *InviteCodeStore {
	return &InviteCodeStore{db: db}
}

func scanInviteCode(scanner interface{ Scan(...any) error }) (*model.InviteCode, error) {
	var c model.InviteCode
	var usedBy sql.NullInt64
	var usedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.Code, &c.IssuerID, &c.ExpiresAt, &usedBy, &usedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if usedBy.Valid {
		c.UsedBy = &usedBy.Int64
	}
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return &c, nil
}

const inviteCols = `id, code, issuer_id, expires_at, used_by, used_at, created_at`

func (s *InviteCodeStore) Create(code string, issuerID int64, expiresAt time.Time) (*model.InviteCode, error) {
	result, err := s.db.Exec(
		`INSERT INTO invite_codes (code, issuer_id, expires_at) VALUES (?, ?, ?)`,
		code, issuerID, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invite_codes WHERE id = ?`, id)
	return scanInviteCode(row)
}

// GetLive returns the invite code if it is unconsumed and unexpired,
// or nil if no such code exists.
func (s *InviteCodeStore) GetLive(code string) (*model.InviteCode, error) {
	row := s.db.QueryRow(
		`SELECT `+inviteCols+` FROM invite_codes
		 WHERE code = ? AND used_by IS NULL AND expires_at > datetime('now')`,
		code,
	)
	c, err := scanInviteCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get live invite code: %w", err)
	}
	return c, nil
}

func (s *InviteCodeStore) GetByCode(code string) (*model.InviteCode, error) {
	return s.GetByCodeTx(s.db, code)
}

func (s *InviteCodeStore) GetByCodeTx(q Querier, code string) (*model.InviteCode, error) {
	row := q.QueryRow(`SELECT `+inviteCols+` FROM invite_codes WHERE code = ?`, code)
	c, err := scanInviteCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite code: %w", err)
	}
	return c, nil
}

// ExistsLive reports whether an unconsumed, unexpired code with this value
// already exists. Used to avoid collisions when issuing.
func (s *InviteCodeStore) ExistsLive(code string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM invite_codes
		 WHERE code = ? AND used_by IS NULL AND expires_at > datetime('now')`,
		code,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check invite code: %w", err)
	}
	return n > 0, nil
}

// ConsumeTx marks the code consumed by the dependent. The WHERE clause is the
// concurrency guard: it only matches an unconsumed, unexpired row, so of two
// racing transactions exactly one sees an affected count of 1.
func (s *InviteCodeStore) ConsumeTx(q Querier, code string, dependentID int64) (int64, error) {
	result, err := q.Exec(
		`UPDATE invite_codes
		 SET used_by = ?, used_at = datetime('now')
		 WHERE code = ? AND used_by IS NULL AND expires_at > datetime('now')`,
		dependentID, code,
	)
	if err != nil {
		return 0, fmt.Errorf("consume invite code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *InviteCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM invite_codes WHERE used_by IS NULL AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired invite codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
