package store

import (
	"database/sql"
	"fmt"

	"github.com/sproutfam/sprout/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var familyID sql.NullInt64

	err := scanner.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &familyID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		u.FamilyID = &familyID.Int64
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, role, family_id, created_at, updated_at`

func (s *UserStore) Create(email, name, passwordHash, role string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, name, password_hash, role) VALUES (?, ?, ?, ?)`,
		email, name, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByIDTx reads a user inside a caller-owned transaction.
func (s *UserStore) GetByIDTx(q Querier, id int64) (*model.User, error) {
	row := q.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetFamilyTx assigns the user to a family inside a caller-owned transaction.
func (s *UserStore) SetFamilyTx(q Querier, userID, familyID int64) error {
	_, err := q.Exec(
		`UPDATE users SET family_id = ?, updated_at = datetime('now') WHERE id = ?`,
		familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("set family: %w", err)
	}
	return nil
}

func (s *UserStore) ListByFamily(familyID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE family_id = ? ORDER BY role ASC, name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list users by family: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
