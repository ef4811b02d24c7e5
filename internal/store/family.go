package store

import (
	"database/sql"
	"fmt"

	"github.com/sproutfam/sprout/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func (s *FamilyStore) Create(name string) (*model.Family, error) {
	id, err := s.createTx(s.db, name)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// CreateTx inserts a family inside a caller-owned transaction and returns
// its id.
func (s *FamilyStore) CreateTx(q Querier, name string) (int64, error) {
	return s.createTx(q, name)
}

func (s *FamilyStore) createTx(q Querier, name string) (int64, error) {
	result, err := q.Exec(`INSERT INTO families (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	var f model.Family
	err := s.db.QueryRow(
		`SELECT id, name, created_at FROM families WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return &f, nil
}
