package store

import (
	"database/sql"
	"fmt"

	"github.com/sproutfam/sprout/internal/model"
)

type LevelStore struct {
	db *sql.DB
}

func NewLevelStore(db *sql.DB) *LevelStore {
	return &LevelStore{db: db}
}

const levelStateCols = `subject_id, last_rewarded_level, currency_balance, updated_at`

func scanLevelState(scanner interface{ Scan(...any) error }) (*model.LevelState, error) {
	var st model.LevelState
	err := scanner.Scan(&st.SubjectID, &st.LastRewardedLevel, &st.CurrencyBalance, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetState returns the subject's level state, creating the default row
// (nothing rewarded yet, zero balance) on first access. The zero watermark
// makes the first grant pay out level 1 itself.
func (s *LevelStore) GetState(subjectID int64) (*model.LevelState, error) {
	return s.GetStateTx(s.db, subjectID)
}

func (s *LevelStore) GetStateTx(q Querier, subjectID int64) (*model.LevelState, error) {
	if _, err := q.Exec(
		`INSERT OR IGNORE INTO level_states (subject_id) VALUES (?)`, subjectID,
	); err != nil {
		return nil, fmt.Errorf("ensure level state: %w", err)
	}

	row := q.QueryRow(`SELECT `+levelStateCols+` FROM level_states WHERE subject_id = ?`, subjectID)
	st, err := scanLevelState(row)
	if err != nil {
		return nil, fmt.Errorf("get level state: %w", err)
	}
	return st, nil
}

// AdvanceWatermarkTx credits currency and raises last_rewarded_level in one
// conditional write. The observed watermark in the WHERE clause guards against
// a concurrent grant: zero affected rows means the other caller already paid.
func (s *LevelStore) AdvanceWatermarkTx(q Querier, subjectID int64, observedLevel, newLevel int, currency int64) (int64, error) {
	result, err := q.Exec(
		`UPDATE level_states
		 SET last_rewarded_level = ?, currency_balance = currency_balance + ?, updated_at = datetime('now')
		 WHERE subject_id = ? AND last_rewarded_level = ?`,
		newLevel, currency, subjectID, observedLevel,
	)
	if err != nil {
		return 0, fmt.Errorf("advance watermark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// AddBalanceTx credits currency without touching the watermark (challenge
// rewards, weekly bonuses).
func (s *LevelStore) AddBalanceTx(q Querier, subjectID int64, amount int64) error {
	if _, err := q.Exec(
		`INSERT OR IGNORE INTO level_states (subject_id) VALUES (?)`, subjectID,
	); err != nil {
		return fmt.Errorf("ensure level state: %w", err)
	}
	_, err := q.Exec(
		`UPDATE level_states
		 SET currency_balance = currency_balance + ?, updated_at = datetime('now')
		 WHERE subject_id = ?`,
		amount, subjectID,
	)
	if err != nil {
		return fmt.Errorf("add balance: %w", err)
	}
	return nil
}

// SpendTx conditionally decrements the balance. The balance check lives in
// the WHERE clause; zero affected rows means insufficient funds (or a lost
// race) and no decrement happened.
func (s *LevelStore) SpendTx(q Querier, subjectID int64, amount int64) (int64, error) {
	result, err := q.Exec(
		`UPDATE level_states
		 SET currency_balance = currency_balance - ?, updated_at = datetime('now')
		 WHERE subject_id = ? AND currency_balance >= ?`,
		amount, subjectID, amount,
	)
	if err != nil {
		return 0, fmt.Errorf("spend balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// --- Shop items and unlocks ---

const shopItemCols = `id, code, title, price, required_level, created_at`

func scanShopItem(scanner interface{ Scan(...any) error }) (*model.ShopItem, error) {
	var it model.ShopItem
	err := scanner.Scan(&it.ID, &it.Code, &it.Title, &it.Price, &it.RequiredLevel, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *LevelStore) GetItemByCode(code string) (*model.ShopItem, error) {
	row := s.db.QueryRow(`SELECT `+shopItemCols+` FROM shop_items WHERE code = ?`, code)
	it, err := scanShopItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shop item: %w", err)
	}
	return it, nil
}

func (s *LevelStore) ListItems() ([]model.ShopItem, error) {
	rows, err := s.db.Query(`SELECT ` + shopItemCols + ` FROM shop_items ORDER BY required_level ASC, price ASC`)
	if err != nil {
		return nil, fmt.Errorf("list shop items: %w", err)
	}
	defer rows.Close()

	var items []model.ShopItem
	for rows.Next() {
		it, err := scanShopItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ListFreeItemsUpToLevel returns free items whose required level is at or
// below the given level.
func (s *LevelStore) ListFreeItemsUpToLevel(level int) ([]model.ShopItem, error) {
	return s.ListFreeItemsUpToLevelTx(s.db, level)
}

func (s *LevelStore) ListFreeItemsUpToLevelTx(q Querier, level int) ([]model.ShopItem, error) {
	rows, err := q.Query(
		`SELECT `+shopItemCols+` FROM shop_items WHERE price = 0 AND required_level <= ? ORDER BY required_level ASC`,
		level,
	)
	if err != nil {
		return nil, fmt.Errorf("list free shop items: %w", err)
	}
	defer rows.Close()

	var items []model.ShopItem
	for rows.Next() {
		it, err := scanShopItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// UnlockTx grants the item. Already-unlocked pairs are ignored; the affected
// count reports whether a new unlock happened.
func (s *LevelStore) UnlockTx(q Querier, subjectID int64, itemCode string) (int64, error) {
	result, err := q.Exec(
		`INSERT OR IGNORE INTO unlocks (subject_id, item_code) VALUES (?, ?)`,
		subjectID, itemCode,
	)
	if err != nil {
		return 0, fmt.Errorf("insert unlock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *LevelStore) ListUnlocks(subjectID int64) ([]model.Unlock, error) {
	rows, err := s.db.Query(
		`SELECT subject_id, item_code, unlocked_at FROM unlocks WHERE subject_id = ? ORDER BY unlocked_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []model.Unlock
	for rows.Next() {
		var u model.Unlock
		if err := rows.Scan(&u.SubjectID, &u.ItemCode, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}
