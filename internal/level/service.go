// Package level aggregates activity into experience points, derives levels
// and issues one-time rewards. The persisted watermark (last rewarded level)
// makes reward issuance idempotent.
package level

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/notify"
	"github.com/sproutfam/sprout/internal/store"
)

var (
	ErrItemNotFound        = errors.New("shop item not found")
	ErrLevelTooLow         = errors.New("level requirement not met")
	ErrInsufficientBalance = errors.New("insufficient currency balance")
	ErrAlreadyUnlocked     = errors.New("item already unlocked")
)

type Service struct {
	db         *sql.DB
	levels     *store.LevelStore
	activities *store.ActivityStore
	challenges *store.ChallengeStore
	notifier   notify.Notifier
	logger     *slog.Logger
}

func NewService(db *sql.DB, levels *store.LevelStore, activities *store.ActivityStore, challenges *store.ChallengeStore, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, levels: levels, activities: activities, challenges: challenges, notifier: notifier, logger: logger}
}

// Summary is the subject's current standing.
type Summary struct {
	XP              int64 `json:"xp"`
	Level           int   `json:"level"`
	CurrencyBalance int64 `json:"currency_balance"`
	RewardedLevel   int   `json:"rewarded_level"`
}

func (s *Service) Summarize(subjectID int64) (*Summary, error) {
	xp, err := s.xp(s.db, subjectID)
	if err != nil {
		return nil, err
	}
	state, err := s.levels.GetState(subjectID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		XP:              xp,
		Level:           Level(xp),
		CurrencyBalance: state.CurrencyBalance,
		RewardedLevel:   state.LastRewardedLevel,
	}, nil
}

// GrantResult reports what a grant issued; a zero result means the watermark
// was already current.
type GrantResult struct {
	FromLevel int      `json:"from_level"`
	ToLevel   int      `json:"to_level"`
	Currency  int64    `json:"currency"`
	Unlocked  []string `json:"unlocked"`
}

// GrantIfDue issues rewards for every level crossed since the last grant.
// Currency, unlocks and the watermark advance are one transaction, with the
// watermark written through a conditional update so concurrent grants issue
// the rewards exactly once.
func (s *Service) GrantIfDue(ctx context.Context, subjectID int64) (*GrantResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grant tx: %w", err)
	}
	defer tx.Rollback()

	state, err := s.levels.GetStateTx(tx, subjectID)
	if err != nil {
		return nil, err
	}

	xp, err := s.xp(tx, subjectID)
	if err != nil {
		return nil, err
	}

	levelNow := Level(xp)
	if levelNow <= state.LastRewardedLevel {
		return &GrantResult{FromLevel: state.LastRewardedLevel, ToLevel: state.LastRewardedLevel}, nil
	}

	currency := rewardFor(state.LastRewardedLevel, levelNow)

	affected, err := s.levels.AdvanceWatermarkTx(tx, subjectID, state.LastRewardedLevel, levelNow, currency)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// A concurrent grant advanced the watermark first; nothing to issue.
		return &GrantResult{FromLevel: state.LastRewardedLevel, ToLevel: state.LastRewardedLevel}, nil
	}

	freeItems, err := s.levels.ListFreeItemsUpToLevelTx(tx, levelNow)
	if err != nil {
		return nil, err
	}

	var unlocked []string
	for _, item := range freeItems {
		n, err := s.levels.UnlockTx(tx, subjectID, item.Code)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			unlocked = append(unlocked, item.Code)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grant tx: %w", err)
	}

	s.logger.Info("level rewards granted",
		"subject_id", subjectID, "from", state.LastRewardedLevel, "to", levelNow,
		"currency", currency, "unlocked", len(unlocked))
	s.notifier.Notify(subjectID, fmt.Sprintf("Level %d reached!", levelNow),
		fmt.Sprintf("You earned %d coins for leveling up.", currency), model.NotifySuccess)

	return &GrantResult{
		FromLevel: state.LastRewardedLevel,
		ToLevel:   levelNow,
		Currency:  currency,
		Unlocked:  unlocked,
	}, nil
}

// Purchase unlocks a priced cosmetic: level re-check, conditional balance
// decrement (the WHERE clause is the insufficient-funds guard) and the unlock
// insert, all in one transaction.
func (s *Service) Purchase(ctx context.Context, subjectID int64, itemCode string) (*model.ShopItem, error) {
	item, err := s.levels.GetItemByCode(itemCode)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purchase tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.levels.GetStateTx(tx, subjectID); err != nil {
		return nil, err
	}

	xp, err := s.xp(tx, subjectID)
	if err != nil {
		return nil, err
	}
	if Level(xp) < item.RequiredLevel {
		return nil, ErrLevelTooLow
	}

	if item.Price > 0 {
		affected, err := s.levels.SpendTx(tx, subjectID, item.Price)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, ErrInsufficientBalance
		}
	}

	affected, err := s.levels.UnlockTx(tx, subjectID, item.Code)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAlreadyUnlocked
	}

	if item.Price > 0 {
		if err := s.activities.AppendTx(tx, model.Activity{
			SubjectID:  subjectID,
			Kind:       model.ActivityPurchase,
			Amount:     item.Price,
			Category:   "shop",
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purchase tx: %w", err)
	}

	s.logger.Info("shop purchase", "subject_id", subjectID, "item", item.Code, "price", item.Price)
	return item, nil
}

func (s *Service) ListItems() ([]model.ShopItem, error) {
	return s.levels.ListItems()
}

func (s *Service) ListUnlocks(subjectID int64) ([]model.Unlock, error) {
	return s.levels.ListUnlocks(subjectID)
}

func (s *Service) xp(q store.Querier, subjectID int64) (int64, error) {
	count, err := s.activities.CountTx(q, subjectID)
	if err != nil {
		return 0, err
	}
	points, err := s.challenges.SumCompletedPointsTx(q, subjectID)
	if err != nil {
		return 0, err
	}
	return XP(count, points), nil
}
