// Package autosave turns a percentage-of-allowance policy into automatic
// saving records and pays a weekly bonus when the policy was honored.
package autosave

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
	ErrAlreadyClaimed = errors.New("weekly bonus already claimed for that week")
	ErrNotEligible    = errors.New("weekly bonus conditions not met")
)

// WeeklyBonusAmount is the fixed currency payout for an honored week.
const WeeklyBonusAmount = 100

type Service struct {
	db         *sql.DB
	settings   *store.AutoSaveStore
	activities *store.ActivityStore
	levels     *store.LevelStore
	notifier   notify.Notifier
	logger     *slog.Logger
}

func NewService(db *sql.DB, settings *store.AutoSaveStore, activities *store.ActivityStore, levels *store.LevelStore, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, settings: settings, activities: activities, levels: levels, notifier: notifier, logger: logger}
}

func (s *Service) Get(subjectID int64) (*model.AutoSaveSetting, error) {
	return s.settings.Get(subjectID)
}

// SetPolicy writes the subject's policy, clamping percent into [0,100].
func (s *Service) SetPolicy(subjectID int64, percent int, active bool) (*model.AutoSaveSetting, error) {
	return s.settings.Upsert(subjectID, ClampPercent(percent), active)
}

// ApplyTx synthesizes the policy saving record for an allowance, inside the
// same transaction as the allowance insert. Returns the saved amount, zero
// when no active policy applies.
func (s *Service) ApplyTx(q store.Querier, subjectID, allowanceAmount int64, occurredAt time.Time, requestID *string) (int64, error) {
	setting, err := s.settings.GetTx(q, subjectID)
	if err != nil {
		return 0, err
	}
	if setting == nil || !setting.Active {
		return 0, nil
	}

	amount := SaveAmount(allowanceAmount, setting.Percent)
	if amount == 0 {
		return 0, nil
	}

	if err := s.activities.AppendTx(q, model.Activity{
		SubjectID:  subjectID,
		Kind:       model.ActivitySaving,
		Amount:     amount,
		Category:   "autosave",
		OccurredAt: occurredAt,
		Auto:       true,
		RequestID:  requestID,
	}); err != nil {
		return 0, err
	}
	return amount, nil
}

// ClaimResult describes a successful weekly bonus payout.
type ClaimResult struct {
	WeekKey      string `json:"week_key"`
	AllowanceSum int64  `json:"allowance_sum"`
	SavedSum     int64  `json:"saved_sum"`
	Bonus        int64  `json:"bonus"`
}

// ClaimWeeklyBonus pays the fixed bonus for the prior Mon-Sun week if the
// subject's policy-generated savings covered the policy percentage of that
// week's allowances. The claim row insert is the at-most-once guard and runs
// in the same transaction as the payout.
func (s *Service) ClaimWeeklyBonus(ctx context.Context, subjectID int64, today time.Time) (*ClaimResult, error) {
	setting, err := s.settings.Get(subjectID)
	if err != nil {
		return nil, err
	}
	if setting == nil || !setting.Active {
		return nil, ErrNotEligible
	}

	start, end, key := PriorWeek(today)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	affected, err := s.settings.InsertClaimTx(tx, subjectID, key)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAlreadyClaimed
	}

	allowanceSum, err := s.activities.SumWindowTx(tx, store.SumFilter{
		SubjectID: subjectID,
		Kinds:     []string{model.ActivityAllowance},
		From:      start,
		To:        end,
	})
	if err != nil {
		return nil, err
	}

	savedSum, err := s.activities.SumWindowTx(tx, store.SumFilter{
		SubjectID: subjectID,
		Kinds:     []string{model.ActivitySaving},
		AutoOnly:  true,
		From:      start,
		To:        end,
	})
	if err != nil {
		return nil, err
	}

	required := SaveAmount(allowanceSum, setting.Percent)
	if allowanceSum <= 0 || savedSum < required {
		return nil, ErrNotEligible
	}

	if err := s.activities.AppendTx(tx, model.Activity{
		SubjectID:  subjectID,
		Kind:       model.ActivityWeeklyBonus,
		Amount:     WeeklyBonusAmount,
		Category:   "bonus",
		OccurredAt: today,
	}); err != nil {
		return nil, err
	}

	if err := s.levels.AddBalanceTx(tx, subjectID, WeeklyBonusAmount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}

	s.logger.Info("weekly bonus paid", "subject_id", subjectID, "week", key, "saved", savedSum, "required", required)
	s.notifier.Notify(subjectID, "Weekly saving bonus",
		fmt.Sprintf("You kept your saving promise last week and earned %d coins!", WeeklyBonusAmount),
		model.NotifySuccess)

	return &ClaimResult{WeekKey: key, AllowanceSum: allowanceSum, SavedSum: savedSum, Bonus: WeeklyBonusAmount}, nil
}
