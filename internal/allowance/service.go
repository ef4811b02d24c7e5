// Package allowance runs recurring guardian-to-dependent transfers. There is
// no timer process: RunDue is invoked opportunistically at application entry
// points and is cheap, idempotent and safe to call concurrently.
package allowance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sproutfam/sprout/internal/autosave"
	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/notify"
	"github.com/sproutfam/sprout/internal/store"
)

var (
	ErrRuleNotFound = errors.New("allowance rule not found")
	ErrInvalidRule  = errors.New("allowance rule is invalid")
)

type Service struct {
	db         *sql.DB
	rules      *store.AllowanceRuleStore
	activities *store.ActivityStore
	autosave   *autosave.Service
	notifier   notify.Notifier
	logger     *slog.Logger
}

func NewService(db *sql.DB, rules *store.AllowanceRuleStore, activities *store.ActivityStore, as *autosave.Service, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, rules: rules, activities: activities, autosave: as, notifier: notifier, logger: logger}
}

// CreateRule validates and persists a rule; the first run date is computed
// from today so the rule never fires same-day.
func (s *Service) CreateRule(r model.AllowanceRule, today time.Time) (*model.AllowanceRule, error) {
	if r.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRule)
	}
	switch r.Frequency {
	case model.FrequencyWeekly:
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return nil, fmt.Errorf("%w: day_of_week must be 0-6", ErrInvalidRule)
		}
	case model.FrequencyMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return nil, fmt.Errorf("%w: day_of_month must be 1-31", ErrInvalidRule)
		}
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}

	r.Active = true
	r.NextRunDate = NextRun(r, today)
	return s.rules.Create(r)
}

func (s *Service) SetActive(id int64, active bool) error {
	rule, err := s.rules.GetByID(id)
	if err != nil {
		return err
	}
	if rule == nil {
		return ErrRuleNotFound
	}
	return s.rules.SetActive(id, active)
}

// RunResult reports one best-effort batch.
type RunResult struct {
	Ran     int `json:"ran"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunDue executes every active rule due on or before today. A failure on one
// rule does not block the rest; the failed rule stays due and is retried on
// the next invocation. Concurrent runs of the same batch are safe: advancing
// next_run_date is the per-rule claim, and a rule already advanced past today
// is simply skipped.
func (s *Service) RunDue(ctx context.Context, today time.Time) (RunResult, error) {
	due, err := s.rules.ListDue(today)
	if err != nil {
		return RunResult{}, fmt.Errorf("list due rules: %w", err)
	}

	var res RunResult
	for _, rule := range due {
		claimed, err := s.runOne(ctx, rule, today)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error("allowance run failed", "rule_id", rule.ID, "error", err)
		case !claimed:
			res.Skipped++
		default:
			res.Ran++
		}
	}

	if res.Ran > 0 || res.Failed > 0 {
		s.logger.Info("allowance batch", "ran", res.Ran, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, nil
}

// RecordManual pays a one-off allowance outside any rule. The auto-save
// policy applies to it the same way it applies to scheduled transfers.
func (s *Service) RecordManual(ctx context.Context, recipientID, amount int64) (*model.Activity, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRule)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	requestID := uuid.NewString()
	now := time.Now().UTC()

	act := model.Activity{
		SubjectID:  recipientID,
		Kind:       model.ActivityAllowance,
		Amount:     amount,
		Category:   "allowance",
		OccurredAt: now,
		RequestID:  &requestID,
	}
	if err := s.activities.AppendTx(tx, act); err != nil {
		return nil, err
	}

	saved, err := s.autosave.ApplyTx(tx, recipientID, amount, now, &requestID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	body := fmt.Sprintf("You received an allowance of %d.", amount)
	if saved > 0 {
		body = fmt.Sprintf("You received an allowance of %d; %d was set aside automatically.", amount, saved)
	}
	s.notifier.Notify(recipientID, "Allowance received", body, model.NotifySuccess)

	return &act, nil
}

func (s *Service) runOne(ctx context.Context, rule model.AllowanceRule, today time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	next := NextRun(rule, today)
	affected, err := s.rules.AdvanceTx(tx, rule.ID, rule.NextRunDate, next)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Another runner claimed this rule.
		return false, nil
	}

	// Stamp the ledger with the logical run day, not the wall clock: a
	// catch-up run must land in the week it was due so weekly sums add up.
	requestID := uuid.NewString()

	if err := s.activities.AppendTx(tx, model.Activity{
		SubjectID:  rule.RecipientID,
		Kind:       model.ActivityAllowance,
		Amount:     rule.Amount,
		Category:   "allowance",
		OccurredAt: today,
		RequestID:  &requestID,
	}); err != nil {
		return false, err
	}

	saved, err := s.autosave.ApplyTx(tx, rule.RecipientID, rule.Amount, today, &requestID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	body := fmt.Sprintf("You received an allowance of %d.", rule.Amount)
	if saved > 0 {
		body = fmt.Sprintf("You received an allowance of %d; %d was set aside automatically.", rule.Amount, saved)
	}
	s.notifier.Notify(rule.RecipientID, "Allowance received", body, model.NotifySuccess)

	return true, nil
}
