// Package challenge manages savings and spending challenges: templates,
// running instances, type-specific progress evaluation and one-shot
// finalization after the window closes.
package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/notify"
	"github.com/sproutfam/sprout/internal/store"
)

var (
	ErrTemplateNotFound = errors.New("challenge template not found")
	ErrInstanceNotFound = errors.New("challenge instance not found")
	ErrNotActive        = errors.New("challenge instance is not active")
	ErrNotHabit         = errors.New("check-ins only apply to habit challenges")
	ErrOutsideWindow    = errors.New("date is outside the challenge window")
	ErrDuplicateCheckin = errors.New("already checked in for that date")
)

type Service struct {
	db         *sql.DB
	challenges *store.ChallengeStore
	activities *store.ActivityStore
	levels     *store.LevelStore
	notifier   notify.Notifier
	logger     *slog.Logger
}

func NewService(db *sql.DB, challenges *store.ChallengeStore, activities *store.ActivityStore, levels *store.LevelStore, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, challenges: challenges, activities: activities, levels: levels, notifier: notifier, logger: logger}
}

// CreateTemplate validates the typed parameters before persisting; malformed
// parameter sets are rejected at the door so evaluators never see them.
func (s *Service) CreateTemplate(t model.ChallengeTemplate) (*model.ChallengeTemplate, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, errors.New("title is required")
	}
	if t.DurationDays <= 0 {
		return nil, errors.New("duration_days must be positive")
	}
	if _, err := ParseParams(t.Type, t.ParamsJSON); err != nil {
		return nil, err
	}
	return s.challenges.CreateTemplate(t)
}

func (s *Service) ListTemplates(familyID int64) ([]model.ChallengeTemplate, error) {
	return s.challenges.ListTemplates(familyID)
}

// Start opens an instance over [today, today+duration-1].
func (s *Service) Start(templateID, participantID int64, today time.Time) (*model.ChallengeInstance, error) {
	tpl, err := s.challenges.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}

	start := startOfDay(today)
	end := start.AddDate(0, 0, tpl.DurationDays-1)
	return s.challenges.CreateInstance(templateID, participantID, start, end)
}

func (s *Service) Get(instanceID int64) (*model.ChallengeInstance, error) {
	return s.challenges.GetInstance(instanceID)
}

func (s *Service) ListByParticipant(participantID int64) ([]model.ChallengeInstance, error) {
	return s.challenges.ListByParticipant(participantID)
}

// CheckIn records a habit check-in for the date; at most one per day.
func (s *Service) CheckIn(instanceID int64, date time.Time, value int64, note string) (*model.ChallengeCheckin, error) {
	inst, err := s.challenges.GetInstance(instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrInstanceNotFound
	}
	if inst.Status != model.ChallengeActive {
		return nil, ErrNotActive
	}

	tpl, err := s.challenges.GetTemplate(inst.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil || tpl.Type != TypeHabitCustom {
		return nil, ErrNotHabit
	}

	day := startOfDay(date)
	if day.Before(inst.StartDate) || day.After(inst.EndDate) {
		return nil, ErrOutsideWindow
	}

	checkin, err := s.challenges.CreateCheckin(instanceID, day, value, note)
	if err != nil {
		// The unique (instance, date) index is the duplicate guard.
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateCheckin
		}
		return nil, err
	}
	return checkin, nil
}

// Progress evaluates the instance's live progress as of today.
func (s *Service) Progress(instanceID int64, today time.Time) (*model.ChallengeInstance, Result, error) {
	inst, err := s.challenges.GetInstance(instanceID)
	if err != nil {
		return nil, Result{}, err
	}
	if inst == nil {
		return nil, Result{}, ErrInstanceNotFound
	}

	res, err := s.evaluate(inst, today)
	if err != nil {
		return nil, Result{}, err
	}
	return inst, res, nil
}

// Cancel flips an active instance to cancelled. Finalized or already
// cancelled instances are returned unchanged.
func (s *Service) Cancel(instanceID int64) (*model.ChallengeInstance, error) {
	inst, err := s.challenges.GetInstance(instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrInstanceNotFound
	}
	if inst.Status != model.ChallengeActive {
		return inst, nil
	}

	if _, err := s.challenges.TransitionTx(s.db, instanceID, model.ChallengeCancelled); err != nil {
		return nil, err
	}
	return s.challenges.GetInstance(instanceID)
}

// Finalize settles an instance once its window has closed. It is idempotent:
// non-active instances, open windows and undecided evaluations all return the
// instance unchanged. The conditional status flip is the concurrency guard;
// only the transaction that wins the flip pays out.
func (s *Service) Finalize(ctx context.Context, instanceID int64, today time.Time) (*model.ChallengeInstance, error) {
	inst, err := s.challenges.GetInstance(instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrInstanceNotFound
	}
	if inst.Status != model.ChallengeActive {
		return inst, nil
	}
	if !startOfDay(today).After(inst.EndDate) {
		return inst, nil
	}

	res, err := s.evaluate(inst, today)
	if err != nil {
		return nil, err
	}
	if !res.Decided {
		return inst, nil
	}

	tpl, err := s.challenges.GetTemplate(inst.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}

	newStatus := model.ChallengeFailed
	if res.Success {
		newStatus = model.ChallengeCompleted
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	affected, err := s.challenges.TransitionTx(tx, instanceID, newStatus)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Another finalize call won; read back their result.
		tx.Rollback()
		return s.challenges.GetInstance(instanceID)
	}

	if res.Success {
		if tpl.RewardCurrency > 0 {
			if err := s.activities.AppendTx(tx, model.Activity{
				SubjectID:  inst.ParticipantID,
				Kind:       model.ActivityChallengeReward,
				Amount:     tpl.RewardCurrency,
				Category:   "challenge",
				OccurredAt: today,
			}); err != nil {
				return nil, err
			}
			if err := s.levels.AddBalanceTx(tx, inst.ParticipantID, tpl.RewardCurrency); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit finalize tx: %w", err)
	}

	if res.Success {
		s.notifier.Notify(inst.ParticipantID, "Challenge completed!",
			fmt.Sprintf("You finished %q and earned %d coins.", tpl.Title, tpl.RewardCurrency),
			model.NotifySuccess)
	} else {
		s.notifier.Notify(inst.ParticipantID, "Challenge over",
			fmt.Sprintf("%q did not work out this time. Try again!", tpl.Title),
			model.NotifyInfo)
	}

	s.logger.Info("challenge finalized", "instance_id", instanceID, "status", newStatus)
	return s.challenges.GetInstance(instanceID)
}

// FinalizeDue sweeps every active instance whose window closed before today.
// Per-instance failures are logged and skipped so one bad instance cannot
// stall the batch.
func (s *Service) FinalizeDue(ctx context.Context, today time.Time) (int, error) {
	due, err := s.challenges.ListFinalizable(today)
	if err != nil {
		return 0, fmt.Errorf("list finalizable: %w", err)
	}

	finalized := 0
	for _, inst := range due {
		updated, err := s.Finalize(ctx, inst.ID, today)
		if err != nil {
			s.logger.Error("finalize failed", "instance_id", inst.ID, "error", err)
			continue
		}
		if updated.Status != model.ChallengeActive {
			finalized++
		}
	}
	return finalized, nil
}

// evaluate gathers the type-specific facts and runs the evaluator. Malformed
// stored parameters degrade to a neutral result.
func (s *Service) evaluate(inst *model.ChallengeInstance, today time.Time) (Result, error) {
	tpl, err := s.challenges.GetTemplate(inst.TemplateID)
	if err != nil {
		return Result{}, err
	}
	if tpl == nil {
		return Result{}, ErrTemplateNotFound
	}

	params, err := ParseParams(tpl.Type, tpl.ParamsJSON)
	if err != nil {
		s.logger.Warn("malformed challenge params", "template_id", tpl.ID, "type", tpl.Type, "error", err)
		return Result{}, nil
	}

	facts, err := s.gatherFacts(params, inst)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(params, *inst, facts, today), nil
}

func (s *Service) gatherFacts(params Params, inst *model.ChallengeInstance) (Facts, error) {
	windowFrom := inst.StartDate
	windowTo := inst.EndDate.AddDate(0, 0, 1) // exclusive bound

	var facts Facts
	switch p := params.(type) {
	case *SpendCapParams:
		spent, err := s.activities.SumWindow(store.SumFilter{
			SubjectID: inst.ParticipantID,
			Kinds:     []string{model.ActivityPlannedSpend, model.ActivityImpulseSpend},
			Category:  p.Category,
			From:      windowFrom,
			To:        windowTo,
		})
		if err != nil {
			return Facts{}, err
		}
		facts.Spent = spent

	case *ReduceCategoryParams:
		spent, err := s.activities.SumWindow(store.SumFilter{
			SubjectID: inst.ParticipantID,
			Kinds:     []string{model.ActivityPlannedSpend, model.ActivityImpulseSpend},
			Category:  p.Category,
			From:      windowFrom,
			To:        windowTo,
		})
		if err != nil {
			return Facts{}, err
		}
		facts.Spent = spent

	case *DailySaveFixedParams, *DailySaveIncreasingParams:
		daily, err := s.activities.DailyTotals(inst.ParticipantID, model.ActivitySaving, windowFrom, windowTo)
		if err != nil {
			return Facts{}, err
		}
		facts.DailySavings = daily

	case *HabitParams:
		count, err := s.challenges.CountCheckins(inst.ID, inst.StartDate, inst.EndDate)
		if err != nil {
			return Facts{}, err
		}
		facts.CheckinDays = count
	}

	return facts, nil
}
