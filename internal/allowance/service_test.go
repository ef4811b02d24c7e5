package allowance

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sproutfam/sprout/internal/autosave"
	"github.com/sproutfam/sprout/internal/database"
	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/notify"
	"github.com/sproutfam/sprout/internal/store"
)

type allowanceFixture struct {
	svc        *Service
	autosaves  *autosave.Service
	rules      *store.AllowanceRuleStore
	activities *store.ActivityStore
	guardian   *model.User
	dependent  *model.User
	db         *sql.DB
}

func setupAllowanceTest(t *testing.T) *allowanceFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	rules := store.NewAllowanceRuleStore(db)
	activities := store.NewActivityStore(db)
	levels := store.NewLevelStore(db)
	settings := store.NewAutoSaveStore(db)

	autosaves := autosave.NewService(db, settings, activities, levels, notify.Nop{}, slog.Default())
	svc := NewService(db, rules, activities, autosaves, notify.Nop{}, slog.Default())

	guardian, err := users.Create("g@example.com", "Guardian", "hash", model.RoleGuardian)
	if err != nil {
		t.Fatalf("create guardian: %v", err)
	}
	dependent, err := users.Create("d@example.com", "Dependent", "hash", model.RoleDependent)
	if err != nil {
		t.Fatalf("create dependent: %v", err)
	}

	return &allowanceFixture{
		svc: svc, autosaves: autosaves, rules: rules, activities: activities,
		guardian: guardian, dependent: dependent, db: db,
	}
}

func TestCreateRuleValidation(t *testing.T) {
	f := setupAllowanceTest(t)
	today := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name string
		rule model.AllowanceRule
	}{
		{"zero amount", model.AllowanceRule{Amount: 0, Frequency: model.FrequencyWeekly, DayOfWeek: 1}},
		{"negative amount", model.AllowanceRule{Amount: -5, Frequency: model.FrequencyWeekly, DayOfWeek: 1}},
		{"bad frequency", model.AllowanceRule{Amount: 10, Frequency: "daily"}},
		{"bad day of week", model.AllowanceRule{Amount: 10, Frequency: model.FrequencyWeekly, DayOfWeek: 7}},
		{"bad day of month", model.AllowanceRule{Amount: 10, Frequency: model.FrequencyMonthly, DayOfMonth: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rule.IssuerID = f.guardian.ID
			tt.rule.RecipientID = f.dependent.ID
			if _, err := f.svc.CreateRule(tt.rule, today); !errors.Is(err, ErrInvalidRule) {
				t.Errorf("err = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestCreateRuleNeverFiresSameDay(t *testing.T) {
	f := setupAllowanceTest(t)
	today := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC) // Wednesday

	rule, err := f.svc.CreateRule(model.AllowanceRule{
		IssuerID: f.guardian.ID, RecipientID: f.dependent.ID,
		Amount: 100, Frequency: model.FrequencyWeekly, DayOfWeek: int(time.Wednesday),
	}, today)
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if !rule.NextRunDate.After(today) {
		t.Errorf("next_run_date = %v, want after %v", rule.NextRunDate, today)
	}
	if !rule.Active {
		t.Error("new rule must be active")
	}
}

func TestRunDuePaysAndAdvances(t *testing.T) {
	f := setupAllowanceTest(t)
	created := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)

	rule, err := f.svc.CreateRule(model.AllowanceRule{
		IssuerID: f.guardian.ID, RecipientID: f.dependent.ID,
		Amount: 100, Frequency: model.FrequencyWeekly, DayOfWeek: int(time.Friday),
	}, created)
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	// Friday Aug 28: the rule is due.
	runDay := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)
	res, err := f.svc.RunDue(context.Background(), runDay)
	if err != nil {
		t.Fatalf("run due: %v", err)
	}
	if res.Ran != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v, want one run", res)
	}

	activities, err := f.activities.ListBySubject(f.dependent.ID, model.ActivityAllowance, runDay.AddDate(0, 0, -1), runDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("got %d allowance records, want 1", len(activities))
	}
	if activities[0].Amount != 100 {
		t.Errorf("amount = %d, want 100", activities[0].Amount)
	}
	if activities[0].RequestID == nil {
		t.Error("allowance record must carry a request id")
	}

	advanced, err := f.rules.GetByID(rule.ID)
	if err != nil {
		t.Fatalf("reload rule: %v", err)
	}
	if want := time.Date(2026, time.September, 4, 0, 0, 0, 0, time.UTC); !advanced.NextRunDate.Equal(want) {
		t.Errorf("next_run_date = %v, want %v", advanced.NextRunDate, want)
	}
}

func TestRunDueIdempotentSameDay(t *testing.T) {
	f := setupAllowanceTest(t)
	created := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)

	if _, err := f.svc.CreateRule(model.AllowanceRule{
		IssuerID: f.guardian.ID, RecipientID: f.dependent.ID,
		Amount: 100, Frequency: model.FrequencyWeekly, DayOfWeek: int(time.Friday),
	}, created); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	runDay := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := f.svc.RunDue(context.Background(), runDay); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	total, err := f.activities.SumWindow(store.SumFilter{
		SubjectID: f.dependent.ID,
		Kinds:     []string{model.ActivityAllowance},
		From:      runDay.AddDate(0, 0, -1),
		To:        runDay.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 100 {
		t.Errorf("total paid = %d, want exactly one payment of 100", total)
	}
}

func TestRunDueCatchesUpMissedDate(t *testing.T) {
	f := setupAllowanceTest(t)
	created := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)

	if _, err := f.svc.CreateRule(model.AllowanceRule{
		IssuerID: f.guardian.ID, RecipientID: f.dependent.ID,
		Amount: 100, Frequency: model.FrequencyWeekly, DayOfWeek: int(time.Friday),
	}, created); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	// First tick after the due date happens on Sunday. One payment, and the
	// next run lands on the following Friday.
	sunday := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)
	res, err := f.svc.RunDue(context.Background(), sunday)
	if err != nil {
		t.Fatalf("run due: %v", err)
	}
	if res.Ran != 1 {
		t.Fatalf("result = %+v, want one run", res)
	}

	rules, err := f.rules.ListByRecipient(f.dependent.ID)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if want := time.Date(2026, time.September, 4, 0, 0, 0, 0, time.UTC); !rules[0].NextRunDate.Equal(want) {
		t.Errorf("next_run_date = %v, want %v", rules[0].NextRunDate, want)
	}
}

func TestRunDueSkipsInactiveRules(t *testing.T) {
	f := setupAllowanceTest(t)
	created := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)

	rule, err := f.svc.CreateRule(model.AllowanceRule{
		IssuerID: f.guardian.ID, RecipientID: f.dependent.ID,
		Amount: 100, Frequency: model.FrequencyWeekly, DayOfWeek: int(time.Friday),
	}, created)
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if err := f.svc.SetActive(rule.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	res, err := f.svc.RunDue(context.Background(), time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run due: %v", err)
	}
	if res.Ran != 0 {
		t.Errorf("result = %+v, want nothing run", res)
	}
}

func TestRunDueAppliesAutoSave(t *testing.T) {
	f := setupAllowanceTest(t)
	created := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)

	if _, err := f.autosaves.SetPolicy(f.dependent.ID, 20, true); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	if _, err := f.svc.CreateRule(model.AllowanceRule{
		IssuerID: f.guardian.ID, RecipientID: f.dependent.ID,
		Amount: 100, Frequency: model.FrequencyWeekly, DayOfWeek: int(time.Friday),
	}, created); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	runDay := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.RunDue(context.Background(), runDay); err != nil {
		t.Fatalf("run due: %v", err)
	}

	savings, err := f.activities.ListBySubject(f.dependent.ID, model.ActivitySaving, runDay.AddDate(0, 0, -1), runDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list savings: %v", err)
	}
	if len(savings) != 1 {
		t.Fatalf("got %d saving records, want 1", len(savings))
	}
	if savings[0].Amount != 20 {
		t.Errorf("auto-saved = %d, want 20", savings[0].Amount)
	}
	if !savings[0].Auto {
		t.Error("policy saving must be marked auto")
	}
	if savings[0].RequestID == nil {
		t.Error("policy saving must share the allowance request id")
	}
}

func TestRecordManual(t *testing.T) {
	f := setupAllowanceTest(t)

	if _, err := f.autosaves.SetPolicy(f.dependent.ID, 50, true); err != nil {
		t.Fatalf("set policy: %v", err)
	}

	act, err := f.svc.RecordManual(context.Background(), f.dependent.ID, 40)
	if err != nil {
		t.Fatalf("record manual: %v", err)
	}
	if act.Amount != 40 || act.Kind != model.ActivityAllowance {
		t.Errorf("activity = %+v", act)
	}

	now := time.Now().UTC()
	saved, err := f.activities.SumWindow(store.SumFilter{
		SubjectID: f.dependent.ID,
		Kinds:     []string{model.ActivitySaving},
		AutoOnly:  true,
		From:      now.AddDate(0, 0, -1),
		To:        now.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("sum savings: %v", err)
	}
	if saved != 20 {
		t.Errorf("auto-saved = %d, want 20", saved)
	}

	if _, err := f.svc.RecordManual(context.Background(), f.dependent.ID, 0); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("zero amount err = %v, want ErrInvalidRule", err)
	}
}
