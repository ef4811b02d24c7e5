package level

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sproutfam/sprout/internal/database"
	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/notify"
	"github.com/sproutfam/sprout/internal/store"
)

type levelFixture struct {
	svc        *Service
	activities *store.ActivityStore
	levels     *store.LevelStore
	subject    int64
	db         *sql.DB
}

func setupLevelTest(t *testing.T) *levelFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	activities := store.NewActivityStore(db)
	levels := store.NewLevelStore(db)
	challenges := store.NewChallengeStore(db)
	svc := NewService(db, levels, activities, challenges, notify.Nop{}, slog.Default())

	u, err := users.Create("d@example.com", "Dependent", "hash", model.RoleDependent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &levelFixture{svc: svc, activities: activities, levels: levels, subject: u.ID, db: db}
}

// addActivities appends n saving records, each worth one XP.
func (f *levelFixture) addActivities(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := f.activities.Append(model.Activity{
			SubjectID:  f.subject,
			Kind:       model.ActivitySaving,
			Amount:     1,
			Category:   "test",
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("append activity: %v", err)
		}
	}
}

func TestSummarizeFreshSubject(t *testing.T) {
	f := setupLevelTest(t)

	sum, err := f.svc.Summarize(f.subject)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.XP != 0 || sum.Level != 1 || sum.CurrencyBalance != 0 {
		t.Errorf("summary = %+v, want zeroed level 1", sum)
	}
}

func TestGrantIfDueIssuesCrossedLevels(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 45) // 45 XP -> level 3

	res, err := f.svc.GrantIfDue(context.Background(), f.subject)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if res.ToLevel != 3 {
		t.Errorf("to level = %d, want 3", res.ToLevel)
	}
	// Levels 1 (watermark starts at 0), 2 and 3: 50 each, no milestone.
	if res.Currency != 150 {
		t.Errorf("currency = %d, want 150", res.Currency)
	}

	state, err := f.levels.GetState(f.subject)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.LastRewardedLevel != 3 {
		t.Errorf("watermark = %d, want 3", state.LastRewardedLevel)
	}
	if state.CurrencyBalance != 150 {
		t.Errorf("balance = %d, want 150", state.CurrencyBalance)
	}
}

func TestGrantIfDueIdempotent(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 45)

	if _, err := f.svc.GrantIfDue(context.Background(), f.subject); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	res, err := f.svc.GrantIfDue(context.Background(), f.subject)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if res.Currency != 0 {
		t.Errorf("second grant paid %d, want 0", res.Currency)
	}

	state, _ := f.levels.GetState(f.subject)
	if state.CurrencyBalance != 150 {
		t.Errorf("balance = %d, want unchanged 150", state.CurrencyBalance)
	}
}

func TestGrantIncludesMilestoneBonus(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 85) // 85 XP -> level 5

	res, err := f.svc.GrantIfDue(context.Background(), f.subject)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if res.ToLevel != 5 {
		t.Fatalf("to level = %d, want 5", res.ToLevel)
	}
	// Five levels at 50 plus the milestone bonus at level 5.
	if res.Currency != 5*50+200 {
		t.Errorf("currency = %d, want 450", res.Currency)
	}
}

func TestGrantUnlocksFreeItems(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 45) // level 3

	res, err := f.svc.GrantIfDue(context.Background(), f.subject)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	want := map[string]bool{"avatar_sprout": true, "avatar_sapling": true}
	if len(res.Unlocked) != len(want) {
		t.Fatalf("unlocked = %v, want the two free avatars up to level 3", res.Unlocked)
	}
	for _, code := range res.Unlocked {
		if !want[code] {
			t.Errorf("unexpected unlock %q", code)
		}
	}
}

func TestGrantDoesNotFeedBackIntoXP(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 20) // exactly level 2

	if _, err := f.svc.GrantIfDue(context.Background(), f.subject); err != nil {
		t.Fatalf("grant: %v", err)
	}

	// The grant itself must not add ledger records, or repeated grants at a
	// level boundary would cascade.
	sum, err := f.svc.Summarize(f.subject)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.XP != 20 {
		t.Errorf("xp after grant = %d, want 20", sum.XP)
	}
}

func TestPurchase(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 45) // level 3

	if _, err := f.svc.GrantIfDue(context.Background(), f.subject); err != nil {
		t.Fatalf("grant: %v", err)
	}
	// Balance is 150; frame_bronze costs 150 and needs level 2.
	item, err := f.svc.Purchase(context.Background(), f.subject, "frame_bronze")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if item.Code != "frame_bronze" {
		t.Errorf("item = %q", item.Code)
	}

	state, _ := f.levels.GetState(f.subject)
	if state.CurrencyBalance != 0 {
		t.Errorf("balance = %d, want 0 after spending 150", state.CurrencyBalance)
	}

	if _, err := f.svc.Purchase(context.Background(), f.subject, "frame_bronze"); !errors.Is(err, ErrAlreadyUnlocked) {
		t.Errorf("repeat purchase err = %v, want ErrAlreadyUnlocked", err)
	}
}

func TestPurchaseGuards(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 45) // level 3, no grant yet so balance is 0

	if _, err := f.svc.Purchase(context.Background(), f.subject, "no_such_item"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("unknown item err = %v, want ErrItemNotFound", err)
	}
	if _, err := f.svc.Purchase(context.Background(), f.subject, "frame_gold"); !errors.Is(err, ErrLevelTooLow) {
		t.Errorf("level gate err = %v, want ErrLevelTooLow", err)
	}
	if _, err := f.svc.Purchase(context.Background(), f.subject, "frame_bronze"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("balance gate err = %v, want ErrInsufficientBalance", err)
	}
}

func TestPurchaseRecordsLedgerEntry(t *testing.T) {
	f := setupLevelTest(t)
	f.addActivities(t, 45)
	if _, err := f.svc.GrantIfDue(context.Background(), f.subject); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := f.svc.Purchase(context.Background(), f.subject, "frame_bronze"); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	now := time.Now().UTC()
	total, err := f.activities.SumWindow(store.SumFilter{
		SubjectID: f.subject,
		Kinds:     []string{model.ActivityPurchase},
		From:      now.AddDate(0, 0, -1),
		To:        now.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("sum purchases: %v", err)
	}
	if total != 150 {
		t.Errorf("purchase ledger total = %d, want 150", total)
	}
}
