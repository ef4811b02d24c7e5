package store

import (
	"testing"

	"github.com/sproutfam/sprout/internal/database"
	"github.com/sproutfam/sprout/internal/model"
)

func setupLevelStoreTest(t *testing.T) (*LevelStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := NewUserStore(db).Create("d@example.com", "Dependent", "hash", model.RoleDependent)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewLevelStore(db), u.ID
}

func TestGetStateCreatesDefaultRow(t *testing.T) {
	levels, subject := setupLevelStoreTest(t)

	st, err := levels.GetState(subject)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.LastRewardedLevel != 0 || st.CurrencyBalance != 0 {
		t.Errorf("default state = %+v", st)
	}

	// Repeated access returns the same row, not a reset one.
	if err := levels.AddBalanceTx(levels.db, subject, 100); err != nil {
		t.Fatalf("add balance: %v", err)
	}
	st, err = levels.GetState(subject)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.CurrencyBalance != 100 {
		t.Errorf("balance = %d, want 100", st.CurrencyBalance)
	}
}

func TestAdvanceWatermarkGuard(t *testing.T) {
	levels, subject := setupLevelStoreTest(t)
	if _, err := levels.GetState(subject); err != nil {
		t.Fatalf("ensure state: %v", err)
	}

	affected, err := levels.AdvanceWatermarkTx(levels.db, subject, 0, 3, 150)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	// A second advance from the same observed watermark loses.
	affected, err = levels.AdvanceWatermarkTx(levels.db, subject, 0, 3, 150)
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if affected != 0 {
		t.Errorf("stale advance affected = %d, want 0", affected)
	}

	st, _ := levels.GetState(subject)
	if st.LastRewardedLevel != 3 || st.CurrencyBalance != 150 {
		t.Errorf("state = %+v, want level 3 balance 150", st)
	}
}

func TestSpendGuard(t *testing.T) {
	levels, subject := setupLevelStoreTest(t)
	if err := levels.AddBalanceTx(levels.db, subject, 100); err != nil {
		t.Fatalf("add balance: %v", err)
	}

	affected, err := levels.SpendTx(levels.db, subject, 150)
	if err != nil {
		t.Fatalf("overspend: %v", err)
	}
	if affected != 0 {
		t.Error("overspend succeeded")
	}

	affected, err = levels.SpendTx(levels.db, subject, 100)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if affected != 1 {
		t.Error("exact spend failed")
	}

	st, _ := levels.GetState(subject)
	if st.CurrencyBalance != 0 {
		t.Errorf("balance = %d, want 0", st.CurrencyBalance)
	}
}

func TestUnlockIdempotent(t *testing.T) {
	levels, subject := setupLevelStoreTest(t)

	affected, err := levels.UnlockTx(levels.db, subject, "avatar_sprout")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if affected != 1 {
		t.Fatalf("first unlock affected = %d, want 1", affected)
	}

	affected, err = levels.UnlockTx(levels.db, subject, "avatar_sprout")
	if err != nil {
		t.Fatalf("repeat unlock: %v", err)
	}
	if affected != 0 {
		t.Errorf("repeat unlock affected = %d, want 0", affected)
	}

	unlocks, err := levels.ListUnlocks(subject)
	if err != nil {
		t.Fatalf("list unlocks: %v", err)
	}
	if len(unlocks) != 1 {
		t.Errorf("got %d unlocks, want 1", len(unlocks))
	}
}

func TestSeededShopItems(t *testing.T) {
	levels, _ := setupLevelStoreTest(t)

	items, err := levels.ListItems()
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("no seeded shop items")
	}

	free, err := levels.ListFreeItemsUpToLevel(1)
	if err != nil {
		t.Fatalf("list free: %v", err)
	}
	if len(free) != 1 || free[0].Code != "avatar_sprout" {
		t.Errorf("free at level 1 = %+v, want only avatar_sprout", free)
	}
}
