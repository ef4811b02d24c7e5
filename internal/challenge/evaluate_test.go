package challenge

import (
	"testing"
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekInstance() model.ChallengeInstance {
	// Seven-day window, Aug 10 through Aug 16.
	return model.ChallengeInstance{
		StartDate: day(2026, time.August, 10),
		EndDate:   day(2026, time.August, 16),
	}
}

func TestEvaluateSpendCapMidWindow(t *testing.T) {
	p := &SpendCapParams{CapAmount: 100}
	res := Evaluate(p, weekInstance(), Facts{Spent: 40}, day(2026, time.August, 12))

	if res.Decided {
		t.Error("mid-window result must not be decided")
	}
	if res.Progress != 0.4 {
		t.Errorf("progress = %v, want 0.4", res.Progress)
	}
}

func TestEvaluateSpendCapOutcome(t *testing.T) {
	afterEnd := day(2026, time.August, 17)
	tests := []struct {
		name    string
		spent   int64
		success bool
	}{
		{"under cap", 80, true},
		{"exactly at cap", 100, true},
		{"over cap", 101, false},
		{"nothing spent", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(&SpendCapParams{CapAmount: 100}, weekInstance(), Facts{Spent: tt.spent}, afterEnd)
			if !res.Decided {
				t.Fatal("post-window result must be decided")
			}
			if res.Success != tt.success {
				t.Errorf("success = %v, want %v", res.Success, tt.success)
			}
		})
	}
}

func TestEvaluateSpendCapOnEndDateStillOpen(t *testing.T) {
	// The last day still counts; the outcome is decided only after it.
	res := Evaluate(&SpendCapParams{CapAmount: 100}, weekInstance(), Facts{Spent: 10}, day(2026, time.August, 16))
	if res.Decided {
		t.Error("end-date result must not be decided yet")
	}
}

func TestEvaluateReduceCategory(t *testing.T) {
	p := &ReduceCategoryParams{Category: "snacks", BaselineAmount: 200, ReducePercent: 30}
	afterEnd := day(2026, time.August, 17)

	// Target is 140.
	res := Evaluate(p, weekInstance(), Facts{Spent: 140}, afterEnd)
	if !res.Decided || !res.Success {
		t.Errorf("spent exactly at target: got %+v, want decided success", res)
	}

	res = Evaluate(p, weekInstance(), Facts{Spent: 141}, afterEnd)
	if !res.Decided || res.Success {
		t.Errorf("spent over target: got %+v, want decided failure", res)
	}
}

func TestEvaluateDailySaveFixed(t *testing.T) {
	p := &DailySaveFixedParams{DailyAmount: 5}
	inst := weekInstance()
	afterEnd := day(2026, time.August, 17)

	allMet := map[string]int64{}
	for i := 0; i < 7; i++ {
		allMet[inst.StartDate.AddDate(0, 0, i).Format("2006-01-02")] = 5
	}
	res := Evaluate(p, inst, Facts{DailySavings: allMet}, afterEnd)
	if !res.Decided || !res.Success {
		t.Errorf("every day met: got %+v, want decided success", res)
	}
	if res.Progress != 1 {
		t.Errorf("progress = %v, want 1", res.Progress)
	}

	oneShort := map[string]int64{}
	for k, v := range allMet {
		oneShort[k] = v
	}
	oneShort["2026-08-13"] = 4
	res = Evaluate(p, inst, Facts{DailySavings: oneShort}, afterEnd)
	if !res.Decided || res.Success {
		t.Errorf("one day short: got %+v, want decided failure", res)
	}
}

func TestEvaluateDailySaveMidWindowIgnoresOpenDays(t *testing.T) {
	p := &DailySaveFixedParams{DailyAmount: 5}
	inst := weekInstance()

	// First two days met; evaluate on day three. Days three onward are not
	// complete and must not count against progress as failures.
	daily := map[string]int64{
		"2026-08-10": 5,
		"2026-08-11": 7,
	}
	res := Evaluate(p, inst, Facts{DailySavings: daily}, day(2026, time.August, 12))
	if res.Decided {
		t.Error("mid-window result must not be decided")
	}
	if want := 2.0 / 7.0; res.Progress != want {
		t.Errorf("progress = %v, want %v", res.Progress, want)
	}
}

func TestEvaluateDailySaveIncreasing(t *testing.T) {
	p := &DailySaveIncreasingParams{StartAmount: 1, Increment: 2}
	inst := weekInstance()
	afterEnd := day(2026, time.August, 17)

	// Required: 1, 3, 5, 7, 9, 11, 13.
	daily := map[string]int64{}
	for i := 0; i < 7; i++ {
		daily[inst.StartDate.AddDate(0, 0, i).Format("2006-01-02")] = int64(1 + 2*i)
	}
	res := Evaluate(p, inst, Facts{DailySavings: daily}, afterEnd)
	if !res.Decided || !res.Success {
		t.Errorf("ramp met: got %+v, want decided success", res)
	}

	// Flat saving fails the later, higher requirements.
	flat := map[string]int64{}
	for i := 0; i < 7; i++ {
		flat[inst.StartDate.AddDate(0, 0, i).Format("2006-01-02")] = 5
	}
	res = Evaluate(p, inst, Facts{DailySavings: flat}, afterEnd)
	if !res.Decided || res.Success {
		t.Errorf("flat saving: got %+v, want decided failure", res)
	}
	if want := 3.0 / 7.0; res.Progress != want { // days 0,1,2 met (1,3,5 <= 5)
		t.Errorf("progress = %v, want %v", res.Progress, want)
	}
}

func TestEvaluateHabit(t *testing.T) {
	p := &HabitParams{TargetCount: 5}
	inst := weekInstance()
	afterEnd := day(2026, time.August, 17)

	res := Evaluate(p, inst, Facts{CheckinDays: 3}, day(2026, time.August, 14))
	if res.Decided {
		t.Error("mid-window result must not be decided")
	}
	if res.Progress != 0.6 {
		t.Errorf("progress = %v, want 0.6", res.Progress)
	}

	res = Evaluate(p, inst, Facts{CheckinDays: 5}, afterEnd)
	if !res.Decided || !res.Success {
		t.Errorf("target reached: got %+v, want decided success", res)
	}

	res = Evaluate(p, inst, Facts{CheckinDays: 4}, afterEnd)
	if !res.Decided || res.Success {
		t.Errorf("target missed: got %+v, want decided failure", res)
	}
}

func TestEvaluateProgressClamped(t *testing.T) {
	afterStart := day(2026, time.August, 12)
	res := Evaluate(&SpendCapParams{CapAmount: 100}, weekInstance(), Facts{Spent: 250}, afterStart)
	if res.Progress != 1 {
		t.Errorf("overspend progress = %v, want clamped to 1", res.Progress)
	}

	res = Evaluate(&HabitParams{TargetCount: 3}, weekInstance(), Facts{CheckinDays: 9}, afterStart)
	if res.Progress != 1 {
		t.Errorf("over-target progress = %v, want clamped to 1", res.Progress)
	}
}

func TestEvaluateMalformedParamsNeutral(t *testing.T) {
	inst := weekInstance()
	afterEnd := day(2026, time.August, 17)

	for _, p := range []Params{
		nil,
		&SpendCapParams{CapAmount: 0},
		&HabitParams{TargetCount: -1},
		&DailySaveFixedParams{DailyAmount: 0},
	} {
		res := Evaluate(p, inst, Facts{Spent: 999, CheckinDays: 99}, afterEnd)
		if res.Decided || res.Progress != 0 {
			t.Errorf("params %+v: got %+v, want neutral result", p, res)
		}
	}
}
