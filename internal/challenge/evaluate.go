package challenge

import (
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

// epsilon guards floating-point comparisons against false negatives.
const epsilon = 1e-9

// Result is a live progress snapshot. Decided is set only once the evaluator
// can return a definite outcome; until then the instance stays active.
type Result struct {
	Progress float64 `json:"progress"`
	Decided  bool    `json:"decided"`
	Success  bool    `json:"success"`
}

// Facts are the observations an evaluator needs, gathered from the activity
// ledger (and check-ins for habit challenges) over the instance window.
type Facts struct {
	Spent        int64            // total spending, category-scoped when the type demands it
	DailySavings map[string]int64 // per-day saving sums, keyed YYYY-MM-DD
	CheckinDays  int              // distinct check-in dates
}

// Evaluate computes progress and, when possible, a definite outcome for the
// instance. A nil or malformed parameter set yields a neutral, undecided
// result rather than an error.
func Evaluate(p Params, inst model.ChallengeInstance, facts Facts, today time.Time) Result {
	if p == nil || !p.valid() {
		return Result{}
	}

	today = startOfDay(today)
	elapsed := today.After(inst.EndDate)

	switch params := p.(type) {
	case *SpendCapParams:
		return evalSpendUnder(float64(params.CapAmount), facts.Spent, elapsed)
	case *ReduceCategoryParams:
		return evalSpendUnder(params.Target(), facts.Spent, elapsed)
	case *DailySaveFixedParams:
		return evalDailySave(func(int) int64 { return params.DailyAmount }, inst, facts.DailySavings, today, elapsed)
	case *DailySaveIncreasingParams:
		return evalDailySave(func(i int) int64 { return params.StartAmount + params.Increment*int64(i) }, inst, facts.DailySavings, today, elapsed)
	case *HabitParams:
		return evalHabit(params.TargetCount, facts.CheckinDays, elapsed)
	default:
		return Result{}
	}
}

// evalSpendUnder covers spend_cap and reduce_category: both succeed when
// total spending over the full window stays at or under a limit.
func evalSpendUnder(limit float64, spent int64, elapsed bool) Result {
	if limit <= 0 {
		return Result{}
	}

	progress := clamp01(float64(spent) / limit)
	if !elapsed {
		return Result{Progress: progress}
	}
	return Result{
		Progress: progress,
		Decided:  true,
		Success:  float64(spent) <= limit+epsilon,
	}
}

// evalDailySave succeeds only when every day in the window met its required
// saving amount. Progress counts met days over the whole window.
func evalDailySave(required func(dayIndex int) int64, inst model.ChallengeInstance, daily map[string]int64, today time.Time, elapsed bool) Result {
	totalDays := windowDays(inst)
	if totalDays <= 0 {
		return Result{}
	}

	met := 0
	allMet := true
	for i := 0; i < totalDays; i++ {
		day := inst.StartDate.AddDate(0, 0, i)
		if !elapsed && !day.Before(today) {
			// Day not complete yet; cannot count it either way.
			allMet = false
			continue
		}
		if daily[day.Format("2006-01-02")] >= required(i) {
			met++
		} else {
			allMet = false
		}
	}

	res := Result{Progress: clamp01(float64(met) / float64(totalDays))}
	if elapsed {
		res.Decided = true
		res.Success = allMet
	}
	return res
}

func evalHabit(target, checkinDays int, elapsed bool) Result {
	if target <= 0 {
		return Result{}
	}

	res := Result{Progress: clamp01(float64(checkinDays) / float64(target))}
	if elapsed {
		res.Decided = true
		res.Success = checkinDays >= target
	}
	return res
}

func windowDays(inst model.ChallengeInstance) int {
	return int(inst.EndDate.Sub(inst.StartDate).Hours()/24) + 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
