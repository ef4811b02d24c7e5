package challenge

import (
	"encoding/json"
	"fmt"
)

// Challenge types form a closed set; each has its own typed parameter struct
// and evaluator, so the evaluation switch is exhaustive and compiler-checked.
const (
	TypeSpendCap            = "spend_cap"
	TypeReduceCategory      = "reduce_category"
	TypeDailySaveFixed      = "daily_save_fixed"
	TypeDailySaveIncreasing = "daily_save_increasing"
	TypeHabitCustom         = "habit_custom"
)

// Params is the tagged union of per-type parameters.
type Params interface {
	valid() bool
}

// SpendCapParams caps total spending over the window; an empty category
// applies the cap to all spending.
type SpendCapParams struct {
	CapAmount int64  `json:"cap_amount"`
	Category  string `json:"category,omitempty"`
}

func (p SpendCapParams) valid() bool { return p.CapAmount > 0 }

// ReduceCategoryParams targets baseline spending reduced by a percentage in
// one category.
type ReduceCategoryParams struct {
	Category       string `json:"category"`
	BaselineAmount int64  `json:"baseline_amount"`
	ReducePercent  int    `json:"reduce_percent"`
}

func (p ReduceCategoryParams) valid() bool {
	return p.Category != "" && p.BaselineAmount > 0 && p.ReducePercent > 0 && p.ReducePercent <= 100
}

// Target is the allowed spend: baseline reduced by the percentage.
func (p ReduceCategoryParams) Target() float64 {
	return float64(p.BaselineAmount) * (1 - float64(p.ReducePercent)/100)
}

// DailySaveFixedParams requires the same saving amount every day.
type DailySaveFixedParams struct {
	DailyAmount int64 `json:"daily_amount"`
}

func (p DailySaveFixedParams) valid() bool { return p.DailyAmount > 0 }

// DailySaveIncreasingParams requires start + increment*dayIndex on each day
// (dayIndex starts at 0).
type DailySaveIncreasingParams struct {
	StartAmount int64 `json:"start_amount"`
	Increment   int64 `json:"increment"`
}

func (p DailySaveIncreasingParams) valid() bool { return p.StartAmount > 0 && p.Increment >= 0 }

// HabitParams succeeds on reaching a count of distinct check-in days.
type HabitParams struct {
	TargetCount int `json:"target_count"`
}

func (p HabitParams) valid() bool { return p.TargetCount > 0 }

// ParseParams decodes and validates the typed parameters for a challenge
// type. Unknown types and malformed parameter sets return an error; callers
// on the evaluation path degrade to a neutral result instead of failing.
func ParseParams(challengeType, paramsJSON string) (Params, error) {
	var p Params
	switch challengeType {
	case TypeSpendCap:
		p = &SpendCapParams{}
	case TypeReduceCategory:
		p = &ReduceCategoryParams{}
	case TypeDailySaveFixed:
		p = &DailySaveFixedParams{}
	case TypeDailySaveIncreasing:
		p = &DailySaveIncreasingParams{}
	case TypeHabitCustom:
		p = &HabitParams{}
	default:
		return nil, fmt.Errorf("unknown challenge type %q", challengeType)
	}

	if err := json.Unmarshal([]byte(paramsJSON), p); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", challengeType, err)
	}
	if !p.valid() {
		return nil, fmt.Errorf("invalid %s params", challengeType)
	}
	return p, nil
}

// EncodeParams serializes typed parameters for storage.
func EncodeParams(p Params) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}
