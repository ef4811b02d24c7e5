package challenge

import (
	"strings"
	"testing"
)

func TestParseParamsValid(t *testing.T) {
	tests := []struct {
		challengeType string
		paramsJSON    string
	}{
		{TypeSpendCap, `{"cap_amount": 500}`},
		{TypeSpendCap, `{"cap_amount": 500, "category": "snacks"}`},
		{TypeReduceCategory, `{"category": "games", "baseline_amount": 200, "reduce_percent": 30}`},
		{TypeDailySaveFixed, `{"daily_amount": 5}`},
		{TypeDailySaveIncreasing, `{"start_amount": 1, "increment": 1}`},
		{TypeDailySaveIncreasing, `{"start_amount": 5, "increment": 0}`},
		{TypeHabitCustom, `{"target_count": 10}`},
	}

	for _, tt := range tests {
		if _, err := ParseParams(tt.challengeType, tt.paramsJSON); err != nil {
			t.Errorf("ParseParams(%s, %s): %v", tt.challengeType, tt.paramsJSON, err)
		}
	}
}

func TestParseParamsInvalid(t *testing.T) {
	tests := []struct {
		name          string
		challengeType string
		paramsJSON    string
	}{
		{"unknown type", "mystery", `{}`},
		{"malformed json", TypeSpendCap, `{cap_amount}`},
		{"zero cap", TypeSpendCap, `{"cap_amount": 0}`},
		{"negative cap", TypeSpendCap, `{"cap_amount": -5}`},
		{"missing category", TypeReduceCategory, `{"baseline_amount": 200, "reduce_percent": 30}`},
		{"reduce percent over 100", TypeReduceCategory, `{"category": "games", "baseline_amount": 200, "reduce_percent": 120}`},
		{"zero daily amount", TypeDailySaveFixed, `{"daily_amount": 0}`},
		{"negative increment", TypeDailySaveIncreasing, `{"start_amount": 1, "increment": -1}`},
		{"zero habit target", TypeHabitCustom, `{"target_count": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseParams(tt.challengeType, tt.paramsJSON); err == nil {
				t.Errorf("ParseParams(%s, %s) succeeded, want error", tt.challengeType, tt.paramsJSON)
			}
		})
	}
}

func TestEncodeParamsRoundTrip(t *testing.T) {
	encoded, err := EncodeParams(&SpendCapParams{CapAmount: 500, Category: "snacks"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(encoded, `"cap_amount":500`) {
		t.Errorf("encoded = %s, missing cap_amount", encoded)
	}

	p, err := ParseParams(TypeSpendCap, encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sc, ok := p.(*SpendCapParams)
	if !ok {
		t.Fatalf("parsed type = %T, want *SpendCapParams", p)
	}
	if sc.CapAmount != 500 || sc.Category != "snacks" {
		t.Errorf("parsed = %+v", sc)
	}
}

func TestReduceCategoryTarget(t *testing.T) {
	p := ReduceCategoryParams{Category: "games", BaselineAmount: 200, ReducePercent: 30}
	if got := p.Target(); got < 139.999 || got > 140.001 {
		t.Errorf("Target() = %v, want 140", got)
	}
}
