package assignment

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConditionsEmptyInputs(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "{}"} {
		conds, err := DecodeConditions(json.RawMessage(raw))
		require.NoError(t, err, "input %q", raw)
		assert.True(t, conds.IsEmpty(), "input %q", raw)
	}
}

func TestDecodeConditionsFullSet(t *testing.T) {
	raw := `{
		"sources": ["marketplace", "web_form"],
		"value_min": "1000.50",
		"value_max": 90000,
		"value_bracket": "medium",
		"cities": ["Mumbai"],
		"industries": ["Textiles"],
		"roles": ["senior"],
		"max_lead_age_hours": 48,
		"time_window": "business_hours",
		"days": [" Monday", "WEEKENDS"],
		"territory_match": true
	}`
	conds, err := DecodeConditions(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, []enums.LeadSource{enums.LeadSourceMarketplace, enums.LeadSourceWebForm}, conds.Sources)
	assert.True(t, conds.ValueMin.Equal(decimal.RequireFromString("1000.50")))
	assert.True(t, conds.ValueMax.Equal(decimal.NewFromInt(90000)))
	assert.Equal(t, BracketMedium, *conds.ValueBracket)
	assert.Equal(t, WindowBusinessHours, *conds.TimeWindow)
	assert.Equal(t, []string{"monday", "weekends"}, conds.Days)
	assert.Equal(t, 48.0, *conds.MaxLeadAgeHours)
	assert.True(t, conds.TerritoryMatch)
	assert.True(t, conds.HasValueCondition())
	assert.False(t, conds.IsEmpty())
}

func TestDecodeConditionsRejectsInvalidSets(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"colour":"red"}`,
		"unknown source": `{"sources":["billboard"]}`,
		"bad bracket":    `{"value_bracket":"huge"}`,
		"bad window":     `{"time_window":"midnight"}`,
		"bad day":        `{"days":["funday"]}`,
		"negative min":   `{"value_min":-1}`,
		"negative max":   `{"value_max":-5}`,
		"min above max":  `{"value_min":100,"value_max":10}`,
		"negative age":   `{"max_lead_age_hours":-2}`,
		"wrong type":     `{"cities":"Mumbai"}`,
		"not an object":  `["marketplace"]`,
		"malformed json": `{"sources":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeConditions(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}

func TestValueBracketBoundaries(t *testing.T) {
	cases := []struct {
		bracket ValueBracket
		value   int64
		want    bool
	}{
		{BracketSmall, 0, true},
		{BracketSmall, 49_999, true},
		{BracketSmall, 50_000, false},
		{BracketMedium, 50_000, true},
		{BracketMedium, 499_999, true},
		{BracketMedium, 500_000, false},
		{BracketLarge, 500_000, true},
		{BracketLarge, 2_499_999, true},
		{BracketLarge, 2_500_000, false},
		{BracketEnterprise, 2_500_000, true},
		{BracketEnterprise, 100_000_000, true},
		{ValueBracket("unknown"), 10, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.bracket.Contains(decimal.NewFromInt(tc.value)), "%s %d", tc.bracket, tc.value)
	}
}

func TestTimeWindowHours(t *testing.T) {
	assert.True(t, WindowMorning.ContainsHour(9))
	assert.False(t, WindowMorning.ContainsHour(12))
	assert.True(t, WindowEvening.ContainsHour(19))
	assert.False(t, WindowEvening.ContainsHour(20))
	assert.True(t, WindowBusinessHours.ContainsHour(17))
	assert.False(t, WindowBusinessHours.ContainsHour(18))
	assert.True(t, WindowAfterHours.ContainsHour(23))
	assert.True(t, WindowAfterHours.ContainsHour(3))
	assert.False(t, WindowAfterHours.ContainsHour(10))
}
