package assignment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// ValueBracket names a fixed lead value range in the branch's base currency.
type ValueBracket string

const (
	BracketSmall      ValueBracket = "small"
	BracketMedium     ValueBracket = "medium"
	BracketLarge      ValueBracket = "large"
	BracketEnterprise ValueBracket = "enterprise"
)

var (
	bracketMediumFloor     = decimal.NewFromInt(50_000)
	bracketLargeFloor      = decimal.NewFromInt(500_000)
	bracketEnterpriseFloor = decimal.NewFromInt(2_500_000)
)

// Contains reports whether value falls inside the bracket. Lower bounds are
// inclusive and upper bounds exclusive.
func (b ValueBracket) Contains(value decimal.Decimal) bool {
	switch b {
	case BracketSmall:
		return value.LessThan(bracketMediumFloor)
	case BracketMedium:
		return value.GreaterThanOrEqual(bracketMediumFloor) && value.LessThan(bracketLargeFloor)
	case BracketLarge:
		return value.GreaterThanOrEqual(bracketLargeFloor) && value.LessThan(bracketEnterpriseFloor)
	case BracketEnterprise:
		return value.GreaterThanOrEqual(bracketEnterpriseFloor)
	default:
		return false
	}
}

func (b ValueBracket) valid() bool {
	switch b {
	case BracketSmall, BracketMedium, BracketLarge, BracketEnterprise:
		return true
	}
	return false
}

// TimeWindow names a fixed wall-clock range evaluated in the branch timezone.
type TimeWindow string

const (
	WindowMorning       TimeWindow = "morning"
	WindowAfternoon     TimeWindow = "afternoon"
	WindowEvening       TimeWindow = "evening"
	WindowBusinessHours TimeWindow = "business_hours"
	WindowAfterHours    TimeWindow = "after_hours"
)

// ContainsHour reports whether an hour of day (0-23) is inside the window.
func (w TimeWindow) ContainsHour(hour int) bool {
	switch w {
	case WindowMorning:
		return hour >= 9 && hour < 12
	case WindowAfternoon:
		return hour >= 12 && hour < 17
	case WindowEvening:
		return hour >= 17 && hour < 20
	case WindowBusinessHours:
		return hour >= 9 && hour < 18
	case WindowAfterHours:
		return hour < 9 || hour >= 18
	default:
		return false
	}
}

func (w TimeWindow) valid() bool {
	switch w {
	case WindowMorning, WindowAfternoon, WindowEvening, WindowBusinessHours, WindowAfterHours:
		return true
	}
	return false
}

const (
	DaysWeekdays = "weekdays"
	DaysWeekends = "weekends"
)

var namedDays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// Conditions is the decoded condition set of a rule. Every field is optional
// and an unset field is satisfied by every lead.
type Conditions struct {
	Sources         []enums.LeadSource `json:"sources,omitempty"`
	ValueMin        *decimal.Decimal   `json:"value_min,omitempty"`
	ValueMax        *decimal.Decimal   `json:"value_max,omitempty"`
	ValueBracket    *ValueBracket      `json:"value_bracket,omitempty"`
	Regions         []string           `json:"regions,omitempty"`
	States          []string           `json:"states,omitempty"`
	Cities          []string           `json:"cities,omitempty"`
	Countries       []string           `json:"countries,omitempty"`
	Industries      []string           `json:"industries,omitempty"`
	Roles           []string           `json:"roles,omitempty"`
	Departments     []string           `json:"departments,omitempty"`
	MaxLeadAgeHours *float64           `json:"max_lead_age_hours,omitempty"`
	TimeWindow      *TimeWindow        `json:"time_window,omitempty"`
	Days            []string           `json:"days,omitempty"`
	TerritoryMatch  bool               `json:"territory_match,omitempty"`
}

// HasValueCondition reports whether any value bound or bracket is set.
func (c Conditions) HasValueCondition() bool {
	return c.ValueMin != nil || c.ValueMax != nil || c.ValueBracket != nil
}

// IsEmpty reports whether the rule is a catch-all.
func (c Conditions) IsEmpty() bool {
	return len(c.Sources) == 0 && !c.HasValueCondition() &&
		len(c.Regions) == 0 && len(c.States) == 0 && len(c.Cities) == 0 && len(c.Countries) == 0 &&
		len(c.Industries) == 0 && len(c.Roles) == 0 && len(c.Departments) == 0 &&
		c.MaxLeadAgeHours == nil && c.TimeWindow == nil && len(c.Days) == 0 && !c.TerritoryMatch
}

// DecodeConditions parses and validates a stored condition set. Empty input
// and JSON null decode to an empty set.
func DecodeConditions(raw json.RawMessage) (Conditions, error) {
	var conds Conditions
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return conds, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conds); err != nil {
		return Conditions{}, fmt.Errorf("decode conditions: %w", err)
	}
	if err := conds.Validate(); err != nil {
		return Conditions{}, err
	}
	conds.normalize()
	return conds, nil
}

// Validate rejects structurally invalid values.
func (c Conditions) Validate() error {
	for _, source := range c.Sources {
		if !source.IsValid() {
			return fmt.Errorf("unknown source %q", source)
		}
	}
	if c.ValueMin != nil && c.ValueMin.IsNegative() {
		return fmt.Errorf("value_min must not be negative")
	}
	if c.ValueMax != nil && c.ValueMax.IsNegative() {
		return fmt.Errorf("value_max must not be negative")
	}
	if c.ValueMin != nil && c.ValueMax != nil && c.ValueMin.GreaterThan(*c.ValueMax) {
		return fmt.Errorf("value_min %s exceeds value_max %s", c.ValueMin, c.ValueMax)
	}
	if c.ValueBracket != nil && !c.ValueBracket.valid() {
		return fmt.Errorf("unknown value bracket %q", *c.ValueBracket)
	}
	if c.MaxLeadAgeHours != nil && *c.MaxLeadAgeHours < 0 {
		return fmt.Errorf("max_lead_age_hours must not be negative")
	}
	if c.TimeWindow != nil && !c.TimeWindow.valid() {
		return fmt.Errorf("unknown time window %q", *c.TimeWindow)
	}
	for _, day := range c.Days {
		d := strings.ToLower(strings.TrimSpace(day))
		if d != DaysWeekdays && d != DaysWeekends && !namedDays[d] {
			return fmt.Errorf("unknown day %q", day)
		}
	}
	return nil
}

func (c *Conditions) normalize() {
	for i, day := range c.Days {
		c.Days[i] = strings.ToLower(strings.TrimSpace(day))
	}
}
