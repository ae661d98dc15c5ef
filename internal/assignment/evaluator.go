package assignment

import (
	"strings"
	"time"

	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
)

// Matches reports whether lead and the candidate resolved for a rule satisfy
// every condition in conds. now must already be in the branch timezone. It
// never fails: a lead missing an attribute a condition needs does not match.
func Matches(lead models.Lead, conds Conditions, candidate *employees.Candidate, now time.Time) bool {
	return matchesSource(lead, conds) &&
		matchesValue(lead, conds) &&
		matchesGeography(lead, conds) &&
		matchesAny(lead.Industry, conds.Industries) &&
		matchesLeadAge(lead, conds, now) &&
		matchesClock(conds, now) &&
		matchesCandidate(conds, candidate) &&
		matchesTerritory(lead, conds, candidate)
}

func matchesSource(lead models.Lead, conds Conditions) bool {
	if len(conds.Sources) == 0 {
		return true
	}
	for _, source := range conds.Sources {
		if source == lead.Source {
			return true
		}
	}
	return false
}

func matchesValue(lead models.Lead, conds Conditions) bool {
	if !conds.HasValueCondition() {
		return true
	}
	if !lead.Value.Valid {
		return false
	}
	value := lead.Value.Decimal
	if conds.ValueMin != nil && value.LessThan(*conds.ValueMin) {
		return false
	}
	if conds.ValueMax != nil && value.GreaterThan(*conds.ValueMax) {
		return false
	}
	if conds.ValueBracket != nil && !conds.ValueBracket.Contains(value) {
		return false
	}
	return true
}

func matchesGeography(lead models.Lead, conds Conditions) bool {
	return matchesAny(lead.Region, conds.Regions) &&
		matchesAny(lead.State, conds.States) &&
		matchesAny(lead.City, conds.Cities) &&
		matchesAny(lead.Country, conds.Countries)
}

// matchesAny is an exact, case-sensitive allow-list check.
func matchesAny(value *string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if value == nil {
		return false
	}
	for _, candidate := range allowed {
		if candidate == *value {
			return true
		}
	}
	return false
}

func matchesLeadAge(lead models.Lead, conds Conditions, now time.Time) bool {
	if conds.MaxLeadAgeHours == nil {
		return true
	}
	if lead.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(lead.CreatedAt).Hours() <= *conds.MaxLeadAgeHours
}

func matchesClock(conds Conditions, now time.Time) bool {
	if conds.TimeWindow != nil && !conds.TimeWindow.ContainsHour(now.Hour()) {
		return false
	}
	if len(conds.Days) == 0 {
		return true
	}
	weekday := now.Weekday()
	name := strings.ToLower(weekday.String())
	for _, day := range conds.Days {
		switch day {
		case DaysWeekdays:
			if weekday != time.Saturday && weekday != time.Sunday {
				return true
			}
		case DaysWeekends:
			if weekday == time.Saturday || weekday == time.Sunday {
				return true
			}
		default:
			if day == name {
				return true
			}
		}
	}
	return false
}

func matchesCandidate(conds Conditions, candidate *employees.Candidate) bool {
	if len(conds.Roles) == 0 && len(conds.Departments) == 0 {
		return true
	}
	if candidate == nil {
		return false
	}
	return matchesAny(candidate.Role, conds.Roles) && matchesAny(candidate.Department, conds.Departments)
}

// matchesTerritory compares the lead's best location (state, else city)
// against the candidate's territories by case-insensitive containment in
// either direction.
func matchesTerritory(lead models.Lead, conds Conditions, candidate *employees.Candidate) bool {
	if !conds.TerritoryMatch || candidate == nil || len(candidate.Territories) == 0 {
		return true
	}
	location := ""
	if lead.State != nil && strings.TrimSpace(*lead.State) != "" {
		location = *lead.State
	} else if lead.City != nil {
		location = *lead.City
	}
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return false
	}
	for _, territory := range candidate.Territories {
		t := strings.ToLower(strings.TrimSpace(territory))
		if t == "" {
			continue
		}
		if strings.Contains(location, t) || strings.Contains(t, location) {
			return true
		}
	}
	return false
}
