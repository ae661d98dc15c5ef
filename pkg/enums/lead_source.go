package enums

import "fmt"

// LeadSource maps to the lead_source_enum in Postgres.
type LeadSource string

const (
	LeadSourceWebForm     LeadSource = "web_form"
	LeadSourceMarketplace LeadSource = "marketplace"
	LeadSourceMessaging   LeadSource = "messaging"
	LeadSourceManual      LeadSource = "manual"
)

var validLeadSources = []LeadSource{
	LeadSourceWebForm,
	LeadSourceMarketplace,
	LeadSourceMessaging,
	LeadSourceManual,
}

// String implements fmt.Stringer.
func (s LeadSource) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical lead_source_enum.
func (s LeadSource) IsValid() bool {
	for _, candidate := range validLeadSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLeadSource converts raw input into a LeadSource.
func ParseLeadSource(value string) (LeadSource, error) {
	for _, candidate := range validLeadSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lead source %q", value)
}
