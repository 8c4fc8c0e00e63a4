package enums

import "fmt"

// PartyStatus tracks where a party is in the preference collection flow.
type PartyStatus string

const (
	PartyStatusCreated               PartyStatus = "created"
	PartyStatusCollectingPreferences PartyStatus = "collecting_preferences"
	PartyStatusPreferencesAggregated PartyStatus = "preferences_aggregated"
	PartyStatusResultsReady          PartyStatus = "results_ready"
)

var validPartyStatuses = []PartyStatus{
	PartyStatusCreated,
	PartyStatusCollectingPreferences,
	PartyStatusPreferencesAggregated,
	PartyStatusResultsReady,
}

// String implements fmt.Stringer.
func (s PartyStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PartyStatus.
func (s PartyStatus) IsValid() bool {
	for _, candidate := range validPartyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// AcceptsGuests reports whether guests may still submit or replace preferences.
func (s PartyStatus) AcceptsGuests() bool {
	return s != PartyStatusResultsReady
}

// ParsePartyStatus converts raw input into a PartyStatus.
func ParsePartyStatus(value string) (PartyStatus, error) {
	for _, candidate := range validPartyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party status %q", value)
}

// GuestStatus is the state of one guest's submission.
type GuestStatus string

const (
	GuestStatusSubmitted GuestStatus = "submitted"
)

// ResultsStatus is the state of an uploaded results document.
type ResultsStatus string

const (
	ResultsStatusCompleted ResultsStatus = "completed"
)
