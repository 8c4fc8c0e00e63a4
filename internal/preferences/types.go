package preferences

import (
	"encoding/json"
	"slices"
)

// Status is the workflow state carried on a combined preferences envelope.
type Status string

const (
	StatusAggregated Status = "PREFERENCES_AGGREGATED"
	StatusComplete   Status = "PREFERENCES_COMPLETE"
	StatusIncomplete Status = "PREFERENCES_INCOMPLETE"
)

// AgentName identifies the producer recorded in processing flags.
const AgentName = "HostPreferenceAggregator"

// DateTimePreferences holds when the party wants to dine.
type DateTimePreferences struct {
	DatePreference *string `json:"date_preference"`
	TimePreference *string `json:"time_preference"`
}

type ContextPreferences struct {
	GroupSize *int                `json:"group_size"`
	Occasion  *string             `json:"occasion"`
	DateTime  DateTimePreferences `json:"date_time"`
}

type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Complete reports whether both latitude and longitude are set.
func (c Coordinates) Complete() bool {
	return c.Latitude != nil && c.Longitude != nil
}

type LocationPreferences struct {
	PrimaryText          *string     `json:"text_input_primary"`
	SecondaryText        *string     `json:"text_input_secondary"`
	Coordinates          Coordinates `json:"coordinates_primary"`
	SearchRadiusKM       *float64    `json:"search_radius_km"`
	MaxTravelTimeMinutes *int        `json:"max_travel_time_minutes"`
	AvoidAreas           []string    `json:"avoid_areas"`
}

type CuisinePreferences struct {
	Desired           []string `json:"desired"`
	OpenToSuggestions *bool    `json:"open_to_suggestions"`
	Avoid             []string `json:"avoid"`
}

type DietaryPreferences struct {
	Needs        []string `json:"needs"`
	GeneralNotes *string  `json:"general_notes"`
}

type RestaurantPreferences struct {
	PriceLevels          []int    `json:"price_levels"`
	MinRating            *float64 `json:"min_rating"`
	AttributePreferences []string `json:"attribute_preferences"`
	ExcludeChains        *bool    `json:"exclude_chains"`
	SpecificRestaurants  []string `json:"specific_restaurants_mentioned"`
}

type AmbianceAndAmenities struct {
	Ambiances []string `json:"ambiances"`
	Amenities []string `json:"amenities"`
}

// Preferences is the nested preference document shared by guest records, host records and
// derived documents. On records a nil pointer or nil slice means the field was absent; an
// empty non-nil slice means the submitter explicitly asked for nothing.
type Preferences struct {
	Context               ContextPreferences    `json:"context_preferences"`
	Location              LocationPreferences   `json:"location_preferences"`
	Cuisine               CuisinePreferences    `json:"cuisine_type_preferences"`
	Dietary               DietaryPreferences    `json:"dietary_preferences"`
	Restaurant            RestaurantPreferences `json:"restaurant_specific_preferences"`
	Ambiance              AmbianceAndAmenities  `json:"ambiance_and_amenities"`
	WillingToCompromiseOn []string              `json:"willing_to_compromise_on"`
	DealBreakers          []string              `json:"deal_breakers"`
}

// FieldIssue records a field dropped while parsing permissively.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// PreferenceRecord is one guest's or the host's submitted preferences.
type PreferenceRecord struct {
	ID          string
	Preferences Preferences
	Issues      []FieldIssue
}

// AggregatedPreferences is the consensus of all guest records for one request.
type AggregatedPreferences struct {
	Preferences Preferences
	GuestCount  int
}

type MetaPreferences struct {
	SortingPreference  string `json:"sorting_preference"`
	PresentationFormat string `json:"presentation_format"`
	NumberOfOptions    int    `json:"number_of_options_to_present"`
}

type ConstraintsSummary struct {
	MustHaves   []string `json:"must_haves_summary"`
	NiceToHaves []string `json:"nice_to_haves_summary"`
}

type ProcessingFlags struct {
	IterationCount        int      `json:"iteration_count"`
	MissingCriticalFields []string `json:"missing_critical_fields"`
	ClarificationFocus    *string  `json:"clarification_focus"`
	ClarificationQuestion *string  `json:"clarification_question_suggestion"`
	LastAgentProcessed    string   `json:"last_agent_processed"`
	ReadyForSearch        bool     `json:"ready_for_search_by_upa"`
	AggregatedFromGuests  bool     `json:"aggregated_from_guests"`
	HostInputIntegrated   bool     `json:"host_input_integrated"`
	GuestCount            int      `json:"guest_count"`
	ErrorMessage          *string  `json:"error_message"`
}

// CombinedPreferences is the final envelope handed to search.
type CombinedPreferences struct {
	Status             Status             `json:"status"`
	LastUserUtterance  string             `json:"last_user_utterance"`
	Preferences        Preferences        `json:"preferences"`
	MetaPreferences    MetaPreferences    `json:"meta_preferences_for_results"`
	ConstraintsSummary ConstraintsSummary `json:"constraints_summary"`
	ProcessingFlags    ProcessingFlags    `json:"processing_flags"`
}

// DecodeCombined parses a stored combined preferences envelope.
func DecodeCombined(raw []byte) (CombinedPreferences, error) {
	var out CombinedPreferences
	if err := json.Unmarshal(raw, &out); err != nil {
		return CombinedPreferences{}, err
	}
	return out, nil
}

// WithClarificationQuestion returns a copy carrying the supplied question.
func (c CombinedPreferences) WithClarificationQuestion(question string) CombinedPreferences {
	out := c.clone()
	if question == "" {
		out.ProcessingFlags.ClarificationQuestion = nil
		return out
	}
	out.ProcessingFlags.ClarificationQuestion = &question
	return out
}

// WithCoordinates returns a copy with the primary coordinates set.
func (c CombinedPreferences) WithCoordinates(lat, lng float64) CombinedPreferences {
	out := c.clone()
	out.Preferences.Location.Coordinates = Coordinates{Latitude: &lat, Longitude: &lng}
	return out
}

func (c CombinedPreferences) clone() CombinedPreferences {
	out := c
	out.Preferences = c.Preferences.clone()
	out.ConstraintsSummary.MustHaves = slices.Clone(c.ConstraintsSummary.MustHaves)
	out.ConstraintsSummary.NiceToHaves = slices.Clone(c.ConstraintsSummary.NiceToHaves)
	out.ProcessingFlags.MissingCriticalFields = slices.Clone(c.ProcessingFlags.MissingCriticalFields)
	return out
}

// clone deep-copies every collection and pointer so derived documents never alias inputs.
func (p Preferences) clone() Preferences {
	out := p
	out.Context.GroupSize = clonePtr(p.Context.GroupSize)
	out.Context.Occasion = clonePtr(p.Context.Occasion)
	out.Context.DateTime.DatePreference = clonePtr(p.Context.DateTime.DatePreference)
	out.Context.DateTime.TimePreference = clonePtr(p.Context.DateTime.TimePreference)

	out.Location.PrimaryText = clonePtr(p.Location.PrimaryText)
	out.Location.SecondaryText = clonePtr(p.Location.SecondaryText)
	out.Location.Coordinates.Latitude = clonePtr(p.Location.Coordinates.Latitude)
	out.Location.Coordinates.Longitude = clonePtr(p.Location.Coordinates.Longitude)
	out.Location.SearchRadiusKM = clonePtr(p.Location.SearchRadiusKM)
	out.Location.MaxTravelTimeMinutes = clonePtr(p.Location.MaxTravelTimeMinutes)
	out.Location.AvoidAreas = slices.Clone(p.Location.AvoidAreas)

	out.Cuisine.Desired = slices.Clone(p.Cuisine.Desired)
	out.Cuisine.OpenToSuggestions = clonePtr(p.Cuisine.OpenToSuggestions)
	out.Cuisine.Avoid = slices.Clone(p.Cuisine.Avoid)

	out.Dietary.Needs = slices.Clone(p.Dietary.Needs)
	out.Dietary.GeneralNotes = clonePtr(p.Dietary.GeneralNotes)

	out.Restaurant.PriceLevels = slices.Clone(p.Restaurant.PriceLevels)
	out.Restaurant.MinRating = clonePtr(p.Restaurant.MinRating)
	out.Restaurant.AttributePreferences = slices.Clone(p.Restaurant.AttributePreferences)
	out.Restaurant.ExcludeChains = clonePtr(p.Restaurant.ExcludeChains)
	out.Restaurant.SpecificRestaurants = slices.Clone(p.Restaurant.SpecificRestaurants)

	out.Ambiance.Ambiances = slices.Clone(p.Ambiance.Ambiances)
	out.Ambiance.Amenities = slices.Clone(p.Ambiance.Amenities)

	out.WillingToCompromiseOn = slices.Clone(p.WillingToCompromiseOn)
	out.DealBreakers = slices.Clone(p.DealBreakers)
	return out
}

// normalized fills every collection and the boolean defaults so derived documents render
// as arrays and booleans instead of nulls.
func (p Preferences) normalized() Preferences {
	out := p.clone()
	fill := func(s *[]string) {
		if *s == nil {
			*s = []string{}
		}
	}
	fill(&out.Location.AvoidAreas)
	fill(&out.Cuisine.Desired)
	fill(&out.Cuisine.Avoid)
	fill(&out.Dietary.Needs)
	fill(&out.Restaurant.AttributePreferences)
	fill(&out.Restaurant.SpecificRestaurants)
	fill(&out.Ambiance.Ambiances)
	fill(&out.Ambiance.Amenities)
	fill(&out.WillingToCompromiseOn)
	fill(&out.DealBreakers)
	if out.Restaurant.PriceLevels == nil {
		out.Restaurant.PriceLevels = []int{}
	}
	if out.Cuisine.OpenToSuggestions == nil {
		out.Cuisine.OpenToSuggestions = ptr(true)
	}
	if out.Restaurant.ExcludeChains == nil {
		out.Restaurant.ExcludeChains = ptr(false)
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func ptr[T any](v T) *T {
	return &v
}
