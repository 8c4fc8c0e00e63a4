package preferences

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// NoMustHaves is the summary placeholder when nothing constrains the search.
const NoMustHaves = "No specific must-haves identified."

// DefaultMetaPreferences is attached to every combined envelope.
var DefaultMetaPreferences = MetaPreferences{
	SortingPreference:  "relevance",
	PresentationFormat: "summary",
	NumberOfOptions:    6,
}

type mergeConfig struct {
	previous *CombinedPreferences
	hostErr  error
}

// MergeOption customises the envelope produced by Merge.
type MergeOption func(*mergeConfig)

// WithPrevious continues the iteration counter of an earlier envelope for the same party.
func WithPrevious(prev *CombinedPreferences) MergeOption {
	return func(c *mergeConfig) {
		c.previous = prev
	}
}

// WithHostError records that a host document was supplied but rejected. The envelope reports
// it in error_message and keeps host_input_integrated false.
func WithHostError(err error) MergeOption {
	return func(c *mergeConfig) {
		c.hostErr = err
	}
}

// Merge combines the guest consensus with an optional host record. The host is the authority
// for overridable scalars; collective-safety lists are unioned.
func Merge(base AggregatedPreferences, host *PreferenceRecord, opts ...MergeOption) CombinedPreferences {
	cfg := mergeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	prefs := base.Preferences.normalized()
	if host != nil {
		prefs = mergeHost(prefs, host.Preferences)
	}

	utterance := fmt.Sprintf("Combined preferences from %d guests", base.GuestCount)
	if host != nil {
		utterance += " + host input"
	}

	iteration := 1
	if cfg.previous != nil {
		iteration = cfg.previous.ProcessingFlags.IterationCount + 1
	}

	flags := ProcessingFlags{
		IterationCount:        iteration,
		MissingCriticalFields: []string{},
		LastAgentProcessed:    AgentName,
		AggregatedFromGuests:  true,
		HostInputIntegrated:   host != nil,
		GuestCount:            base.GuestCount,
	}
	if cfg.hostErr != nil {
		flags.HostInputIntegrated = false
		flags.ErrorMessage = ptr(cfg.hostErr.Error())
	}

	return CombinedPreferences{
		Status:            StatusAggregated,
		LastUserUtterance: utterance,
		Preferences:       prefs,
		MetaPreferences:   DefaultMetaPreferences,
		ConstraintsSummary: ConstraintsSummary{
			MustHaves:   MustHaves(prefs),
			NiceToHaves: []string{},
		},
		ProcessingFlags: flags,
	}
}

// mergeHost applies the host's record over an already normalized base document.
func mergeHost(base Preferences, host Preferences) Preferences {
	out := base.clone()

	if host.Context.GroupSize != nil && *host.Context.GroupSize > 0 {
		current := 0
		if out.Context.GroupSize != nil {
			current = *out.Context.GroupSize
		}
		out.Context.GroupSize = ptr(current + *host.Context.GroupSize)
	}
	override(&out.Context.Occasion, host.Context.Occasion)
	override(&out.Context.DateTime.DatePreference, host.Context.DateTime.DatePreference)
	override(&out.Context.DateTime.TimePreference, host.Context.DateTime.TimePreference)

	override(&out.Location.PrimaryText, host.Location.PrimaryText)
	override(&out.Location.SecondaryText, host.Location.SecondaryText)
	if host.Location.Coordinates.Complete() {
		out.Location.Coordinates = Coordinates{
			Latitude:  clonePtr(host.Location.Coordinates.Latitude),
			Longitude: clonePtr(host.Location.Coordinates.Longitude),
		}
	}
	out.Location.SearchRadiusKM = minPtr(out.Location.SearchRadiusKM, host.Location.SearchRadiusKM)
	out.Location.MaxTravelTimeMinutes = minPtr(out.Location.MaxTravelTimeMinutes, host.Location.MaxTravelTimeMinutes)
	out.Location.AvoidAreas = union(out.Location.AvoidAreas, host.Location.AvoidAreas)

	if len(host.Cuisine.Desired) > 0 {
		hostDesired := union(host.Cuisine.Desired)
		out.Cuisine.Desired = append(hostDesired, without(out.Cuisine.Desired, hostDesired)...)
	}
	out.Cuisine.Avoid = union(out.Cuisine.Avoid, host.Cuisine.Avoid)
	if host.Cuisine.OpenToSuggestions != nil && !*host.Cuisine.OpenToSuggestions {
		out.Cuisine.OpenToSuggestions = ptr(false)
	}

	out.Dietary.Needs = union(out.Dietary.Needs, host.Dietary.Needs)
	if host.Dietary.GeneralNotes != nil {
		if out.Dietary.GeneralNotes != nil {
			out.Dietary.GeneralNotes = ptr(*host.Dietary.GeneralNotes + "; " + *out.Dietary.GeneralNotes)
		} else {
			out.Dietary.GeneralNotes = clonePtr(host.Dietary.GeneralNotes)
		}
	}

	if len(host.Restaurant.PriceLevels) > 0 {
		levels := intersect(out.Restaurant.PriceLevels, host.Restaurant.PriceLevels)
		if len(levels) == 0 {
			levels = union(host.Restaurant.PriceLevels)
		}
		slices.Sort(levels)
		out.Restaurant.PriceLevels = levels
	}
	out.Restaurant.MinRating = maxPtr(out.Restaurant.MinRating, host.Restaurant.MinRating)
	if host.Restaurant.ExcludeChains != nil {
		out.Restaurant.ExcludeChains = ptr(*out.Restaurant.ExcludeChains || *host.Restaurant.ExcludeChains)
	}
	out.Restaurant.AttributePreferences = union(out.Restaurant.AttributePreferences, host.Restaurant.AttributePreferences)
	out.Restaurant.SpecificRestaurants = union(out.Restaurant.SpecificRestaurants, host.Restaurant.SpecificRestaurants)

	out.Ambiance.Ambiances = union(out.Ambiance.Ambiances, host.Ambiance.Ambiances)
	out.Ambiance.Amenities = union(out.Ambiance.Amenities, host.Ambiance.Amenities)

	if host.WillingToCompromiseOn != nil {
		out.WillingToCompromiseOn = union(host.WillingToCompromiseOn)
	}
	out.DealBreakers = union(out.DealBreakers, host.DealBreakers)

	return out
}

func override(dst **string, v *string) {
	if v != nil && *v != "" {
		*dst = clonePtr(v)
	}
}

// MustHaves renders the fixed-order constraint strings for a preference document.
func MustHaves(p Preferences) []string {
	var out []string
	if p.Context.GroupSize != nil && *p.Context.GroupSize > 0 {
		out = append(out, fmt.Sprintf("Group size: %d", *p.Context.GroupSize))
	}
	if len(p.Cuisine.Desired) > 0 {
		out = append(out, "Cuisines: "+strings.Join(p.Cuisine.Desired, ", "))
	}
	if len(p.Restaurant.PriceLevels) > 0 {
		levels := make([]string, len(p.Restaurant.PriceLevels))
		for i, l := range p.Restaurant.PriceLevels {
			levels[i] = strconv.Itoa(l)
		}
		out = append(out, "Price range: "+strings.Join(levels, ", "))
	}
	if p.Location.PrimaryText != nil {
		out = append(out, "Location: "+*p.Location.PrimaryText)
	}
	if len(p.Dietary.Needs) > 0 {
		out = append(out, "Dietary needs: "+strings.Join(p.Dietary.Needs, ", "))
	}
	if p.Context.DateTime.TimePreference != nil {
		out = append(out, "Time: "+*p.Context.DateTime.TimePreference)
	}
	if len(out) == 0 {
		return []string{NoMustHaves}
	}
	return out
}
