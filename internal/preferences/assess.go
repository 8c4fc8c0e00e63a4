package preferences

import "slices"

// Critical field names reported in missing_critical_fields.
const (
	FieldPrimaryLocation = "primary_location"
	FieldCuisineType     = "cuisine_type"
	FieldGroupSize       = "group_size"
	FieldTime            = "time"
	FieldPriceRange      = "price_range"
)

// Readiness is the outcome of checking a combined document's critical fields.
type Readiness struct {
	Ready   bool
	Missing []string
}

// Assess checks every critical field and lists all that are missing, in a fixed order.
func Assess(c CombinedPreferences) Readiness {
	p := c.Preferences
	missing := []string{}

	if p.Location.PrimaryText == nil && !p.Location.Coordinates.Complete() {
		missing = append(missing, FieldPrimaryLocation)
	}
	open := p.Cuisine.OpenToSuggestions != nil && *p.Cuisine.OpenToSuggestions
	if len(p.Cuisine.Desired) == 0 && !open {
		missing = append(missing, FieldCuisineType)
	}
	if p.Context.GroupSize == nil || *p.Context.GroupSize < 1 {
		missing = append(missing, FieldGroupSize)
	}
	if p.Context.DateTime.TimePreference == nil {
		missing = append(missing, FieldTime)
	}
	if len(p.Restaurant.PriceLevels) == 0 {
		missing = append(missing, FieldPriceRange)
	}

	return Readiness{Ready: len(missing) == 0, Missing: missing}
}

// WithReadiness returns a copy of c whose status and processing flags reflect r.
// The focus for clarification is the first missing field.
func (c CombinedPreferences) WithReadiness(r Readiness) CombinedPreferences {
	out := c.clone()
	out.ProcessingFlags.MissingCriticalFields = slices.Clone(r.Missing)
	if out.ProcessingFlags.MissingCriticalFields == nil {
		out.ProcessingFlags.MissingCriticalFields = []string{}
	}
	// Missing is authoritative; Ready without missing fields is implied.
	ready := len(r.Missing) == 0
	out.ProcessingFlags.ReadyForSearch = ready
	if ready {
		out.Status = StatusComplete
		out.ProcessingFlags.ClarificationFocus = nil
		return out
	}
	out.Status = StatusIncomplete
	out.ProcessingFlags.ClarificationFocus = ptr(r.Missing[0])
	return out
}
