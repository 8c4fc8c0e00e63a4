package preferences

import (
	"slices"
	"strings"
)

const (
	topCuisines      = 5
	topAmbiance      = 3
	priceDistinctCap = 3
)

// Aggregate collapses guest records into one consensus document. The result depends only on
// the records and their order; inputs are never modified.
func Aggregate(records []PreferenceRecord) (AggregatedPreferences, error) {
	if len(records) == 0 {
		return AggregatedPreferences{}, ErrNoGuestData
	}

	var (
		groupSize  int
		occasions  = newTally[string]()
		dates      = newTally[string]()
		times      = newTally[string]()
		primaries  = newTally[string]()
		secondary  = newTally[string]()
		cuisines   = newTally[string]()
		ambiances  = newTally[string]()
		amenities  = newTally[string]()
		prices     = newTally[int]()
		rawPrices  []int
		notes      []string
		minRating  *float64
		radius     *float64
		travel     *int
		chainVotes int
		chainYes   int
		openStated int
		openNo     int
		compromise []string
		compSeen   bool
		agg        Preferences
	)

	for _, rec := range records {
		p := rec.Preferences

		if p.Context.GroupSize != nil && *p.Context.GroupSize >= 1 {
			groupSize += *p.Context.GroupSize
		}
		addText(occasions, p.Context.Occasion)
		addText(dates, p.Context.DateTime.DatePreference)
		addText(times, p.Context.DateTime.TimePreference)
		addText(primaries, p.Location.PrimaryText)
		addText(secondary, p.Location.SecondaryText)

		radius = minPtr(radius, p.Location.SearchRadiusKM)
		travel = minPtr(travel, p.Location.MaxTravelTimeMinutes)
		agg.Location.AvoidAreas = union(agg.Location.AvoidAreas, p.Location.AvoidAreas)

		cuisines.add(p.Cuisine.Desired...)
		agg.Cuisine.Avoid = union(agg.Cuisine.Avoid, p.Cuisine.Avoid)
		if p.Cuisine.OpenToSuggestions != nil {
			openStated++
			if !*p.Cuisine.OpenToSuggestions {
				openNo++
			}
		}

		agg.Dietary.Needs = union(agg.Dietary.Needs, p.Dietary.Needs)
		if p.Dietary.GeneralNotes != nil {
			notes = append(notes, *p.Dietary.GeneralNotes)
		}

		// One vote per guest per level.
		levels := union(p.Restaurant.PriceLevels)
		prices.add(levels...)
		rawPrices = append(rawPrices, levels...)
		minRating = maxPtr(minRating, p.Restaurant.MinRating)
		if p.Restaurant.ExcludeChains != nil {
			chainVotes++
			if *p.Restaurant.ExcludeChains {
				chainYes++
			}
		}
		agg.Restaurant.AttributePreferences = union(agg.Restaurant.AttributePreferences, p.Restaurant.AttributePreferences)
		agg.Restaurant.SpecificRestaurants = union(agg.Restaurant.SpecificRestaurants, p.Restaurant.SpecificRestaurants)

		ambiances.add(p.Ambiance.Ambiances...)
		amenities.add(p.Ambiance.Amenities...)

		if p.WillingToCompromiseOn != nil {
			if compSeen {
				compromise = intersect(compromise, p.WillingToCompromiseOn)
			} else {
				compromise = union(p.WillingToCompromiseOn)
				compSeen = true
			}
		}
		agg.DealBreakers = union(agg.DealBreakers, p.DealBreakers)
	}

	agg.Context.GroupSize = &groupSize
	agg.Context.Occasion = modeOf(occasions)
	agg.Context.DateTime.DatePreference = modeOf(dates)
	agg.Context.DateTime.TimePreference = modeOf(times)

	agg.Location.PrimaryText = modeOf(primaries)
	agg.Location.SecondaryText = modeOf(secondary)
	agg.Location.Coordinates = pickCoordinates(records, agg.Location.PrimaryText)
	agg.Location.SearchRadiusKM = radius
	agg.Location.MaxTravelTimeMinutes = travel

	agg.Cuisine.Desired = cuisines.top(topCuisines)
	agg.Cuisine.OpenToSuggestions = ptr(openStated == 0 || openNo < openStated)

	if len(notes) > 0 {
		agg.Dietary.GeneralNotes = ptr(strings.Join(union(notes), "; "))
	}

	agg.Restaurant.PriceLevels = consensusPriceLevels(prices, rawPrices)
	agg.Restaurant.MinRating = minRating
	agg.Restaurant.ExcludeChains = ptr(chainVotes > 0 && chainYes*2 > chainVotes)

	agg.Ambiance.Ambiances = ambiances.top(topAmbiance)
	agg.Ambiance.Amenities = amenities.top(topAmbiance)

	agg.WillingToCompromiseOn = compromise

	return AggregatedPreferences{Preferences: agg.normalized(), GuestCount: len(records)}, nil
}

// consensusPriceLevels keeps levels more than one guest asked for. When the pool names at
// most three distinct levels every level is kept, and when nothing clears the bar the raw
// union is used. The result is sorted ascending.
func consensusPriceLevels(votes *tally[int], raw []int) []int {
	kept := make([]int, 0, votes.len())
	for _, level := range votes.order {
		if votes.count(level) > 1 || votes.len() <= priceDistinctCap {
			kept = append(kept, level)
		}
	}
	if len(kept) == 0 {
		kept = union(raw)
	}
	slices.Sort(kept)
	return kept
}

// pickCoordinates prefers the coordinates of the first guest whose primary location matches
// the winning one, then the first guest with a complete pair.
func pickCoordinates(records []PreferenceRecord, primary *string) Coordinates {
	if primary != nil {
		for _, rec := range records {
			loc := rec.Preferences.Location
			if loc.PrimaryText != nil && *loc.PrimaryText == *primary && loc.Coordinates.Complete() {
				return Coordinates{Latitude: clonePtr(loc.Coordinates.Latitude), Longitude: clonePtr(loc.Coordinates.Longitude)}
			}
		}
	}
	for _, rec := range records {
		if c := rec.Preferences.Location.Coordinates; c.Complete() {
			return Coordinates{Latitude: clonePtr(c.Latitude), Longitude: clonePtr(c.Longitude)}
		}
	}
	return Coordinates{}
}

func addText(t *tally[string], v *string) {
	if v != nil && *v != "" {
		t.add(*v)
	}
}

func modeOf(t *tally[string]) *string {
	if v, ok := t.mode(); ok {
		return &v
	}
	return nil
}

type number interface {
	~int | ~float64
}

func minPtr[T number](cur, next *T) *T {
	if next == nil {
		return cur
	}
	if cur == nil || *next < *cur {
		return clonePtr(next)
	}
	return cur
}

func maxPtr[T number](cur, next *T) *T {
	if next == nil {
		return cur
	}
	if cur == nil || *next > *cur {
		return clonePtr(next)
	}
	return cur
}
